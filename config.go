package nbody

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default frame size: a portrait 1080x1920 image.
const (
	DefaultWidth  = 1080
	DefaultHeight = 1920
)

// Physics holds the integration constants uploaded to the gravity kernel.
type Physics struct {
	// Dt is the fixed time step per iteration.
	Dt float32 `yaml:"dt"`

	// G is the gravitational constant.
	G float32 `yaml:"g"`

	// Softening is added in quadrature to every pair distance.
	Softening float32 `yaml:"softening"`
}

// DefaultPhysics returns the integration constants used by DefaultConfig.
func DefaultPhysics() Physics {
	return Physics{Dt: 0.001, G: 1, Softening: 0.5}
}

// Preset selects a render pipeline arrangement.
type Preset string

const (
	// PresetAccumulateTonemap splats additive density into the alpha
	// channel and maps it to color in a second full-screen pass.
	PresetAccumulateTonemap Preset = "accumulate-tonemap"

	// PresetDirectAlpha draws every body with source-over blending onto an
	// opaque black background in a single pass.
	PresetDirectAlpha Preset = "direct-alpha"
)

// Backend selects where the simulation and rendering run.
type Backend string

const (
	// BackendAuto uses the GPU when an adapter is available and falls back
	// to the CPU otherwise.
	BackendAuto     Backend = "auto"
	BackendGPU      Backend = "gpu"
	BackendSoftware Backend = "software"
)

// Config is the full description of a run.
type Config struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Frames is the number of iterations to run. Zero runs until stopped.
	Frames int `yaml:"frames"`

	OutputDir   string `yaml:"output_dir"`
	Format      string `yaml:"format"`
	JPEGQuality int    `yaml:"jpeg_quality"`

	Preset  Preset  `yaml:"preset"`
	Backend Backend `yaml:"backend"`

	Physics  Physics      `yaml:"physics"`
	Galaxies []GalaxySpec `yaml:"galaxies"`
	Clouds   []CloudSpec  `yaml:"clouds"`
	Camera   Camera       `yaml:"camera"` // zero Aspect follows the frame size

	// Seed makes body generation reproducible. Zero draws an unseeded source.
	Seed uint64 `yaml:"seed"`

	// SplatIntensity is the density one body adds to the pixels it covers.
	SplatIntensity float32 `yaml:"splat_intensity"`

	// SplatSize is the half extent of a body splat in pixels.
	SplatSize float32 `yaml:"splat_size"`

	SubmitTimeout time.Duration `yaml:"submit_timeout"`
	MapTimeout    time.Duration `yaml:"map_timeout"`

	// MemoryBudgetMB caps the device memory the GPU backend may reserve.
	// Zero disables the limit.
	MemoryBudgetMB int `yaml:"memory_budget_mb"`

	// Writers bounds the number of frames encoded concurrently.
	Writers int `yaml:"writers"`

	// MetricsFile, when set, receives run metrics in Prometheus text format.
	MetricsFile string `yaml:"metrics_file"`
}

// DefaultConfig returns the configuration of the default two-galaxy scene.
func DefaultConfig() Config {
	return Config{
		Width:          DefaultWidth,
		Height:         DefaultHeight,
		OutputDir:      "output",
		Format:         "png",
		JPEGQuality:    90,
		Preset:         PresetAccumulateTonemap,
		Backend:        BackendAuto,
		Physics:        DefaultPhysics(),
		Galaxies:       DefaultGalaxies(),
		Camera:         DefaultCamera(0),
		SplatIntensity: 0.05,
		SplatSize:      1.5,
		SubmitTimeout:  30 * time.Second,
		MapTimeout:     30 * time.Second,
		Writers:        4,
	}
}

// LoadConfig reads a YAML scenario file on top of DefaultConfig.
// Keys missing from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Aspect returns Width/Height.
func (c Config) Aspect() float32 {
	if c.Height == 0 {
		return 1
	}
	return float32(c.Width) / float32(c.Height)
}

// ViewCamera returns Camera with a zero Aspect replaced by the frame aspect.
func (c Config) ViewCamera() Camera {
	cam := c.Camera
	if cam.Aspect == 0 {
		cam.Aspect = c.Aspect()
	}
	return cam
}

// Rand returns the generator source selected by Seed.
func (c Config) Rand() *rand.Rand {
	if c.Seed == 0 {
		return nil
	}
	return rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15))
}

// BodyCount returns the number of bodies the configured scene generates.
func (c Config) BodyCount() int {
	n := 0
	for _, g := range c.Galaxies {
		n += g.Count()
	}
	for _, cl := range c.Clouds {
		n += cl.Count()
	}
	return n
}

// Validate reports every problem found in c, joined into one error
// wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Width <= 0 || c.Height <= 0 {
		add("frame size %dx%d must be positive", c.Width, c.Height)
	}
	if c.Frames < 0 {
		add("frames %d must not be negative", c.Frames)
	}
	if c.OutputDir == "" {
		add("output_dir is empty")
	}
	switch c.Format {
	case "png", "jpeg", "jpg", "tiff", "bmp":
	default:
		add("unknown image format %q", c.Format)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		add("jpeg_quality %d out of range [1, 100]", c.JPEGQuality)
	}
	switch c.Preset {
	case PresetAccumulateTonemap, PresetDirectAlpha:
	default:
		add("unknown preset %q", c.Preset)
	}
	switch c.Backend {
	case BackendAuto, BackendGPU, BackendSoftware:
	default:
		add("unknown backend %q", c.Backend)
	}
	if c.Physics.Dt <= 0 {
		add("physics.dt %v must be positive", c.Physics.Dt)
	}
	if c.Physics.Softening <= 0 {
		add("physics.softening %v must be positive", c.Physics.Softening)
	}
	if c.BodyCount() == 0 {
		add("scene has no bodies")
	}
	for i, g := range c.Galaxies {
		if g.NumArms < 0 || g.NumBodies < 0 || g.Radius < 0 {
			add("galaxy %d: negative size parameter", i)
		}
		if g.NumArms > 360 {
			add("galaxy %d: num_arms %d exceeds 360", i, g.NumArms)
		}
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		add("camera clip range [%v, %v] is invalid", c.Camera.Near, c.Camera.Far)
	}
	if c.SplatIntensity <= 0 || c.SplatSize <= 0 {
		add("splat intensity and size must be positive")
	}
	if c.SubmitTimeout <= 0 || c.MapTimeout <= 0 {
		add("timeouts must be positive")
	}
	if c.MemoryBudgetMB < 0 {
		add("memory_budget_mb %d must not be negative", c.MemoryBudgetMB)
	}
	if c.Writers < 1 {
		add("writers %d must be at least 1", c.Writers)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// FrameName returns the file name of frame index: the index zero-padded to
// five digits followed by the extension.
func FrameName(index int, ext string) string {
	return fmt.Sprintf("%05d.%s", index, ext)
}
