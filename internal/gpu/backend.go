//go:build !nogpu

package gpu

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/nbody"
)

// BackendName is the identifier of the GPU backend.
const BackendName = "gpu"

// Backend runs the simulation and rendering on one GPU device.
//
// The engine and renderer share the device and the snapshot buffer: Render
// draws whatever the last Step copied into the snapshot.
type Backend struct {
	mu sync.Mutex

	dev      *Device
	engine   *Engine
	renderer *Renderer
	closed   bool
}

// NewBackend validates the shaders, opens a device and uploads bodies.
func NewBackend(cfg nbody.Config, bodies []nbody.Body) (*Backend, error) {
	if err := ValidateShaders(); err != nil {
		return nil, nbody.Fatal("init", err)
	}
	dev, err := NewDevice()
	if err != nil {
		return nil, nbody.Fatal("init", err)
	}
	b, err := newBackend(dev, cfg, bodies)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return b, nil
}

// NewBackendWithDevice builds a backend on an existing device. The device
// is closed together with the backend unless it was created by
// NewDeviceFromHAL or NewDeviceFromProvider.
func NewBackendWithDevice(dev *Device, cfg nbody.Config, bodies []nbody.Body) (*Backend, error) {
	if dev == nil {
		return nil, nbody.Fatal("init", ErrNilHALDevice)
	}
	return newBackend(dev, cfg, bodies)
}

func newBackend(dev *Device, cfg nbody.Config, bodies []nbody.Body) (*Backend, error) {
	dev.Memory().SetBudget(cfg.MemoryBudgetMB)
	engine, err := NewEngine(dev, bodies, cfg.Physics, cfg.SubmitTimeout)
	if err != nil {
		return nil, nbody.Fatal("init", err)
	}
	renderer, err := NewRenderer(dev, RenderOptions{
		Width:          uint32(cfg.Width),
		Height:         uint32(cfg.Height),
		Preset:         cfg.Preset,
		SplatIntensity: cfg.SplatIntensity,
		SplatSize:      cfg.SplatSize,
		SubmitTimeout:  cfg.SubmitTimeout,
		MapTimeout:     cfg.MapTimeout,
	})
	if err != nil {
		engine.Close()
		return nil, nbody.Fatal("init", err)
	}
	slogger().Info("gpu backend ready",
		"device", dev.Name(),
		"bodies", engine.Count(),
		"dt", engine.Physics().Dt,
		"preset", string(cfg.Preset),
		"memory", dev.Memory().Stats().String())
	return &Backend{dev: dev, engine: engine, renderer: renderer}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return BackendName }

// Bodies returns the number of simulated bodies.
func (b *Backend) Bodies() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	return b.engine.Count()
}

// Step advances the simulation by one time step and refreshes the snapshot.
func (b *Backend) Step(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nbody.Fatal("step", ErrEngineClosed)
	}
	return b.engine.Step(ctx)
}

// Render draws the latest snapshot with cam and returns tightly packed
// RGBA8 pixels.
func (b *Backend) Render(ctx context.Context, cam nbody.Camera) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nbody.Fatal("render", ErrRendererClosed)
	}
	return b.renderer.Render(ctx, b.engine.Snapshot(), cam)
}

// MemoryStats returns the device memory held by the backend.
func (b *Backend) MemoryStats() MemoryStats {
	return b.dev.Memory().Stats()
}

// Positions reads the current body positions back to the host.
func (b *Backend) Positions(ctx context.Context) ([]nbody.Vec2, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("positions: %w", ErrEngineClosed)
	}
	return b.engine.Positions(ctx)
}

// Close releases the renderer, the engine and the device.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.renderer.Close()
	b.engine.Close()
	b.dev.Close()
	slogger().Debug("gpu backend closed")
	return nil
}
