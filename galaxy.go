package nbody

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Generator constants.
const (
	// OrbitSpeed is the tangential speed given to every arm and field body.
	OrbitSpeed = 30

	// ArmMass and FieldMass are the masses of arm and field bodies.
	ArmMass   = 2
	FieldMass = 1

	// CloudSpeed is the tangential speed of bodies produced by GenerateCloud.
	CloudSpeed = 50

	cloudRadiusExponent = 0.2
	cloudAngleSpread    = 0.5
	cloudCenterBodies   = 4
)

// FieldPolicy selects how many uniformly scattered field bodies a galaxy gets
// in addition to its arms.
type FieldPolicy int

const (
	// FieldMatchArms adds NumBodies field bodies, so a galaxy holds
	// 1 + perArm*NumArms + NumBodies bodies in total.
	FieldMatchArms FieldPolicy = iota

	// FieldExplicit adds exactly GalaxySpec.FieldBodies field bodies.
	FieldExplicit
)

// String returns the string representation of FieldPolicy.
func (p FieldPolicy) String() string {
	switch p {
	case FieldMatchArms:
		return "match-arms"
	case FieldExplicit:
		return "explicit"
	default:
		return fmt.Sprintf("FieldPolicy(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p FieldPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *FieldPolicy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "match-arms":
		*p = FieldMatchArms
	case "explicit":
		*p = FieldExplicit
	default:
		return fmt.Errorf("nbody: unknown field policy %q", text)
	}
	return nil
}

// GalaxySpec describes one spiral galaxy.
type GalaxySpec struct {
	Center     Vec2    `yaml:"center"`
	Velocity   Vec2    `yaml:"velocity"`
	CenterMass float32 `yaml:"center_mass"`

	// NumBodies is split evenly across the arms. The remainder of the
	// division is dropped.
	NumBodies int  `yaml:"num_bodies"`
	NumArms   int  `yaml:"num_arms"`
	Clockwise bool `yaml:"clockwise"`

	Radius float32 `yaml:"radius"`

	Field       FieldPolicy `yaml:"field"`
	FieldBodies int         `yaml:"field_bodies"`

	// InheritVelocity adds the center velocity to every arm and field body.
	InheritVelocity bool `yaml:"inherit_velocity"`
}

// PerArm returns the number of bodies placed on each arm.
func (s GalaxySpec) PerArm() int {
	if s.NumArms <= 0 || s.NumBodies <= 0 {
		return 0
	}
	return s.NumBodies / s.NumArms
}

// FieldCount returns the number of field bodies s produces.
func (s GalaxySpec) FieldCount() int {
	n := s.NumBodies
	if s.Field == FieldExplicit {
		n = s.FieldBodies
	}
	return max(n, 0)
}

// Count returns the total number of bodies GenerateGalaxy returns for s.
func (s GalaxySpec) Count() int {
	return 1 + s.PerArm()*max(s.NumArms, 0) + s.FieldCount()
}

// GenerateGalaxy builds the bodies of one spiral galaxy in order: the center
// body, then every arm in turn, then the field population.
//
// Arm i starts at i*(360/NumArms) degrees. Body j on an arm sits at angle
// (start+j) degrees and radius j*Radius/perArm. Field bodies are scattered
// with a uniform angle in [0, 2pi) and a uniform distance in [0, Radius).
// Every non-center body moves tangentially at OrbitSpeed.
//
// A nil rng draws from an unseeded source. With a seeded rng the result is
// fully determined by its arguments.
func GenerateGalaxy(spec GalaxySpec, rng *rand.Rand) []Body {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	bodies := make([]Body, 0, spec.Count())
	bodies = append(bodies, Body{
		Position: spec.Center,
		Mass:     spec.CenterMass,
		Velocity: spec.Velocity,
	})

	perArm := spec.PerArm()
	if perArm > 0 {
		step := 360 / spec.NumArms
		spacing := float64(spec.Radius) / float64(perArm)
		for i := 0; i < spec.NumArms; i++ {
			start := i * step
			for j := 0; j < perArm; j++ {
				angle := degToRad(float64(start + j))
				bodies = append(bodies, spec.orbiter(angle, float64(j)*spacing, ArmMass))
			}
		}
	}

	for range spec.FieldCount() {
		angle := rng.Float64() * 2 * math.Pi
		dist := rng.Float64() * float64(spec.Radius)
		bodies = append(bodies, spec.orbiter(angle, dist, FieldMass))
	}

	return bodies
}

func (s GalaxySpec) orbiter(angle, dist float64, mass float32) Body {
	tangent := angle - math.Pi/2
	if s.Clockwise {
		tangent = angle + math.Pi/2
	}
	vel := Polar(OrbitSpeed, tangent)
	if s.InheritVelocity {
		vel = vel.Add(s.Velocity)
	}
	return Body{
		Position: s.Center.Add(Polar(dist, angle)),
		Mass:     mass,
		Velocity: vel,
	}
}

// CloudSpec describes a centrally condensed disc of bodies with a heavy core.
type CloudSpec struct {
	Center     Vec2    `yaml:"center"`
	NumBodies  int     `yaml:"num_bodies"`
	CenterMass float32 `yaml:"center_mass"`
	Radius     float32 `yaml:"radius"`
}

// Count returns the total number of bodies GenerateCloud returns for s.
func (s CloudSpec) Count() int {
	return max(s.NumBodies, 0) + cloudCenterBodies
}

// GenerateCloud scatters NumBodies unit-mass bodies around Center with a
// radius of rand^0.2 * Radius and a normally jittered angle, each moving
// counter-clockwise at CloudSpeed. Four bodies of CenterMass resting at
// Center are appended last.
func GenerateCloud(spec CloudSpec, rng *rand.Rand) []Body {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	bodies := make([]Body, 0, spec.Count())
	for range max(spec.NumBodies, 0) {
		r := math.Pow(rng.Float64(), cloudRadiusExponent) * float64(spec.Radius)
		angle := rng.Float64()*2*math.Pi + rng.NormFloat64()*cloudAngleSpread

		offset := Polar(r, angle)
		var vel Vec2
		if d := offset.Length(); d > 0 {
			vel = Vec2{X: -offset.Y, Y: offset.X}.Mul(CloudSpeed / d)
		}
		bodies = append(bodies, Body{
			Position: spec.Center.Add(offset),
			Mass:     FieldMass,
			Velocity: vel,
		})
	}
	for range cloudCenterBodies {
		bodies = append(bodies, Body{Position: spec.Center, Mass: spec.CenterMass})
	}
	return bodies
}

// GenerateScene concatenates the galaxies and clouds of a scene in order.
// All generators share rng.
func GenerateScene(galaxies []GalaxySpec, clouds []CloudSpec, rng *rand.Rand) []Body {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	var bodies []Body
	for _, g := range galaxies {
		bodies = append(bodies, GenerateGalaxy(g, rng)...)
	}
	for _, c := range clouds {
		bodies = append(bodies, GenerateCloud(c, rng)...)
	}
	return bodies
}

// DefaultGalaxies returns the two counter-moving galaxies of the default scene.
func DefaultGalaxies() []GalaxySpec {
	return []GalaxySpec{
		{
			Center:     V2(0, 32.5),
			Velocity:   V2(2, 6),
			CenterMass: 50000,
			NumBodies:  10000,
			NumArms:    2,
			Clockwise:  true,
			Radius:     35,
		},
		{
			Center:     V2(0, -32.5),
			Velocity:   V2(-2, -6),
			CenterMass: 50000,
			NumBodies:  10000,
			NumArms:    2,
			Clockwise:  true,
			Radius:     35,
		},
	}
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
