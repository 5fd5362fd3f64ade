package software

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gogpu/nbody"
)

func TestNewEngineNoBodies(t *testing.T) {
	if _, err := NewEngine(nil, nbody.DefaultPhysics()); !errors.Is(err, nbody.ErrNoBodies) {
		t.Errorf("error = %v, want ErrNoBodies", err)
	}
}

func TestPairForceSymmetry(t *testing.T) {
	physics := nbody.DefaultPhysics()
	tests := []struct {
		name string
		a, b nbody.Body
	}{
		{"equal masses", nbody.Body{Position: nbody.V2(-1, 0), Mass: 1}, nbody.Body{Position: nbody.V2(1, 0), Mass: 1}},
		{"heavy center", nbody.Body{Position: nbody.V2(0, 0), Mass: 50000}, nbody.Body{Position: nbody.V2(3, 4), Mass: 2}},
		{"coincident", nbody.Body{Position: nbody.V2(2, 2), Mass: 5}, nbody.Body{Position: nbody.V2(2, 2), Mass: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fab := PairForce(tt.a, tt.b, physics)
			fba := PairForce(tt.b, tt.a, physics)
			sum := fab.Add(fba)
			scale := max(fab.Length(), 1)
			if sum.Length() > 1e-5*scale {
				t.Errorf("F(a,b) + F(b,a) = %v, want ~0 (F(a,b) = %v)", sum, fab)
			}
			if fab.Dot(tt.b.Position.Sub(tt.a.Position)) < 0 {
				t.Errorf("force %v points away from the other body", fab)
			}
		})
	}
}

func TestPairAccelerationSoftened(t *testing.T) {
	physics := nbody.Physics{Dt: 0.001, G: 1, Softening: 0.5}
	a := nbody.Body{Mass: 1}
	b := nbody.Body{Position: nbody.V2(3, 4), Mass: 10}

	got := PairAcceleration(a, b, physics)
	r2 := 25.0 + 0.25
	want := 10 / (r2 * math.Sqrt(r2)) // |d| * m / r^3 with |d| = 5
	if math.Abs(float64(got.Length())-5*want) > 1e-5 {
		t.Errorf("|a| = %v, want %v", got.Length(), 5*want)
	}
}

func TestEngineMomentumConserved(t *testing.T) {
	bodies := []nbody.Body{
		{Position: nbody.V2(-5, 0), Mass: 10, Velocity: nbody.V2(0, 1)},
		{Position: nbody.V2(5, 0), Mass: 1, Velocity: nbody.V2(3, -2)},
	}
	e, err := NewEngine(bodies, nbody.DefaultPhysics())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	before := nbody.TotalMomentum(bodies)

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		if err := e.Step(ctx); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	after := nbody.TotalMomentum(e.Bodies())

	drift := after.Sub(before).Length() / before.Length()
	if drift > 0.01 {
		t.Errorf("momentum drift = %.4f%%, want < 1%% (before %v, after %v)", drift*100, before, after)
	}
	if e.Steps() != 1000 {
		t.Errorf("Steps() = %d, want 1000", e.Steps())
	}
}

func TestEngineSingleBodyDrifts(t *testing.T) {
	e, err := NewEngine([]nbody.Body{{Position: nbody.V2(1, 1), Mass: 5, Velocity: nbody.V2(2, 0)}}, nbody.Physics{Dt: 0.5, G: 1, Softening: 1})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if got := e.Positions()[0]; !got.Approx(nbody.V2(2, 1), 1e-6) {
		t.Errorf("position = %v, want (2, 1)", got)
	}
}

func TestEngineGeneratedGalaxyStep(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	bodies := nbody.GenerateGalaxy(nbody.GalaxySpec{
		CenterMass: 1000,
		NumBodies:  2,
		NumArms:    2,
		Radius:     10,
	}, rng)
	if len(bodies) != 5 {
		t.Fatalf("generated %d bodies, want 5", len(bodies))
	}

	e, err := NewEngine(bodies, nbody.DefaultPhysics())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := e.Step(context.Background()); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	for i, p := range e.Positions() {
		moved := p.Sub(bodies[i].Position).Length()
		if moved == 0 {
			t.Errorf("body %d did not move", i)
		}
		if moved > 1 || math.IsNaN(float64(moved)) {
			t.Errorf("body %d moved %v in one step", i, moved)
		}
	}
}

func TestEngineStepCancelled(t *testing.T) {
	e, err := NewEngine([]nbody.Body{{Mass: 1}, {Position: nbody.V2(1, 0), Mass: 1}}, nbody.DefaultPhysics())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = e.Step(ctx)
	if !errors.Is(err, context.Canceled) || !nbody.IsFatal(err) {
		t.Errorf("error = %v, want fatal context.Canceled", err)
	}
	if e.Steps() != 0 {
		t.Errorf("Steps() = %d, want 0", e.Steps())
	}
	if e.Physics() != nbody.DefaultPhysics() {
		t.Errorf("Physics() = %+v, want %+v", e.Physics(), nbody.DefaultPhysics())
	}
}

func TestEngineParallelMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	bodies := nbody.GenerateGalaxy(nbody.GalaxySpec{CenterMass: 500, NumBodies: 300, NumArms: 3, Radius: 20}, rng)

	serial, _ := NewEngine(bodies, nbody.DefaultPhysics())
	serial.workers = 1
	parallel, _ := NewEngine(bodies, nbody.DefaultPhysics())
	parallel.workers = 8

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := serial.Step(ctx); err != nil {
			t.Fatal(err)
		}
		if err := parallel.Step(ctx); err != nil {
			t.Fatal(err)
		}
	}
	ps, pp := serial.Positions(), parallel.Positions()
	for i := range ps {
		if ps[i] != pp[i] {
			t.Fatalf("body %d: serial %v != parallel %v", i, ps[i], pp[i])
		}
	}
}
