package nbody

import (
	"math"
	"math/rand/v2"
	"testing"
)

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func TestGenerateGalaxyCount(t *testing.T) {
	tests := []struct {
		name string
		spec GalaxySpec
		want int
	}{
		{"parity", GalaxySpec{NumBodies: 100, NumArms: 2, Radius: 10}, 1 + 100 + 100},
		{"remainder dropped", GalaxySpec{NumBodies: 10, NumArms: 3, Radius: 10}, 1 + 9 + 10},
		{"no arms", GalaxySpec{NumBodies: 10, NumArms: 0, Radius: 10}, 1 + 10},
		{"fewer bodies than arms", GalaxySpec{NumBodies: 2, NumArms: 4, Radius: 10}, 1 + 0 + 2},
		{"explicit field", GalaxySpec{NumBodies: 100, NumArms: 4, Radius: 10, Field: FieldExplicit, FieldBodies: 7}, 1 + 100 + 7},
		{"explicit empty field", GalaxySpec{NumBodies: 100, NumArms: 4, Radius: 10, Field: FieldExplicit}, 1 + 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateGalaxy(tt.spec, seeded())
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
			if tt.spec.Count() != tt.want {
				t.Errorf("Count() = %d, want %d", tt.spec.Count(), tt.want)
			}
		})
	}
}

func TestGenerateGalaxyLayout(t *testing.T) {
	spec := GalaxySpec{
		Center:     V2(5, -3),
		Velocity:   V2(1, 2),
		CenterMass: 1000,
		NumBodies:  20,
		NumArms:    2,
		Clockwise:  true,
		Radius:     10,
	}
	bodies := GenerateGalaxy(spec, seeded())

	center := bodies[0]
	if center.Position != spec.Center || center.Velocity != spec.Velocity || center.Mass != 1000 {
		t.Fatalf("center body = %+v", center)
	}

	// Arm 1, body 4: angle 184 degrees, radius 4 * 10/10.
	b := bodies[1+10+4]
	angle := 184 * math.Pi / 180
	want := spec.Center.Add(Polar(4, angle))
	if !b.Position.Approx(want, 1e-4) {
		t.Errorf("arm body position = %+v, want %+v", b.Position, want)
	}
	wantVel := Polar(OrbitSpeed, angle+math.Pi/2)
	if !b.Velocity.Approx(wantVel, 1e-4) {
		t.Errorf("arm body velocity = %+v, want %+v", b.Velocity, wantVel)
	}
	if b.Mass != ArmMass {
		t.Errorf("arm mass = %v, want %v", b.Mass, ArmMass)
	}

	for i, f := range bodies[21:] {
		if f.Mass != FieldMass {
			t.Errorf("field body %d mass = %v", i, f.Mass)
		}
		if d := f.Position.Sub(spec.Center).Length(); d >= spec.Radius+1e-4 {
			t.Errorf("field body %d at distance %v outside radius", i, d)
		}
		if s := f.Velocity.Length(); math.Abs(float64(s-OrbitSpeed)) > 1e-3 {
			t.Errorf("field body %d speed = %v", i, s)
		}
	}
}

func TestGenerateGalaxyRotationSense(t *testing.T) {
	for _, clockwise := range []bool{true, false} {
		spec := GalaxySpec{NumBodies: 8, NumArms: 1, Radius: 8, Clockwise: clockwise}
		b := GenerateGalaxy(spec, seeded())[3]
		// Angular momentum sign: r x v.
		l := b.Position.X*b.Velocity.Y - b.Position.Y*b.Velocity.X
		if clockwise && l <= 0 {
			t.Errorf("clockwise=true: angular momentum %v, want > 0", l)
		}
		if !clockwise && l >= 0 {
			t.Errorf("clockwise=false: angular momentum %v, want < 0", l)
		}
	}
}

func TestGenerateGalaxyZeroRadius(t *testing.T) {
	spec := GalaxySpec{Center: V2(1, 1), NumBodies: 10, NumArms: 2}
	for i, b := range GenerateGalaxy(spec, seeded()) {
		if !b.Position.Approx(spec.Center, 1e-6) {
			t.Errorf("body %d at %+v, want center", i, b.Position)
		}
	}
}

func TestGenerateGalaxySeeded(t *testing.T) {
	spec := DefaultGalaxies()[0]
	spec.NumBodies = 50
	a := GenerateGalaxy(spec, seeded())
	b := GenerateGalaxy(spec, seeded())
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("body %d differs between identically seeded runs", i)
		}
	}
}

func TestGenerateGalaxyInheritVelocity(t *testing.T) {
	spec := GalaxySpec{Velocity: V2(3, 4), NumBodies: 4, NumArms: 1, Radius: 4, InheritVelocity: true}
	bodies := GenerateGalaxy(spec, seeded())
	still := spec
	still.InheritVelocity = false
	base := GenerateGalaxy(still, seeded())
	for i := 1; i < len(bodies); i++ {
		if !bodies[i].Velocity.Sub(base[i].Velocity).Approx(spec.Velocity, 1e-4) {
			t.Errorf("body %d velocity %+v does not include center velocity", i, bodies[i].Velocity)
		}
	}
}

func TestGenerateCloud(t *testing.T) {
	spec := CloudSpec{Center: V2(10, 0), NumBodies: 200, CenterMass: 500, Radius: 20}
	bodies := GenerateCloud(spec, seeded())
	if len(bodies) != spec.Count() || len(bodies) != 204 {
		t.Fatalf("len = %d, want 204", len(bodies))
	}
	for i, b := range bodies[:200] {
		offset := b.Position.Sub(spec.Center)
		if offset.Length() > spec.Radius+1e-3 {
			t.Errorf("body %d outside radius", i)
		}
		// Counter-clockwise tangential velocity at CloudSpeed.
		if math.Abs(float64(offset.Dot(b.Velocity))) > 1e-2*float64(offset.Length()) {
			t.Errorf("body %d velocity not tangential", i)
		}
	}
	for _, b := range bodies[200:] {
		if b.Position != spec.Center || b.Mass != 500 || !b.Velocity.IsZero() {
			t.Errorf("core body = %+v", b)
		}
	}
}

func TestGenerateScene(t *testing.T) {
	galaxies := []GalaxySpec{{NumBodies: 4, NumArms: 2, Radius: 1}, {NumBodies: 6, NumArms: 3, Radius: 1}}
	clouds := []CloudSpec{{NumBodies: 5, Radius: 1}}
	got := GenerateScene(galaxies, clouds, seeded())
	if want := 9 + 13 + 9; len(got) != want {
		t.Errorf("len = %d, want %d", len(got), want)
	}
}

func TestFieldPolicyText(t *testing.T) {
	var p FieldPolicy
	if err := p.UnmarshalText([]byte("explicit")); err != nil || p != FieldExplicit {
		t.Errorf("UnmarshalText(explicit) = %v, %v", p, err)
	}
	if err := p.UnmarshalText([]byte("")); err != nil || p != FieldMatchArms {
		t.Errorf("UnmarshalText(\"\") = %v, %v", p, err)
	}
	if err := p.UnmarshalText([]byte("half")); err == nil {
		t.Error("UnmarshalText(half) should fail")
	}
}
