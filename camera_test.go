package nbody

import (
	"math"
	"testing"
)

func TestMat4Multiply(t *testing.T) {
	m := Mat4{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}
	if got := m.Multiply(Identity4()); got != m {
		t.Errorf("m * I = %v", got)
	}
	if got := Identity4().Multiply(m); got != m {
		t.Errorf("I * m = %v", got)
	}
	// Column 0 of m*m is m applied to column 0 of m.
	sq := m.Multiply(m)
	col := m.Transform(1, 2, 3, 4)
	for r := 0; r < 4; r++ {
		if sq.At(r, 0) != col[r] {
			t.Errorf("(m*m)[%d][0] = %v, want %v", r, sq.At(r, 0), col[r])
		}
	}
}

func TestCameraProjectsOrigin(t *testing.T) {
	cam := DefaultCamera(float32(DefaultWidth) / float32(DefaultHeight))
	x, y, ok := cam.Project(V2(0, 0))
	if !ok {
		t.Fatal("origin is clipped")
	}
	if math.Abs(float64(x)) > 1e-5 || math.Abs(float64(y)) > 1e-5 {
		t.Errorf("origin projects to (%v, %v), want (0, 0)", x, y)
	}
}

func TestCameraDefaultSceneVisible(t *testing.T) {
	cam := DefaultCamera(float32(DefaultWidth) / float32(DefaultHeight))
	project := cam.Projector()
	for _, p := range []Vec2{V2(0, 67.5), V2(0, -67.5), V2(35, 32.5), V2(-35, -32.5)} {
		x, y, ok := project(p)
		if !ok || x < -1 || x > 1 || y < -1 || y > 1 {
			t.Errorf("point %+v projects to (%v, %v, %v), want inside the frame", p, x, y, ok)
		}
	}
	// +y in simulation space is up on screen.
	_, y, _ := project(V2(0, 10))
	if y <= 0 {
		t.Errorf("y = %v, want > 0", y)
	}
}

func TestCameraDepthRange(t *testing.T) {
	cam := DefaultCamera(1)
	clip := cam.ViewProjection().Transform(0, 0, 0, 1)
	z := clip[2] / clip[3]
	if z < 0 || z > 1 {
		t.Errorf("depth of plane = %v, want in [0, 1]", z)
	}

	near := cam
	near.Far = 100
	if _, _, ok := near.Project(V2(0, 0)); ok {
		t.Error("plane beyond far clip should not be visible")
	}
}

func TestCameraBytes(t *testing.T) {
	cam := DefaultCamera(0.5)
	b := cam.Bytes()
	if len(b) != 64 {
		t.Fatalf("len = %d, want 64", len(b))
	}
	vp := cam.ViewProjection()
	got := BytesFloat32(b)
	for i := range vp {
		if got[i] != vp[i] {
			t.Fatalf("element %d = %v, want %v", i, got[i], vp[i])
		}
	}
}
