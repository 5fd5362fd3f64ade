package nbody

import (
	"encoding/binary"
	"math"
)

// Mat4 is a 4x4 float32 matrix in column-major order, the layout WGSL
// expects for mat4x4<f32> uniforms.
type Mat4 [16]float32

// Identity4 returns the identity matrix.
func Identity4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// openGLToWGPU remaps clip-space depth from [-w, w] to [0, w].
var openGLToWGPU = Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// At returns the element at row r and column c.
func (m Mat4) At(r, c int) float32 {
	return m[c*4+r]
}

// Multiply returns m * n.
func (m Mat4) Multiply(n Mat4) Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+r] * n[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// Transform returns m * (x, y, z, w).
func (m Mat4) Transform(x, y, z, w float32) [4]float32 {
	var out [4]float32
	for r := 0; r < 4; r++ {
		out[r] = m[r]*x + m[4+r]*y + m[8+r]*z + m[12+r]*w
	}
	return out
}

// Bytes returns the little-endian encoding of m (64 bytes).
func (m Mat4) Bytes() []byte {
	out := make([]byte, 64)
	for i, v := range m {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// LookAtRH returns a right-handed view matrix.
func LookAtRH(eye, target, up [3]float32) Mat4 {
	f := normalize3(sub3(target, eye))
	s := normalize3(cross3(f, up))
	u := cross3(s, f)
	return Mat4{
		s[0], u[0], -f[0], 0,
		s[1], u[1], -f[1], 0,
		s[2], u[2], -f[2], 0,
		-dot3(s, eye), -dot3(u, eye), dot3(f, eye), 1,
	}
}

// PerspectiveRH returns an OpenGL-convention projection matrix.
// fovY is in radians.
func PerspectiveRH(fovY, aspect, near, far float32) Mat4 {
	f := float32(1 / math.Tan(float64(fovY)/2))
	nf := 1 / (near - far)
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, -1,
		0, 0, 2 * far * near * nf, 0,
	}
}

// Camera is a perspective camera looking at the simulation plane (z = 0).
type Camera struct {
	Eye    [3]float32 `yaml:"eye"`
	Target [3]float32 `yaml:"target"`
	Up     [3]float32 `yaml:"up"`

	// FovY is the vertical field of view in degrees.
	FovY   float32 `yaml:"fov_y"`
	Aspect float32 `yaml:"aspect"`
	Near   float32 `yaml:"near"`
	Far    float32 `yaml:"far"`
}

// DefaultCamera returns a camera 350 units in front of the origin.
// The far plane sits beyond the eye distance so the z = 0 plane is visible.
func DefaultCamera(aspect float32) Camera {
	return Camera{
		Eye:    [3]float32{0, 0, -350},
		Target: [3]float32{0, 0, 0},
		Up:     [3]float32{0, 1, 0},
		FovY:   45,
		Aspect: aspect,
		Near:   0.1,
		Far:    1000,
	}
}

// ViewProjection returns the combined view-projection matrix with the
// OpenGL-to-WebGPU depth correction applied.
func (c Camera) ViewProjection() Mat4 {
	view := LookAtRH(c.Eye, c.Target, c.Up)
	proj := PerspectiveRH(float32(degToRad(float64(c.FovY))), c.Aspect, c.Near, c.Far)
	return openGLToWGPU.Multiply(proj).Multiply(view)
}

// Bytes returns the 64-byte uniform payload for c.
func (c Camera) Bytes() []byte {
	return c.ViewProjection().Bytes()
}

// Project maps a point on the simulation plane to normalized device
// coordinates. ok is false when the point is clipped by the frustum.
func (c Camera) Project(p Vec2) (x, y float32, ok bool) {
	return projectWith(c.ViewProjection(), p)
}

// Projector returns a function equivalent to Project that reuses one
// view-projection matrix.
func (c Camera) Projector() func(Vec2) (x, y float32, ok bool) {
	vp := c.ViewProjection()
	return func(p Vec2) (float32, float32, bool) {
		return projectWith(vp, p)
	}
}

func projectWith(vp Mat4, p Vec2) (float32, float32, bool) {
	clip := vp.Transform(p.X, p.Y, 0, 1)
	w := clip[3]
	if w <= 0 {
		return 0, 0, false
	}
	z := clip[2] / w
	if z < 0 || z > 1 {
		return 0, 0, false
	}
	return clip[0] / w, clip[1] / w, true
}

func sub3(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross3(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize3(v [3]float32) [3]float32 {
	l := float32(math.Sqrt(float64(dot3(v, v))))
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}
