package software

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/gogpu/nbody"
)

// Renderer errors.
var (
	ErrInvalidTargetSize = errors.New("software: invalid render target size")
	ErrUnknownPreset     = errors.New("software: unknown render preset")
)

// Splat triangle corners, unit circumradius, y up.
var splatCorners = [3][2]float32{
	{0, 1},
	{-0.8660254, -0.5},
	{0.8660254, -0.5},
}

// Color of a body in the direct-alpha preset.
var directColor = [3]float32{0.85, 0.9, 1.0}

// Renderer rasterizes bodies into RGBA8 pixels on the CPU.
type Renderer struct {
	width, height int
	preset        nbody.Preset
	intensity     float32
	size          float32

	// density is the per-pixel splat accumulation (accumulate-tonemap).
	density []float32
	// rgb is the blended color buffer (direct-alpha).
	rgb []float32

	rast *vector.Rasterizer
	mask *image.Alpha
}

// NewRenderer allocates a width x height renderer for preset.
// size is the splat circumradius in pixels, intensity the per-splat weight.
func NewRenderer(width, height int, preset nbody.Preset, intensity, size float32) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTargetSize, width, height)
	}
	r := &Renderer{
		width:     width,
		height:    height,
		preset:    preset,
		intensity: intensity,
		size:      size,
		rast:      vector.NewRasterizer(1, 1),
	}
	switch preset {
	case nbody.PresetAccumulateTonemap:
		r.density = make([]float32, width*height)
	case nbody.PresetDirectAlpha:
		r.rgb = make([]float32, 3*width*height)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, preset)
	}
	r.rast.DrawOp = draw.Src
	return r, nil
}

// Size returns the target size in pixels.
func (r *Renderer) Size() (width, height int) { return r.width, r.height }

// Render draws positions as seen by cam and returns 4*W*H bytes of RGBA8
// pixels, rows top to bottom.
func (r *Renderer) Render(positions []nbody.Vec2, cam nbody.Camera) []byte {
	r.clear()
	project := cam.Projector()
	for _, p := range positions {
		x, y, ok := project(p)
		if !ok {
			continue
		}
		// Normalized device coordinates to pixels, row 0 at the top.
		px := (x*0.5 + 0.5) * float32(r.width)
		py := (0.5 - y*0.5) * float32(r.height)
		r.splat(px, py)
	}
	return r.resolve()
}

func (r *Renderer) clear() {
	clear(r.density)
	clear(r.rgb)
}

// splat rasterizes one triangle centered at (px, py) and adds its
// coverage-weighted intensity to the covered pixels.
func (r *Renderer) splat(px, py float32) {
	x0 := int(math.Floor(float64(px - r.size)))
	y0 := int(math.Floor(float64(py - r.size)))
	x1 := int(math.Ceil(float64(px + r.size)))
	y1 := int(math.Ceil(float64(py + r.size)))
	if x1 <= 0 || y1 <= 0 || x0 >= r.width || y0 >= r.height {
		return
	}
	w, h := x1-x0, y1-y0
	if w <= 0 || h <= 0 {
		return
	}

	r.rast.Reset(w, h)
	r.rast.DrawOp = draw.Src
	ox, oy := px-float32(x0), py-float32(y0)
	for i, c := range splatCorners {
		cx := ox + c[0]*r.size
		cy := oy - c[1]*r.size
		if i == 0 {
			r.rast.MoveTo(cx, cy)
		} else {
			r.rast.LineTo(cx, cy)
		}
	}
	r.rast.ClosePath()

	bounds := image.Rect(0, 0, w, h)
	if r.mask == nil || !r.mask.Rect.Eq(bounds) {
		r.mask = image.NewAlpha(bounds)
	}
	r.rast.Draw(r.mask, bounds, image.Opaque, image.Point{})

	for my := 0; my < h; my++ {
		ty := y0 + my
		if ty < 0 || ty >= r.height {
			continue
		}
		for mx := 0; mx < w; mx++ {
			tx := x0 + mx
			if tx < 0 || tx >= r.width {
				continue
			}
			cov := r.mask.Pix[my*r.mask.Stride+mx]
			if cov == 0 {
				continue
			}
			weight := r.intensity * float32(cov) / 255
			r.blend(ty*r.width+tx, weight)
		}
	}
}

func (r *Renderer) blend(idx int, weight float32) {
	if r.density != nil {
		r.density[idx] += weight
		return
	}
	a := min(weight, 1)
	for c := 0; c < 3; c++ {
		dst := &r.rgb[3*idx+c]
		*dst = directColor[c]*a + *dst*(1-a)
	}
}

func (r *Renderer) resolve() []byte {
	out := make([]byte, 4*r.width*r.height)
	for i := 0; i < r.width*r.height; i++ {
		var cr, cg, cb float32
		if r.density != nil {
			cr, cg, cb = ToneMap(r.density[i])
		} else {
			cr, cg, cb = r.rgb[3*i], r.rgb[3*i+1], r.rgb[3*i+2]
		}
		out[4*i] = unorm8(cr)
		out[4*i+1] = unorm8(cg)
		out[4*i+2] = unorm8(cb)
		out[4*i+3] = 255
	}
	return out
}

// ToneMap maps a splat density to color. Densities are clamped to [0, 1]
// first, as they are by the RGBA8 accumulation target on the GPU.
func ToneMap(density float32) (r, g, b float32) {
	d := float64(min(max(density, 0), 1))
	return float32(math.Sqrt(d)), float32(math.Pow(d, 1.2)), float32(math.Pow(d, 0.8) * 0.9)
}

func unorm8(v float32) uint8 {
	v = min(max(v, 0), 1)
	return uint8(v*255 + 0.5)
}
