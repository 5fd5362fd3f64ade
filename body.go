package nbody

import (
	"encoding/binary"
	"math"
)

// Body is a point mass. Bodies never merge, spawn or disappear during a run.
type Body struct {
	Position Vec2
	Mass     float32
	Velocity Vec2
}

// Columns splits bodies into the three device-side arrays in body order:
// positions and velocities as interleaved xy pairs, masses as scalars.
func Columns(bodies []Body) (positions, masses, velocities []float32) {
	positions = make([]float32, 0, 2*len(bodies))
	masses = make([]float32, 0, len(bodies))
	velocities = make([]float32, 0, 2*len(bodies))
	for _, b := range bodies {
		positions = append(positions, b.Position.X, b.Position.Y)
		masses = append(masses, b.Mass)
		velocities = append(velocities, b.Velocity.X, b.Velocity.Y)
	}
	return positions, masses, velocities
}

// Float32Bytes encodes values as little-endian IEEE 754, the layout
// WGSL storage buffers expect.
func Float32Bytes(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// BytesFloat32 decodes a little-endian float32 array.
// Trailing bytes that do not form a whole value are ignored.
func BytesFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out
}

// TotalMomentum returns the sum of mass times velocity over all bodies.
func TotalMomentum(bodies []Body) Vec2 {
	var px, py float64
	for _, b := range bodies {
		px += float64(b.Mass) * float64(b.Velocity.X)
		py += float64(b.Mass) * float64(b.Velocity.Y)
	}
	return Vec2{X: float32(px), Y: float32(py)}
}
