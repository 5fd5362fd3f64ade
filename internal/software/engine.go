package software

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/nbody"
)

// minChunk is the smallest number of bodies handed to one goroutine.
const minChunk = 64

// Engine integrates bodies with direct pairwise gravity.
type Engine struct {
	physics nbody.Physics

	pos  []nbody.Vec2
	vel  []nbody.Vec2
	mass []float32
	acc  []nbody.Vec2

	workers int
	steps   uint64
}

// NewEngine copies bodies into a new engine.
func NewEngine(bodies []nbody.Body, physics nbody.Physics) (*Engine, error) {
	if len(bodies) == 0 {
		return nil, nbody.ErrNoBodies
	}
	n := len(bodies)
	e := &Engine{
		physics: physics,
		pos:     make([]nbody.Vec2, n),
		vel:     make([]nbody.Vec2, n),
		mass:    make([]float32, n),
		acc:     make([]nbody.Vec2, n),
		workers: runtime.GOMAXPROCS(0),
	}
	for i, b := range bodies {
		e.pos[i] = b.Position
		e.vel[i] = b.Velocity
		e.mass[i] = b.Mass
	}
	return e, nil
}

// Count returns the number of bodies.
func (e *Engine) Count() int { return len(e.pos) }

// Steps returns the number of completed steps.
func (e *Engine) Steps() uint64 { return e.steps }

// Physics returns the integration constants.
func (e *Engine) Physics() nbody.Physics { return e.physics }

// Step advances every body by one time step. All accelerations are
// computed from the positions at the start of the step before any body
// moves.
func (e *Engine) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return nbody.Fatal("step", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	n := len(e.pos)
	chunk := max(minChunk, (n+e.workers-1)/e.workers)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.accelerate(start, end)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nbody.Fatal("step", err)
	}

	dt := e.physics.Dt
	gdt := e.physics.G * dt
	for i := range e.pos {
		e.vel[i] = e.vel[i].Add(e.acc[i].Mul(gdt))
		e.pos[i] = e.pos[i].Add(e.vel[i].Mul(dt))
	}
	e.steps++
	return nil
}

// accelerate fills acc[start:end] with the unscaled softened acceleration.
func (e *Engine) accelerate(start, end int) {
	eps2 := e.physics.Softening * e.physics.Softening
	for i := start; i < end; i++ {
		p := e.pos[i]
		var acc nbody.Vec2
		for j, q := range e.pos {
			if j == i {
				continue
			}
			d := q.Sub(p)
			inv := invSqrt(d.Dot(d) + eps2)
			acc = acc.Add(d.Mul(e.mass[j] * inv * inv * inv))
		}
		e.acc[i] = acc
	}
}

// PairAcceleration returns the acceleration body a receives from body b.
func PairAcceleration(a, b nbody.Body, physics nbody.Physics) nbody.Vec2 {
	d := b.Position.Sub(a.Position)
	inv := invSqrt(d.Dot(d) + physics.Softening*physics.Softening)
	return d.Mul(physics.G * b.Mass * inv * inv * inv)
}

// PairForce returns the force body a receives from body b. It is equal
// and opposite to PairForce(b, a).
func PairForce(a, b nbody.Body, physics nbody.Physics) nbody.Vec2 {
	return PairAcceleration(a, b, physics).Mul(a.Mass)
}

func invSqrt(x float32) float32 {
	return float32(1 / math.Sqrt(float64(x)))
}

// Positions returns a copy of the current positions.
func (e *Engine) Positions() []nbody.Vec2 {
	out := make([]nbody.Vec2, len(e.pos))
	copy(out, e.pos)
	return out
}

// Bodies returns the current state of every body.
func (e *Engine) Bodies() []nbody.Body {
	out := make([]nbody.Body, len(e.pos))
	for i := range out {
		out[i] = nbody.Body{Position: e.pos[i], Mass: e.mass[i], Velocity: e.vel[i]}
	}
	return out
}
