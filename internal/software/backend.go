package software

import (
	"context"
	"sync"

	"github.com/gogpu/nbody"
)

// BackendName is the identifier of the CPU backend.
const BackendName = "software"

// Backend runs the engine and renderer of this package.
type Backend struct {
	mu       sync.Mutex
	engine   *Engine
	renderer *Renderer
}

// NewBackend builds a CPU backend for cfg over bodies.
func NewBackend(cfg nbody.Config, bodies []nbody.Body) (*Backend, error) {
	engine, err := NewEngine(bodies, cfg.Physics)
	if err != nil {
		return nil, nbody.Fatal("init", err)
	}
	renderer, err := NewRenderer(cfg.Width, cfg.Height, cfg.Preset, cfg.SplatIntensity, cfg.SplatSize)
	if err != nil {
		return nil, nbody.Fatal("init", err)
	}
	slogger().Info("software backend ready",
		"bodies", engine.Count(),
		"dt", engine.Physics().Dt,
		"preset", string(cfg.Preset))
	return &Backend{engine: engine, renderer: renderer}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return BackendName }

// Bodies returns the number of simulated bodies.
func (b *Backend) Bodies() int { return b.engine.Count() }

// Step advances the simulation by one time step.
func (b *Backend) Step(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Step(ctx)
}

// Render draws the current positions with cam.
func (b *Backend) Render(ctx context.Context, cam nbody.Camera) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, nbody.Fatal("render", err)
	}
	return b.renderer.Render(b.engine.pos, cam), nil
}

// Positions returns a copy of the current positions.
func (b *Backend) Positions(context.Context) ([]nbody.Vec2, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engine.Positions(), nil
}

// Close is a no-op; the backend holds no external resources.
func (b *Backend) Close() error { return nil }
