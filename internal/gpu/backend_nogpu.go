//go:build nogpu

package gpu

import (
	"context"
	"errors"

	"github.com/gogpu/nbody"
)

// BackendName is the identifier of the GPU backend.
const BackendName = "gpu"

var (
	// ErrNilHALDevice is returned when a nil device is passed in.
	ErrNilHALDevice = errors.New("gpu: HAL device is nil")

	// ErrNoGPU is returned by every constructor in nogpu builds.
	ErrNoGPU = errors.New("gpu: built without GPU support")
)

// Backend is unavailable in nogpu builds.
type Backend struct{}

// NewBackend always fails with ErrNoGPU.
func NewBackend(nbody.Config, []nbody.Body) (*Backend, error) {
	return nil, nbody.Fatal("init", ErrNoGPU)
}

func (b *Backend) Name() string { return BackendName }
func (b *Backend) Bodies() int  { return 0 }

func (b *Backend) Step(context.Context) error {
	return nbody.Fatal("step", ErrNoGPU)
}

func (b *Backend) Render(context.Context, nbody.Camera) ([]byte, error) {
	return nil, nbody.Fatal("render", ErrNoGPU)
}

func (b *Backend) Positions(context.Context) ([]nbody.Vec2, error) {
	return nil, ErrNoGPU
}

func (b *Backend) Close() error { return nil }
