//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/nbody"
)

func testConfig() nbody.Config {
	cfg := nbody.DefaultConfig()
	cfg.Width, cfg.Height = 32, 24
	return cfg
}

func TestBackendName(t *testing.T) {
	b := &Backend{}
	if b.Name() != "gpu" {
		t.Errorf("Name() = %q, want %q", b.Name(), "gpu")
	}
}

func TestBackendStepRender(t *testing.T) {
	dev := newNoopDevice(t)
	cfg := testConfig()
	bodies := testBodies(t)

	b, err := NewBackendWithDevice(dev, cfg, bodies)
	if err != nil {
		t.Fatalf("NewBackendWithDevice failed: %v", err)
	}
	defer b.Close()

	if b.Bodies() != len(bodies) {
		t.Errorf("Bodies() = %d, want %d", b.Bodies(), len(bodies))
	}
	ctx := context.Background()
	if err := b.Step(ctx); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	pixels, err := b.Render(ctx, cfg.ViewCamera())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(pixels) != 4*32*24 {
		t.Errorf("len(pixels) = %d, want %d", len(pixels), 4*32*24)
	}
}

func TestBackendClose(t *testing.T) {
	dev := newNoopDevice(t)
	b, err := NewBackendWithDevice(dev, testConfig(), testBodies(t))
	if err != nil {
		t.Fatalf("NewBackendWithDevice failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if err := b.Step(context.Background()); !errors.Is(err, ErrEngineClosed) || !nbody.IsFatal(err) {
		t.Errorf("Step after Close: error = %v, want fatal ErrEngineClosed", err)
	}
	if _, err := b.Render(context.Background(), nbody.DefaultCamera(1)); !errors.Is(err, ErrRendererClosed) {
		t.Errorf("Render after Close: error = %v, want ErrRendererClosed", err)
	}
	if b.Bodies() != 0 {
		t.Errorf("Bodies() after Close = %d, want 0", b.Bodies())
	}
}

func TestNewBackendWithDeviceErrors(t *testing.T) {
	if _, err := NewBackendWithDevice(nil, testConfig(), testBodies(t)); !errors.Is(err, ErrNilHALDevice) {
		t.Errorf("nil device: error = %v, want ErrNilHALDevice", err)
	}

	dev := newNoopDevice(t)
	_, err := NewBackendWithDevice(dev, testConfig(), nil)
	if !errors.Is(err, nbody.ErrNoBodies) || !nbody.IsFatal(err) {
		t.Errorf("no bodies: error = %v, want fatal ErrNoBodies", err)
	}
}

func TestBackendMemoryBudget(t *testing.T) {
	dev := newNoopDevice(t)
	cfg := testConfig()
	b, err := NewBackendWithDevice(dev, cfg, testBodies(t))
	if err != nil {
		t.Fatalf("NewBackendWithDevice failed: %v", err)
	}
	stats := b.MemoryStats()
	// Target, density and padded staging dominate: 32x24 RGBA8 each.
	if want := uint64(3 * 32 * 24 * 4); stats.UsedBytes < want {
		t.Errorf("UsedBytes = %d, want at least %d", stats.UsedBytes, want)
	}
	b.Close()
	if used := dev.Memory().Stats().UsedBytes; used != 0 {
		t.Errorf("UsedBytes after Close = %d, want 0", used)
	}
}

func TestBackendMemoryBudgetExceeded(t *testing.T) {
	dev := newNoopDevice(t)
	cfg := testConfig()
	cfg.Width, cfg.Height = 4096, 4096
	cfg.MemoryBudgetMB = 16

	_, err := NewBackendWithDevice(dev, cfg, testBodies(t))
	if !errors.Is(err, ErrMemoryBudgetExceeded) || !nbody.IsFatal(err) {
		t.Errorf("error = %v, want fatal ErrMemoryBudgetExceeded", err)
	}
	if used := dev.Memory().Stats().UsedBytes; used != 0 {
		t.Errorf("UsedBytes after failed init = %d, want 0", used)
	}
}
