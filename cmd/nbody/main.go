// Command nbody simulates colliding galaxies and writes one image per
// iteration.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gogpu/nbody"
	"github.com/gogpu/nbody/internal/driver"
	"github.com/gogpu/nbody/internal/frame"
	"github.com/gogpu/nbody/internal/gpu"
	"github.com/gogpu/nbody/internal/metrics"
	"github.com/gogpu/nbody/internal/software"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nbody: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "YAML scenario file")
		width      = flag.Int("width", nbody.DefaultWidth, "image width")
		height     = flag.Int("height", nbody.DefaultHeight, "image height")
		frames     = flag.Int("frames", 0, "number of iterations, 0 runs until interrupted")
		outDir     = flag.String("out", "output", "output directory")
		format     = flag.String("format", "png", "image format: png, jpeg, tiff, bmp")
		backend    = flag.String("backend", string(nbody.BackendAuto), "backend: auto, gpu, software")
		preset     = flag.String("preset", string(nbody.PresetAccumulateTonemap), "render preset: accumulate-tonemap, direct-alpha")
		seed       = flag.Uint64("seed", 0, "random seed, 0 for a random scene")
		metricsOut = flag.String("metrics", "", "write Prometheus metrics to this file")
		verbose    = flag.Bool("v", false, "verbose logging")
		quiet      = flag.Bool("q", false, "suppress per-iteration progress")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	nbody.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := nbody.DefaultConfig()
	if *configPath != "" {
		loaded, err := nbody.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags given on the command line override the scenario file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "frames":
			cfg.Frames = *frames
		case "out":
			cfg.OutputDir = *outDir
		case "format":
			cfg.Format = *format
		case "backend":
			cfg.Backend = nbody.Backend(*backend)
		case "preset":
			cfg.Preset = nbody.Preset(*preset)
		case "seed":
			cfg.Seed = *seed
		case "metrics":
			cfg.MetricsFile = *metricsOut
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bodies := nbody.GenerateScene(cfg.Galaxies, cfg.Clouds, cfg.Rand())

	b, err := openBackend(cfg, bodies)
	if err != nil {
		return err
	}
	defer b.Close()

	writer, err := frame.NewWriter(ctx, frame.Options{
		Dir:         cfg.OutputDir,
		Format:      cfg.Format,
		Quality:     cfg.JPEGQuality,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Concurrency: cfg.Writers,
	})
	if err != nil {
		return err
	}

	rec := metrics.NewRecorder(b.Name())
	opts := driver.Options{
		Frames:   cfg.Frames,
		Camera:   cfg.ViewCamera(),
		Recorder: rec,
	}
	if !*quiet {
		opts.Progress = os.Stdout
	}

	_, runErr := driver.Run(ctx, b, writer, opts)
	waitErr := writer.Wait()
	if errors.Is(waitErr, context.Canceled) && ctx.Err() != nil {
		waitErr = nil
	}

	if cfg.MetricsFile != "" {
		if err := rec.Flush(cfg.MetricsFile); err != nil {
			nbody.Logger().Warn("metrics not written", "err", err)
		}
	}
	return errors.Join(runErr, waitErr)
}

// openBackend builds the backend selected by cfg. In auto mode a GPU that
// fails to initialize falls back to the CPU.
func openBackend(cfg nbody.Config, bodies []nbody.Body) (driver.Backend, error) {
	if cfg.Backend == nbody.BackendSoftware {
		return openSoftware(cfg, bodies)
	}
	b, err := gpu.NewBackend(cfg, bodies)
	if err == nil {
		return b, nil
	}
	if cfg.Backend == nbody.BackendGPU {
		return nil, err
	}
	nbody.Logger().Warn("GPU unavailable, using software backend", "err", err)
	return openSoftware(cfg, bodies)
}

func openSoftware(cfg nbody.Config, bodies []nbody.Body) (driver.Backend, error) {
	b, err := software.NewBackend(cfg, bodies)
	if err != nil {
		return nil, err
	}
	return b, nil
}
