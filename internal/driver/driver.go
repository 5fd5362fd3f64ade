// Package driver runs the simulate, render and save loop.
package driver

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/nbody"
	"github.com/gogpu/nbody/internal/metrics"
)

// Backend advances and renders one simulation.
type Backend interface {
	Name() string
	Bodies() int
	Step(ctx context.Context) error
	Render(ctx context.Context, cam nbody.Camera) ([]byte, error)
	Close() error
}

// Sink receives rendered frames. Submit takes ownership of pix.
type Sink interface {
	Submit(frame int, pix []byte) error
}

// Options configures Run.
type Options struct {
	// Frames is the number of iterations. Zero runs until ctx is done.
	Frames int

	Camera nbody.Camera

	// Progress receives one line per iteration. Nil disables it.
	Progress io.Writer

	// Recorder, when set, receives timings and frame counts.
	Recorder *metrics.Recorder
}

// Stats summarizes a run.
type Stats struct {
	Iterations int
	Written    int
	Skipped    int
	Elapsed    time.Duration
}

// Run iterates step, render and submit. Frames are numbered from 1.
//
// A skip-frame error drops that frame and the loop continues. A fatal
// error stops the loop and is returned attributed to its frame. When ctx
// is done the loop stops at the next iteration boundary and Run returns
// a nil error.
func Run(ctx context.Context, backend Backend, sink Sink, opts Options) (Stats, error) {
	var stats Stats
	start := time.Now()
	printer := message.NewPrinter(language.English)
	log := nbody.Logger().With("component", "driver", "backend", backend.Name())

	if opts.Recorder != nil {
		opts.Recorder.SetBodies(backend.Bodies())
	}
	log.Info("run started", "bodies", backend.Bodies(), "frames", opts.Frames)

	for frame := 1; opts.Frames == 0 || frame <= opts.Frames; frame++ {
		if ctx.Err() != nil {
			log.Info("run stopped", "frame", frame, "cause", context.Cause(ctx))
			break
		}
		iterStart := time.Now()

		err := iterate(ctx, backend, sink, opts, frame, &stats)
		if err != nil && stopped(ctx, err) {
			log.Info("run stopped", "frame", frame, "cause", context.Cause(ctx))
			break
		}
		stats.Iterations++
		if err != nil {
			if nbody.IsFatal(err) {
				stats.Elapsed = time.Since(start)
				return stats, attribute(err, frame)
			}
			stats.Skipped++
			op := "unknown"
			var ne *nbody.Error
			if errors.As(err, &ne) {
				op = ne.Op
			}
			if opts.Recorder != nil {
				opts.Recorder.FrameSkipped(op)
			}
			log.Warn("frame skipped", "frame", frame, "op", op, "err", err)
		}

		if opts.Progress != nil {
			printer.Fprintf(opts.Progress, "Finished iteration #%d in %.3fs. Total runtime - %v\n",
				frame, time.Since(iterStart).Seconds(), time.Since(start).Round(time.Millisecond))
		}
	}

	stats.Elapsed = time.Since(start)
	log.Info("run finished",
		"iterations", stats.Iterations,
		"written", stats.Written,
		"skipped", stats.Skipped,
		"elapsed", stats.Elapsed)
	return stats, nil
}

func iterate(ctx context.Context, backend Backend, sink Sink, opts Options, frame int, stats *Stats) error {
	t := time.Now()
	if err := backend.Step(ctx); err != nil {
		return err
	}
	if opts.Recorder != nil {
		opts.Recorder.ObserveStep(time.Since(t))
	}

	t = time.Now()
	pix, err := backend.Render(ctx, opts.Camera)
	if err != nil {
		return err
	}
	if opts.Recorder != nil {
		opts.Recorder.ObserveRender(time.Since(t))
	}

	if err := sink.Submit(frame, pix); err != nil {
		return nbody.Fatal("write", err)
	}
	stats.Written++
	if opts.Recorder != nil {
		opts.Recorder.FrameWritten()
	}
	return nil
}

// stopped reports whether err only reflects the cancellation of ctx.
func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func attribute(err error, frame int) error {
	var ne *nbody.Error
	if errors.As(err, &ne) {
		return ne.WithFrame(frame)
	}
	return nbody.Fatal("run", err).WithFrame(frame)
}
