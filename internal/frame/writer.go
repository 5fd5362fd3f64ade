package frame

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/nbody"
)

// Writer encodes and saves frames in the background, with at most a fixed
// number of frames in flight. Submit blocks while that limit is reached.
type Writer struct {
	dir           string
	ext           string
	encode        Encoder
	width, height int

	group *errgroup.Group
	ctx   context.Context

	written atomic.Int64
	bytes   atomic.Int64
}

// Options configures a Writer.
type Options struct {
	Dir           string
	Format        string
	Quality       int
	Width, Height int

	// Concurrency bounds the number of frames encoded at once.
	Concurrency int
}

// NewWriter creates the output directory and returns a writer bound to ctx.
// The first failed write cancels the writer's context.
func NewWriter(ctx context.Context, opts Options) (*Writer, error) {
	ext, err := Extension(opts.Format)
	if err != nil {
		return nil, err
	}
	enc, err := NewEncoder(opts.Format, opts.Quality)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	return &Writer{
		dir:    opts.Dir,
		ext:    ext,
		encode: enc,
		width:  opts.Width,
		height: opts.Height,
		group:  g,
		ctx:    gctx,
	}, nil
}

func logger() *slog.Logger { return nbody.Logger().With("component", "frame") }

// Path returns the file path of frame index.
func (w *Writer) Path(index int) string {
	return filepath.Join(w.dir, nbody.FrameName(index, w.ext))
}

// Submit schedules pix to be saved as frame index. The writer takes
// ownership of pix. Submit returns an error once a previous write failed
// or the writer's context is done.
func (w *Writer) Submit(index int, pix []byte) error {
	img, err := Image(pix, w.width, w.height)
	if err != nil {
		return err
	}
	if err := w.ctx.Err(); err != nil {
		return fmt.Errorf("frame %d not written: %w", index, context.Cause(w.ctx))
	}
	w.group.Go(func() error {
		return w.save(index, img)
	})
	return nil
}

func (w *Writer) save(index int, img *image.RGBA) error {
	path := w.Path(index)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	if err := w.encode(bw, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	info, statErr := f.Stat()
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if statErr == nil {
		w.bytes.Add(info.Size())
	}
	w.written.Add(1)
	logger().Debug("frame written", "path", path)
	return nil
}

// Written returns the number of frames saved so far.
func (w *Writer) Written() int64 { return w.written.Load() }

// Bytes returns the total size of the saved files.
func (w *Writer) Bytes() int64 { return w.bytes.Load() }

// Wait blocks until every submitted frame is saved and returns the first
// write error.
func (w *Writer) Wait() error {
	return w.group.Wait()
}
