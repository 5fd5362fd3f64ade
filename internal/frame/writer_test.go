package frame

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestWriterWritesNamedFrames(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewWriter(context.Background(), Options{Dir: dir, Format: "png", Width: 4, Height: 3, Concurrency: 2})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	for _, i := range []int{0, 7, 12345} {
		if err := w.Submit(i, gradient(4, 3)); err != nil {
			t.Fatalf("Submit(%d) failed: %v", i, err)
		}
	}
	if err := w.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if w.Written() != 3 {
		t.Errorf("Written() = %d, want 3", w.Written())
	}
	if w.Bytes() <= 0 {
		t.Errorf("Bytes() = %d, want > 0", w.Bytes())
	}

	for _, name := range []string{"00000.png", "00007.png", "12345.png"} {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
			t.Errorf("%s bounds = %v, want 4x3", name, b)
		}
	}
}

func TestWriterPath(t *testing.T) {
	w, err := NewWriter(context.Background(), Options{Dir: t.TempDir(), Format: "jpg", Width: 1, Height: 1})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if got := filepath.Base(w.Path(42)); got != "00042.jpeg" {
		t.Errorf("Path(42) = %q, want 00042.jpeg", got)
	}
}

func TestWriterRejectsWrongSize(t *testing.T) {
	w, err := NewWriter(context.Background(), Options{Dir: t.TempDir(), Format: "png", Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := w.Submit(0, make([]byte, 8)); err == nil {
		t.Error("Submit accepted a short pixel buffer")
	}
	if err := w.Wait(); err != nil {
		t.Errorf("Wait failed: %v", err)
	}
}

func TestWriterFailureStopsSubmits(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(context.Background(), Options{Dir: dir, Format: "png", Width: 2, Height: 2, Concurrency: 1})
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	// A directory in the way of the frame file makes the write fail.
	if err := os.Mkdir(w.Path(1), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := w.Submit(1, gradient(2, 2)); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := w.Wait(); err == nil {
		t.Fatal("Wait returned nil after a failed write")
	}
	if err := w.Submit(2, gradient(2, 2)); err == nil {
		t.Error("Submit succeeded after a failed write")
	}
}

func TestNewWriterErrors(t *testing.T) {
	if _, err := NewWriter(context.Background(), Options{Dir: t.TempDir(), Format: "gif"}); err == nil {
		t.Error("NewWriter accepted an unknown format")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewWriter(context.Background(), Options{Dir: filepath.Join(file, "sub"), Format: "png"}); err == nil {
		t.Error("NewWriter succeeded below a regular file")
	}
}
