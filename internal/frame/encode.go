// Package frame encodes rendered frames and writes them to disk.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ErrUnknownFormat is returned for an image format without an encoder.
var ErrUnknownFormat = errors.New("frame: unknown image format")

// ErrPixelSize is returned when a pixel buffer does not hold W*H RGBA8 pixels.
var ErrPixelSize = errors.New("frame: pixel buffer size mismatch")

// Encoder writes one image.
type Encoder func(w io.Writer, img image.Image) error

// Extension returns the canonical file extension of format.
func Extension(format string) (string, error) {
	switch format {
	case "png":
		return "png", nil
	case "jpeg", "jpg":
		return "jpeg", nil
	case "tiff":
		return "tiff", nil
	case "bmp":
		return "bmp", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// NewEncoder returns the encoder for format. quality only applies to JPEG.
func NewEncoder(format string, quality int) (Encoder, error) {
	switch format {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		return enc.Encode, nil
	case "jpeg", "jpg":
		opts := &jpeg.Options{Quality: quality}
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, opts)
		}, nil
	case "tiff":
		opts := &tiff.Options{Compression: tiff.Deflate}
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, opts)
		}, nil
	case "bmp":
		return bmp.Encode, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Image wraps tightly packed RGBA8 pixels, rows top to bottom, without
// copying them. Every pixel is opaque, so the buffer is also valid as
// premultiplied RGBA.
func Image(pix []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(pix) != 4*width*height {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrPixelSize, len(pix), width, height)
	}
	return &image.RGBA{
		Pix:    pix,
		Stride: 4 * width,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}
