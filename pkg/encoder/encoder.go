// Package encoder turns captured frames into compressed payloads for dispatch.
//
// An Encoder is stateless apart from its configuration: the same input image
// and configuration always produce the same bytes.
package encoder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// Format is the payload image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// MIME returns the content type label for the format.
func (f Format) MIME() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Ext returns the file extension used in dispatch filenames.
func (f Format) Ext() string {
	if f == FormatPNG {
		return "png"
	}
	return "jpg"
}

// Config controls output format, quality and size.
type Config struct {
	Format  Format
	Quality int // 1-100, JPEG only

	// Target size. Zero keeps the source dimension.
	Width  int
	Height int
}

// DefaultConfig matches the live sampler's 320x240 JPEG at quality 60.
func DefaultConfig() Config {
	return Config{
		Format:  FormatJPEG,
		Quality: 60,
		Width:   320,
		Height:  240,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Format {
	case FormatJPEG, FormatPNG:
	default:
		return fmt.Errorf("encoder: unsupported format %q", c.Format)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("encoder: quality must be between 1 and 100, got %d", c.Quality)
	}
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("encoder: negative target size %dx%d", c.Width, c.Height)
	}
	return nil
}

// Frame is an encoded frame ready for dispatch. It is never mutated after
// Encode returns.
type Frame struct {
	Data    []byte
	MIME    string
	Width   int
	Height  int
	Quality int // JPEG quality; 0 for PNG
	format  Format
}

// Filename returns the tag sent alongside the payload, e.g. "frame.jpg".
func (f *Frame) Filename() string {
	return "frame." + f.format.Ext()
}

// Base64 returns the payload as standard base64.
func (f *Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// Size returns the payload size in bytes.
func (f *Frame) Size() int {
	return len(f.Data)
}

// Encoder encodes frames with a fixed configuration.
type Encoder struct {
	cfg Config
}

// New creates an encoder. The configuration is validated up front so that
// Encode only fails on bad input.
func New(cfg Config) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{cfg: cfg}, nil
}

// Config returns the encoder configuration.
func (e *Encoder) Config() Config {
	return e.cfg
}

// Encode scales img to the target size and compresses it.
func (e *Encoder) Encode(img image.Image) (f *Frame, err error) {
	if img == nil {
		return nil, &EncodeError{Err: ErrNilFrame}
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &EncodeError{Err: ErrEmptyFrame}
	}

	// Malformed images (e.g. short Pix slices) panic inside the codecs.
	defer func() {
		if r := recover(); r != nil {
			f = nil
			err = &EncodeError{Err: fmt.Errorf("%w: %v", ErrMalformedFrame, r)}
		}
	}()

	w, h := e.targetSize(b)
	src := img
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		src = dst
	}

	var buf bytes.Buffer
	switch e.cfg.Format {
	case FormatPNG:
		err = png.Encode(&buf, src)
	default:
		err = jpeg.Encode(&buf, src, &jpeg.Options{Quality: e.cfg.Quality})
	}
	if err != nil {
		return nil, &EncodeError{Err: err}
	}

	quality := e.cfg.Quality
	if e.cfg.Format == FormatPNG {
		quality = 0 // lossless
	}

	return &Frame{
		Data:    buf.Bytes(),
		MIME:    e.cfg.Format.MIME(),
		Width:   w,
		Height:  h,
		Quality: quality,
		format:  e.cfg.Format,
	}, nil
}

// targetSize resolves zero target dimensions to the source dimensions.
func (e *Encoder) targetSize(b image.Rectangle) (int, int) {
	w, h := e.cfg.Width, e.cfg.Height
	if w == 0 {
		w = b.Dx()
	}
	if h == 0 {
		h = b.Dy()
	}
	return w, h
}
