package encoder

import (
	"errors"
	"fmt"
)

// Sentinel errors for malformed input.
var (
	// ErrNilFrame is returned when no frame was captured.
	ErrNilFrame = errors.New("encoder: nil frame")

	// ErrEmptyFrame is returned for zero-sized frames.
	ErrEmptyFrame = errors.New("encoder: empty frame")

	// ErrMalformedFrame is returned when the pixel data does not match its bounds.
	ErrMalformedFrame = errors.New("encoder: malformed frame")
)

// EncodeError is returned by Encode. It is a per-tick, non-fatal failure.
type EncodeError struct {
	Err error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error {
	return e.Err
}
