//go:build !cgo

package webcam

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-livesampler/pkg/device"
)

// Webcam is unavailable without cgo; Open always fails.
type Webcam struct{}

// New creates a webcam device that cannot be opened.
func New(logger *slog.Logger) *Webcam {
	return &Webcam{}
}

// Name returns "webcam".
func (w *Webcam) Name() string {
	return "webcam"
}

// Open returns ErrUnavailable.
func (w *Webcam) Open(ctx context.Context, c device.Constraints) (device.Handle, error) {
	return nil, fmt.Errorf("%w: webcam support requires cgo and OpenCV", device.ErrUnavailable)
}

var _ device.Device = (*Webcam)(nil)
