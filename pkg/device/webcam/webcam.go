//go:build cgo

// Package webcam is an OpenCV-backed capture device.
package webcam

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-livesampler/pkg/device"
)

// Webcam opens local cameras through gocv.
type Webcam struct {
	logger *slog.Logger
}

// New creates a webcam device.
func New(logger *slog.Logger) *Webcam {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webcam{logger: logger.With("component", "webcam")}
}

// Name returns "webcam".
func (w *Webcam) Name() string {
	return "webcam"
}

// Open acquires the camera named by c.DeviceID.
func (w *Webcam) Open(ctx context.Context, c device.Constraints) (device.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c = c.WithDefaults()

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if idx, convErr := strconv.Atoi(c.DeviceID); convErr == nil {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		vc, err = gocv.OpenVideoCapture(c.DeviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", device.ErrUnavailable, c.DeviceID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", device.ErrUnavailable, c.DeviceID)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	if c.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(c.FPS))
	}

	w.logger.Info("camera opened",
		"device_id", c.DeviceID,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
	)

	return &handle{
		vc:     vc,
		mat:    gocv.NewMat(),
		logger: w.logger,
		id:     c.DeviceID,
	}, nil
}

type handle struct {
	mu       sync.Mutex
	vc       *gocv.VideoCapture
	mat      gocv.Mat
	logger   *slog.Logger
	id       string
	released bool
}

func (h *handle) Snapshot() (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, device.ErrReleased
	}
	if ok := h.vc.Read(&h.mat); !ok {
		return nil, fmt.Errorf("%w: read failed on %s", device.ErrDeviceLost, h.id)
	}
	if h.mat.Empty() {
		return nil, fmt.Errorf("webcam: empty frame from %s", h.id)
	}

	img, err := h.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("webcam: convert frame: %w", err)
	}
	return img, nil
}

func (h *handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return device.ErrReleased
	}
	h.released = true

	matErr := h.mat.Close()
	capErr := h.vc.Close()
	h.logger.Info("camera released", "device_id", h.id)

	if capErr != nil {
		return fmt.Errorf("webcam: close capture: %w", capErr)
	}
	if matErr != nil {
		return fmt.Errorf("webcam: close mat: %w", matErr)
	}
	return nil
}

var _ device.Device = (*Webcam)(nil)
