// Package device abstracts the continuous video source a capture session
// samples from.
//
// A Device is opened with Constraints and yields a Handle. The handle is the
// only thing that holds the underlying hardware; releasing it frees the
// camera for other processes.
package device

import (
	"context"
	"image"
)

// Constraints requested when opening a device.
type Constraints struct {
	// DeviceID is a camera index ("0") or a device path ("/dev/video2").
	DeviceID string `json:"device_id,omitempty"`

	// Width and Height are the requested capture size. The device may
	// deliver a different size.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	// FPS is the requested device frame rate. Zero leaves the device default.
	FPS int `json:"fps,omitempty"`
}

// DefaultConstraints requests a 640x480 stream from the first camera.
func DefaultConstraints() Constraints {
	return Constraints{
		DeviceID: "0",
		Width:    640,
		Height:   480,
	}
}

// WithDefaults fills zero fields from DefaultConstraints.
func (c Constraints) WithDefaults() Constraints {
	d := DefaultConstraints()
	if c.DeviceID == "" {
		c.DeviceID = d.DeviceID
	}
	if c.Width == 0 {
		c.Width = d.Width
	}
	if c.Height == 0 {
		c.Height = d.Height
	}
	return c
}

// Device opens capture handles.
type Device interface {
	// Open acquires the device. It fails with ErrUnavailable or
	// ErrPermissionDenied (possibly wrapped) when the device cannot be used.
	Open(ctx context.Context, c Constraints) (Handle, error)

	// Name returns the backend name (e.g. "webcam", "mock").
	Name() string
}

// Handle is an open capture device.
type Handle interface {
	// Snapshot returns the current frame. ErrDeviceLost means the device
	// went away and the handle is no longer usable.
	Snapshot() (image.Image, error)

	// Release frees the device. Calls after the first return ErrReleased.
	Release() error
}

// Stats contains device counters.
type Stats struct {
	Opens     int64  `json:"opens"`
	Releases  int64  `json:"releases"`
	Snapshots int64  `json:"snapshots"`
	Open      bool   `json:"open"`
	Backend   string `json:"backend"`
}
