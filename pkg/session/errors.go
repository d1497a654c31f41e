package session

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("session: closed")

// DeviceError is a failure to acquire or read the capture device.
type DeviceError struct {
	// Op is "open" or "snapshot".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}
