package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrNilFrame is returned when Classify is called without a frame.
	ErrNilFrame = errors.New("classifier: nil frame")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("classifier: closed")
)

// APIError is a non-success reply from the classification service.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("webcam frame failed: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("webcam frame failed: %d", e.StatusCode)
}

// IsServerError returns true for 5xx replies.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsClientError returns true for 4xx replies.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// DispatchError wraps any failure of a classification round trip.
// It is per-frame and non-fatal.
type DispatchError struct {
	Transport string
	Err       error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("classifier [%s]: %v", e.Transport, e.Err)
}

// Unwrap returns the underlying error.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// wrapError wraps err with transport context.
func wrapError(transport string, err error) error {
	if err == nil {
		return nil
	}
	return &DispatchError{Transport: transport, Err: err}
}
