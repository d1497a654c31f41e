package device

import "errors"

var (
	// ErrUnavailable is returned when no device matches the constraints.
	ErrUnavailable = errors.New("device: unavailable")

	// ErrPermissionDenied is returned when access to the device is refused.
	ErrPermissionDenied = errors.New("device: permission denied")

	// ErrDeviceLost is returned by Snapshot when the device disappears
	// mid-session. It is fatal for the handle.
	ErrDeviceLost = errors.New("device: lost")

	// ErrReleased is returned when a handle is used after Release.
	ErrReleased = errors.New("device: released")
)
