package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidPlatform is returned for a platform other than tiktok or instagram.
	ErrInvalidPlatform = errors.New("device: invalid platform")

	// ErrUnknownCoordinate is returned when a calibration write names a
	// coordinate the platform doesn't have.
	ErrUnknownCoordinate = errors.New("device: unknown coordinate")

	// ErrCoordinateRange is returned when a normalized point falls outside [0,1].
	ErrCoordinateRange = errors.New("device: coordinate out of range")

	// ErrNoDimensions is returned when pixel input can't be normalized
	// because the device has no known screen size.
	ErrNoDimensions = errors.New("device: screen dimensions unknown")
)
