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

	// ErrProfileNotFound is returned when a device exists but no specific
	// profile has been added for it.
	ErrProfileNotFound = errors.New("device: profile not found")

	// ErrProfileExists is returned when adding a second profile to a device.
	ErrProfileExists = errors.New("device: profile already exists")

	// ErrUnknownDeviceType is returned when a type ID has no registered profile variant.
	ErrUnknownDeviceType = errors.New("device: unknown device type")

	// ErrUnauthorized is returned when the requester does not own the device.
	// Callers outside the trust boundary must treat it exactly like ErrDeviceNotFound.
	ErrUnauthorized = errors.New("device: requester does not own device")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidProfile is returned when profile parameters fail validation.
	ErrInvalidProfile = errors.New("device: invalid profile")
)
