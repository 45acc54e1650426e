package control

import "errors"

var (
	// ErrInvalidAction is returned for an empty action. Any non-empty
	// action string is forwarded to the transmitter unchanged.
	ErrInvalidAction = errors.New("control: action is required")

	// ErrProfileMissing is returned when an owned device has no hardware
	// profile and therefore cannot be actuated.
	ErrProfileMissing = errors.New("control: device has no profile")

	// ErrPublishFailure wraps transport errors from the Publisher,
	// including publish timeouts.
	ErrPublishFailure = errors.New("control: publish failed")
)
