package auth

import "errors"

var (
	// ErrTokenInvalid is returned for tokens that fail signature, expiry,
	// or claim validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrMissingSubject is returned when issuing a token without a user ID.
	ErrMissingSubject = errors.New("auth: user id is required")
)
