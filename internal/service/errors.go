package service

import "errors"

// Common service errors
var (
	// ErrQuotaExceeded indicates the user's monthly quota for the
	// requested resource is exhausted.
	ErrQuotaExceeded = errors.New("monthly generation quota exceeded")

	// ErrInvalidCredentials indicates an authentication failure. The same
	// error covers unknown emails and wrong passwords so responses do not
	// reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid email or password")
)
