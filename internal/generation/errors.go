package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by Generator implementations
var (
	// ErrInvalidResponse is returned when the provider's output cannot be
	// parsed into a plan outline or fails structural validation.
	ErrInvalidResponse = errors.New("invalid response from generation provider")

	// ErrContentBlocked is returned when the provider refuses the content
	// (e.g. safety filters).
	ErrContentBlocked = errors.New("content blocked by generation provider")

	// ErrInvalidConfig is returned when a generator is constructed with
	// invalid configuration.
	ErrInvalidConfig = errors.New("invalid generator configuration")
)

// ProviderResponse is the nested response shape some provider SDKs attach
// to their errors.
type ProviderResponse struct {
	StatusCode int
}

// ProviderError normalizes upstream provider failures into one typed
// error. StatusCode is the directly-attached HTTP-like status when the
// provider reported one; Response carries a nested status when the SDK
// only exposes it there. Either or both may be absent (zero).
type ProviderError struct {
	StatusCode int
	Response   *ProviderResponse
	Message    string
	Err        error
}

// Error implements the error interface for ProviderError.
func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
	case e.Response != nil && e.Response.StatusCode != 0:
		return fmt.Sprintf("provider error (response status %d): %s",
			e.Response.StatusCode, e.Message)
	default:
		return fmt.Sprintf("provider error: %s", e.Message)
	}
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ProviderError) Unwrap() error {
	return e.Err
}
