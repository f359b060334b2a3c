package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update affects no rows or
	// violates constraints.
	ErrUpdateFailed = errors.New("update failed")

	// ErrInsertCountMismatch is returned when a bulk insert persisted a
	// different number of rows than requested. Callers treat this as a
	// hard failure so partial plan content never becomes visible.
	ErrInsertCountMismatch = errors.New("insert count mismatch")

	// Entity-specific "not found" errors

	// ErrPlanNotFound indicates the requested plan does not exist.
	ErrPlanNotFound = fmt.Errorf("%w: plan", ErrNotFound)

	// ErrAttemptNotFound indicates the requested generation attempt does not exist.
	ErrAttemptNotFound = fmt.Errorf("%w: generation attempt", ErrNotFound)

	// ErrJobNotFound indicates the requested job does not exist.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrEmailExists indicates a user with the given email already exists.
	ErrEmailExists = fmt.Errorf("%w: email", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError carries entity and operation context for store failures.
type StoreError struct {
	Entity    string // e.g. "plan", "job"
	Operation string // e.g. "create", "dequeue"
	Message   string
	Err       error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v",
			e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
