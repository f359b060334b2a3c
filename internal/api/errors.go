package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/saldanaj97/atlaris-sub007/internal/api/shared"
	"github.com/saldanaj97/atlaris-sub007/internal/attempt"
	"github.com/saldanaj97/atlaris-sub007/internal/service"
	"github.com/saldanaj97/atlaris-sub007/internal/service/auth"
	"github.com/saldanaj97/atlaris-sub007/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes. This prevents leaking internal error types or messages to
// clients.
//
// Reservation rejections for rate limiting and in-progress conflicts both
// map to 429: an in-flight attempt means "try again shortly", and treating
// it as a retryable class keeps clients polling instead of surfacing a
// fatal-looking conflict.
func MapErrorToStatusCode(err error) int {
	var rejection *attempt.Rejection
	if errors.As(err, &rejection) {
		switch rejection.Reason {
		case attempt.RejectionRateLimited, attempt.RejectionInProgress:
			return http.StatusTooManyRequests
		case attempt.RejectionCapped, attempt.RejectionInvalidStatus:
			return http.StatusConflict
		default:
			return http.StatusConflict
		}
	}

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized

	// Quota exhaustion
	case errors.Is(err, service.ErrQuotaExceeded):
		return http.StatusTooManyRequests

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrEmailExists):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal
// details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var rejection *attempt.Rejection
	if errors.As(err, &rejection) {
		switch rejection.Reason {
		case attempt.RejectionRateLimited:
			return "Generation rate limit reached, please retry later"
		case attempt.RejectionInProgress:
			return "A generation is already in progress for this plan, please retry shortly"
		case attempt.RejectionCapped:
			return "Generation attempt limit reached for this plan"
		case attempt.RejectionInvalidStatus:
			return "Plan is not in a state that allows generation"
		}
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid credentials"

	case errors.Is(err, service.ErrQuotaExceeded):
		return "Monthly generation quota exceeded"

	case errors.Is(err, store.ErrPlanNotFound):
		return "Plan not found"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrEmailExists):
		return "Email already exists"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the appropriate error response for err, logging
// the underlying cause. Rate-limit class responses carry a Retry-After
// header when a retry hint is known. fallbackMessage overrides the
// derived message when non-empty and the error has no specific mapping.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallbackMessage string) {
	status := MapErrorToStatusCode(err)

	message := GetSafeErrorMessage(err)
	if fallbackMessage != "" && status == http.StatusInternalServerError {
		message = fallbackMessage
	}

	var rejection *attempt.Rejection
	if errors.As(err, &rejection) && rejection.RetryAfter > 0 {
		seconds := int(math.Ceil(rejection.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
