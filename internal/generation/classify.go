package generation

import (
	"context"
	"errors"

	"github.com/saldanaj97/atlaris-sub007/internal/domain"
)

// Outcome is the normalized classification of a generation failure. It is
// produced in exactly one place (Classify) so call sites never branch on
// error shape themselves.
type Outcome struct {
	Classification domain.FailureClassification
	Retryable      bool
	TimedOut       bool
}

// statusCoder covers errors that expose a directly-attached status code.
type statusCoder interface {
	StatusCode() int
}

// httpStatuser covers errors that expose their status under a different
// method name.
type httpStatuser interface {
	HTTPStatus() int
}

// Classify normalizes a heterogeneous error into a failure classification
// and retryability decision.
//
// The status is derived by inspecting known shapes in a fixed priority
// order: a directly-attached status, then a nested response status, then
// absence of any status. Status >= 500 or absent means retryable
// (transient/infrastructure); status in [400, 500) means not retryable
// (client/validation class). When no shape yields a status the failure
// defaults to retryable, erring toward giving the user another chance.
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{Classification: domain.FailureUnknown, Retryable: true}
	}

	// Cancellation and deadline expiry are timeouts regardless of any
	// status the provider may have attached on the way out.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Outcome{
			Classification: domain.FailureTimeout,
			Retryable:      true,
			TimedOut:       true,
		}
	}

	// Malformed or refused provider output is a validation failure. No
	// status accompanies these, so the retryability default applies.
	if errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrContentBlocked) {
		return Outcome{Classification: domain.FailureValidation, Retryable: true}
	}

	status, ok := statusOf(err)
	if !ok {
		return Outcome{Classification: domain.FailureUnknown, Retryable: true}
	}

	switch {
	case status == 429:
		return Outcome{Classification: domain.FailureRateLimit, Retryable: true}
	case status >= 500:
		return Outcome{Classification: domain.FailureProviderError, Retryable: true}
	case status >= 400:
		return Outcome{Classification: domain.FailureProviderError, Retryable: false}
	default:
		return Outcome{Classification: domain.FailureUnknown, Retryable: true}
	}
}

// statusOf extracts an HTTP-like status from the error chain, checking
// known shapes in fixed priority order: ProviderError's direct status,
// then its nested response status, then the StatusCode()/HTTPStatus()
// interfaces.
func statusOf(err error) (int, bool) {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		if provErr.StatusCode != 0 {
			return provErr.StatusCode, true
		}
		if provErr.Response != nil && provErr.Response.StatusCode != 0 {
			return provErr.Response.StatusCode, true
		}
	}

	var coder statusCoder
	if errors.As(err, &coder) && coder.StatusCode() != 0 {
		return coder.StatusCode(), true
	}

	var statuser httpStatuser
	if errors.As(err, &statuser) && statuser.HTTPStatus() != 0 {
		return statuser.HTTPStatus(), true
	}

	return 0, false
}
