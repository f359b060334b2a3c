package task

import "errors"

// Queue construction and processing errors
var (
	ErrNilJobStore = errors.New("job store cannot be nil")
	ErrNoExecutor  = errors.New("no executor registered for job type")
	ErrNilExecutor = errors.New("executor cannot be nil")
	ErrNilQueue    = errors.New("queue cannot be nil")
)

// terminalError marks an executor failure that must not be retried.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

// Terminal wraps an executor error so the queue fails the job without
// requeuing it. Unwrapped executor errors default to retryable.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether the error was marked with Terminal.
func IsTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}
