package scheduler

import (
	"errors"
	"fmt"
)

// InputError is the only kind of error a caller is expected to act on
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func inputErrorf(format string, args ...interface{}) *InputError {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// IsInputError reports whether err is, or wraps, an *InputError
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

var (
	// ErrSolverUnavailable means the exact path cannot run in this process
	ErrSolverUnavailable = errors.New("exact solver unavailable")
	// ErrSolverTimeout means the time budget passed before any solution was found
	ErrSolverTimeout = errors.New("exact solver found no solution within the time budget")
	// ErrSolverInfeasible means the exact model was proven to have no solution
	ErrSolverInfeasible = errors.New("exact solver proved the model infeasible")
	// ErrInconsistentSolution means a schedule violates the model it came from
	ErrInconsistentSolution = errors.New("inconsistent schedule")
)

// Recoverable reports whether err should route the call to the greedy scheduler
func Recoverable(err error) bool {
	return errors.Is(err, ErrSolverUnavailable) ||
		errors.Is(err, ErrSolverTimeout) ||
		errors.Is(err, ErrSolverInfeasible)
}

// FallbackReason returns the metric label for a recoverable error
func FallbackReason(err error) string {
	switch {
	case errors.Is(err, ErrSolverTimeout):
		return "timeout"
	case errors.Is(err, ErrSolverInfeasible):
		return "infeasible"
	case errors.Is(err, ErrSolverUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
