package fitter

import (
	"errors"
	"fmt"
)

// Domain errors for vertex fitting.
var (
	// ErrInvalidArgument indicates a bad index, count or configuration at a
	// public entry point.
	ErrInvalidArgument = errors.New("fitter: invalid argument")

	// ErrNumericalFailure indicates a covariance or information matrix that
	// could not be inverted within tolerance.
	ErrNumericalFailure = errors.New("fitter: numerical failure")

	// ErrNotFitted indicates a result accessor called before a successful
	// Fit.
	ErrNotFitted = errors.New("fitter: fit has not been run")
)

// FitError wraps a failure with the daughter and iteration it occurred in.
// Daughter is -1 when the failure is in the combined vertex update rather
// than a single daughter's fold.
type FitError struct {
	Daughter  int
	Iteration int
	Op        string
	Wrapped   error
}

func (e *FitError) Error() string {
	if e.Daughter < 0 {
		return fmt.Sprintf("fitter: %s failed in iteration %d: %v", e.Op, e.Iteration, e.Wrapped)
	}
	return fmt.Sprintf("fitter: %s failed for daughter %d in iteration %d: %v", e.Op, e.Daughter, e.Iteration, e.Wrapped)
}

func (e *FitError) Unwrap() error {
	return e.Wrapped
}
