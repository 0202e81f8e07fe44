package domain

import (
	"errors"
	"fmt"
)

// Structured domain errors
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}
)

// Error implementations
func (e *NotFoundError) Error() string   { return e.Message }
func (e *ValidationError) Error() string { return e.Message }

// Is allows errors.Is() to match the structured errors against their sentinels
func (e *NotFoundError) Is(target error) bool   { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// Validation sub-kinds. Each wraps ErrValidation so callers that only care
// about the 400 class can keep matching ErrValidation.
var (
	// ErrInvalidTransition: an item's kind (FILE/FOLDER) cannot change
	ErrInvalidTransition = fmt.Errorf("%w: kind transition", ErrValidation)

	// ErrStaleUpdate: the supplied date is not strictly after the stored date
	ErrStaleUpdate = fmt.Errorf("%w: stale update", ErrValidation)

	// ErrInvalidParent: parent does not resolve to a FOLDER
	ErrInvalidParent = fmt.Errorf("%w: invalid parent", ErrValidation)

	// ErrCyclicReference: parent links would form a cycle
	ErrCyclicReference = fmt.Errorf("%w: cyclic reference", ErrValidation)

	// ErrMalformedTimestamp: input is not an ISO-8601 timestamp
	ErrMalformedTimestamp = fmt.Errorf("%w: malformed timestamp", ErrValidation)
)
