// Package apperr defines the error kinds shared by every layer.
//
// Stores and services wrap one of these sentinels so that callers can
// classify failures with errors.Is without knowing where they came from.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a referenced task, edge, project,
	// membership or notification does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for duplicates and for dependency edges that
	// would close a cycle.
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidOperation is returned when a well-formed request is refused
	// by a business rule, such as removing a project's creator.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrForbidden is returned when the acting user may not touch the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrPersistence is returned when the underlying store failed.
	ErrPersistence = errors.New("persistence failure")
)

// Kind returns the sentinel that err wraps, or nil when err carries none.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrValidation, ErrInvalidOperation, ErrForbidden, ErrPersistence} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
