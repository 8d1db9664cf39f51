package reconcile

import (
	"errors"
	"fmt"
)

// ErrProductNotFound is returned by Store.FindByReference when no product
// carries the reference.
var ErrProductNotFound = errors.New("product not found")

// ConflictError reports a write rejected by a uniqueness rule of the store,
// typically a slug shared by two references.
type ConflictError struct {
	Reference  string
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("conflict on %s for reference %s: %v", e.Constraint, e.Reference, e.Err)
	}
	return fmt.Sprintf("conflict for reference %s: %v", e.Reference, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// UnavailableError reports a store that could not be reached. The item can
// be retried in a later run.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is, or wraps, a ConflictError.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	var unavailable *UnavailableError
	return errors.As(err, &unavailable)
}
