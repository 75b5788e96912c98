package meetings

import (
	"errors"
	"fmt"
)

// Request failures surfaced directly to callers. Provider failures are not
// here: those are contained in orchestration results, never request errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidState    = errors.New("operation not permitted in current meeting status")
)

// ValidationError rejects a malformed request before any persistence or
// external call happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
