package source

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrUnsupportedSource       = errors.New("unsupported or unrecognized source")
	ErrExactlyOneInput         = errors.New("exactly one of url or script must be provided")
	ErrMissingURL              = errors.New("url is required")
	ErrMissingScript           = errors.New("script text is required")
	ErrInvalidRedditURL        = errors.New("invalid reddit url: expected a thread permalink containing /comments/")
	ErrInvalidTwitterURL       = errors.New("invalid twitter/x url: expected a /status/<id> link")
	ErrInvalidStackOverflowURL = errors.New("invalid stackoverflow url: expected a /questions/<id>/ link")
	ErrScriptTooShort          = errors.New("script text is too short")
	ErrScriptTooLong           = errors.New("script text is too long")
)

// ValidationError wraps a sentinel with the field and value that failed.
// It is surfaced synchronously to the caller and never creates a job.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// Reason is the stable human-readable string surfaced in API responses.
func (e *ValidationError) Reason() string { return e.Wrapped.Error() }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
