package domain

import "fmt"

// InvalidInputError reports a missing or malformed input value.
// It is returned immediately and never retried.
type InvalidInputError struct {
	Field  string
	Reason string
	Err    error // optional sentinel, see Unwrap
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

// MissingField returns an InvalidInputError for an absent field.
func MissingField(field string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: "missing"}
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}
