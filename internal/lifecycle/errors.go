package lifecycle

import (
	"errors"
	"fmt"
)

// ErrAssertion marks a business-data mismatch in an otherwise successful call.
var ErrAssertion = errors.New("assertion failed")

// AssertionError reports that a response field did not hold the expected value.
type AssertionError struct {
	Field string
	Want  string
	Got   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: field %q: want %q, got %q", ErrAssertion, e.Field, e.Want, e.Got)
}

func (e *AssertionError) Unwrap() error {
	return ErrAssertion
}

func expectEqual(field, want, got string) error {
	if want == got {
		return nil
	}
	return &AssertionError{Field: field, Want: want, Got: got}
}
