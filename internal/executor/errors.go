package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks failures where the request never completed.
	ErrTransport = errors.New("transport did not complete")
	// ErrUnexpectedStatus marks a completed request whose status is outside the expected set.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrEmptyBody marks a completed request that returned no content where content was required.
	ErrEmptyBody = errors.New("empty response body")
	// ErrEmptyStatusSet is returned when Execute is called without any acceptable status.
	ErrEmptyStatusSet = errors.New("expected status set is empty")
)

// TransportError reports a request that did not complete at the network layer
// (DNS, connect, TLS, timeout, cancellation, or a truncated body read).
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// UnexpectedStatusError reports a completed request with a status outside Expected.
type UnexpectedStatusError struct {
	Method   string
	URL      string
	Got      int
	Expected StatusSet
	Body     string
}

func (e *UnexpectedStatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %s: got %d, expected one of %s", e.Method, e.URL, ErrUnexpectedStatus, e.Got, e.Expected)
	if e.Body != "" {
		msg += ": " + truncate(e.Body, 256)
	}
	return msg
}

func (e *UnexpectedStatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// EmptyBodyError reports a completed request that carried no body although
// its status was not 204 No Content.
type EmptyBodyError struct {
	Method string
	URL    string
	Status int
}

func (e *EmptyBodyError) Error() string {
	return fmt.Sprintf("%s %s: %s for status %d", e.Method, e.URL, ErrEmptyBody, e.Status)
}

func (e *EmptyBodyError) Unwrap() error {
	return ErrEmptyBody
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
