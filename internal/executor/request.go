package executor

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// Request describes one call against the target API. Path is resolved
// relative to the executor's base URL; Body, when non-nil, is sent as JSON.
type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
}

// Get builds a GET request for path.
func Get(path string) Request {
	return Request{Method: http.MethodGet, Path: path}
}

// Post builds a POST request carrying body as JSON.
func Post(path string, body any) Request {
	return Request{Method: http.MethodPost, Path: path, Body: body}
}

// Put builds a PUT request carrying body as JSON.
func Put(path string, body any) Request {
	return Request{Method: http.MethodPut, Path: path, Body: body}
}

// Delete builds a DELETE request for path.
func Delete(path string) Request {
	return Request{Method: http.MethodDelete, Path: path}
}

// StatusSet is the ordered collection of status codes a call may return
// without failing. It is never empty once built through Expect.
type StatusSet []int

// Expect builds a StatusSet, preserving order and dropping duplicates.
// It panics when called without codes since an empty set can never pass.
func Expect(codes ...int) StatusSet {
	if len(codes) == 0 {
		panic("executor: Expect requires at least one status code")
	}
	set := make(StatusSet, 0, len(codes))
	for _, code := range codes {
		if !slices.Contains(set, code) {
			set = append(set, code)
		}
	}
	return set
}

// Contains reports whether code is an acceptable status.
func (s StatusSet) Contains(code int) bool {
	return slices.Contains(s, code)
}

func (s StatusSet) String() string {
	parts := make([]string, 0, len(s))
	for _, code := range s {
		text := http.StatusText(code)
		if text == "" {
			parts = append(parts, strconv.Itoa(code))
			continue
		}
		parts = append(parts, fmt.Sprintf("%d %s", code, text))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
