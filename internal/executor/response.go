package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is what a completed round-trip produced. A Response only exists
// when the transport completed; transport failures surface as *TransportError.
type Response struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the raw body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("executor: %w", ErrEmptyBody)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("executor: decode %s %s body: %w", r.Method, r.URL, err)
	}
	return nil
}

// Field returns a top-level JSON field rendered as a string. Strings are
// returned verbatim, other JSON values in their compact encoding. ok is false
// when the body is not a JSON object, the field is absent, or it is null.
func (r *Response) Field(name string) (string, bool) {
	var object map[string]json.RawMessage
	if err := r.DecodeJSON(&object); err != nil {
		return "", false
	}
	raw, ok := object[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", false
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, true
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", false
	}
	return compact.String(), true
}
