package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/l0p7/objectprobe/internal/metrics"
)

// maxBodyBytes caps how much of a response body is captured.
const maxBodyBytes = 1 << 20

// httpDoer represents the minimal client contract the executor needs.
type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options tunes an Executor. Zero values fall back to sensible defaults.
type Options struct {
	Client    httpDoer
	Timeout   time.Duration
	UserAgent string
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
}

// Executor sends requests against a fixed base URL and checks that the
// transport completed, the status is expected, and content is present.
// It keeps no state between calls.
type Executor struct {
	base      *url.URL
	client    httpDoer
	userAgent string
	logger    *slog.Logger
	metrics   *metrics.Recorder
}

// New builds an Executor rooted at baseURL.
func New(baseURL string, opts Options) (*Executor, error) {
	base, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{
		base:      base,
		client:    client,
		userAgent: opts.UserAgent,
		logger:    logger.With(slog.String("agent", "executor")),
		metrics:   opts.Metrics,
	}, nil
}

// BaseURL returns the normalised base every request path is resolved against.
func (e *Executor) BaseURL() string {
	return e.base.String()
}

// Execute issues req, waits for completion and validates the outcome.
//
// A *TransportError is returned (with a nil Response) when the request did not
// complete. When the request completed but the status is not in expected, or
// the body is empty for a status other than 204, the Response is returned
// together with an *UnexpectedStatusError or *EmptyBodyError.
func (e *Executor) Execute(ctx context.Context, req Request, expected StatusSet) (*Response, error) {
	if len(expected) == 0 {
		return nil, ErrEmptyStatusSet
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target, err := e.resolve(req.Path)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("executor: encode %s %s body: %w", method, target, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("executor: build %s %s: %w", method, target, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if e.userAgent != "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}
	for name, value := range req.Headers {
		if strings.TrimSpace(value) != "" {
			httpReq.Header.Set(name, value)
		}
	}

	start := time.Now()
	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, e.transportFailure(method, target, start, err)
	}
	payload, readErr := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	closeErr := httpResp.Body.Close()
	if readErr != nil {
		return nil, e.transportFailure(method, target, start, fmt.Errorf("read body: %w", readErr))
	}
	if closeErr != nil {
		return nil, e.transportFailure(method, target, start, fmt.Errorf("close body: %w", closeErr))
	}
	elapsed := time.Since(start)

	resp := &Response{
		Method:     method,
		URL:        target,
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       payload,
	}

	if !expected.Contains(resp.StatusCode) {
		e.record(method, target, metrics.RequestUnexpectedStatus, resp.StatusCode, elapsed)
		return resp, &UnexpectedStatusError{
			Method:   method,
			URL:      target,
			Got:      resp.StatusCode,
			Expected: expected,
			Body:     string(payload),
		}
	}
	if resp.StatusCode != http.StatusNoContent && len(bytes.TrimSpace(payload)) == 0 {
		e.record(method, target, metrics.RequestEmptyBody, resp.StatusCode, elapsed)
		return resp, &EmptyBodyError{Method: method, URL: target, Status: resp.StatusCode}
	}

	e.record(method, target, metrics.RequestOK, resp.StatusCode, elapsed)
	return resp, nil
}

func (e *Executor) transportFailure(method, target string, start time.Time, err error) error {
	e.record(method, target, metrics.RequestTransportError, 0, time.Since(start))
	return &TransportError{Method: method, URL: target, Err: err}
}

func (e *Executor) record(method, target string, outcome metrics.RequestOutcome, status int, elapsed time.Duration) {
	e.metrics.ObserveRequest(method, outcome, status, elapsed)
	attrs := []any{
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", status),
		slog.Duration("duration", elapsed),
		slog.String("outcome", string(outcome)),
	}
	if outcome == metrics.RequestOK {
		e.logger.Debug("request completed", attrs...)
		return
	}
	e.logger.Warn("request failed", attrs...)
}

func (e *Executor) resolve(path string) (string, error) {
	rel, err := url.Parse(strings.TrimLeft(strings.TrimSpace(path), "/"))
	if err != nil {
		return "", fmt.Errorf("executor: request path %q: %w", path, err)
	}
	if rel.IsAbs() || rel.Host != "" {
		return "", fmt.Errorf("executor: request path %q must be relative to the base URL", path)
	}
	return e.base.ResolveReference(rel).String(), nil
}

func parseBase(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("executor: base URL required")
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("executor: base URL: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("executor: base URL must be absolute http(s): %q", raw)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	base.RawPath = ""
	return base, nil
}
