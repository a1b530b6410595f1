package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/l0p7/objectprobe/internal/config"
	"github.com/l0p7/objectprobe/internal/executor"
	"github.com/l0p7/objectprobe/internal/metrics"
)

const collection = "objects"

// Object is the remote resource under test. Only ID is relied upon between calls.
type Object struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

// Payload is the body sent on create and update.
type Payload struct {
	Name string      `json:"name"`
	Data PayloadData `json:"data"`
}

// PayloadData is the free-form data section the scenarios write.
type PayloadData struct {
	Info string `json:"info"`
}

// Fixtures are the values the scenarios write.
type Fixtures struct {
	CreateName string
	CreateInfo string
	UpdateName string
	UpdateInfo string
}

// FixturesFromConfig copies the configured fixture values.
func FixturesFromConfig(cfg config.FixtureConfig) Fixtures {
	return Fixtures{
		CreateName: cfg.CreateName,
		CreateInfo: cfg.CreateInfo,
		UpdateName: cfg.UpdateName,
		UpdateInfo: cfg.UpdateInfo,
	}
}

// DefaultFixtures mirrors the configuration defaults.
func DefaultFixtures() Fixtures {
	return FixturesFromConfig(config.DefaultConfig().Fixtures)
}

func (f Fixtures) createPayload() Payload {
	return Payload{Name: f.CreateName, Data: PayloadData{Info: f.CreateInfo}}
}

func (f Fixtures) updatePayload() Payload {
	return Payload{Name: f.UpdateName, Data: PayloadData{Info: f.UpdateInfo}}
}

type requestExecutor interface {
	Execute(ctx context.Context, req executor.Request, expected executor.StatusSet) (*executor.Response, error)
}

// Options wires optional collaborators into a Suite.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// Suite drives the objects collection through an executor.
type Suite struct {
	exec     requestExecutor
	fixtures Fixtures
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

// NewSuite builds a Suite around exec.
func NewSuite(exec requestExecutor, fixtures Fixtures, opts Options) *Suite {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Suite{
		exec:     exec,
		fixtures: fixtures,
		logger:   logger.With(slog.String("agent", "lifecycle")),
		metrics:  opts.Metrics,
	}
}

// Fixtures returns the values this suite writes.
func (s *Suite) Fixtures() Fixtures {
	return s.fixtures
}

// CreateObject posts the create fixture and returns the server-assigned id.
func (s *Suite) CreateObject(ctx context.Context) (string, error) {
	return s.CreateObjectWith(ctx, s.fixtures.createPayload())
}

// CreateObjectWith posts payload and returns the server-assigned id.
func (s *Suite) CreateObjectWith(ctx context.Context, payload Payload) (string, error) {
	resp, err := s.exec.Execute(ctx, executor.Post(collection, payload), executor.Expect(http.StatusCreated, http.StatusOK))
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	id, ok := resp.Field("id")
	if !ok || strings.TrimSpace(id) == "" {
		return "", &AssertionError{Field: "id", Want: "non-empty id", Got: resp.Text()}
	}
	return id, nil
}

// ListObjects fetches the whole collection.
func (s *Suite) ListObjects(ctx context.Context) ([]Object, error) {
	resp, err := s.exec.Execute(ctx, executor.Get(collection), executor.Expect(http.StatusOK))
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	var objects []Object
	if err := resp.DecodeJSON(&objects); err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return objects, nil
}

// GetObject fetches one object by id.
func (s *Suite) GetObject(ctx context.Context, id string) (Object, error) {
	resp, err := s.exec.Execute(ctx, executor.Get(objectPath(id)), executor.Expect(http.StatusOK))
	if err != nil {
		return Object{}, fmt.Errorf("get object %s: %w", id, err)
	}
	var object Object
	if err := resp.DecodeJSON(&object); err != nil {
		return Object{}, fmt.Errorf("get object %s: %w", id, err)
	}
	return object, nil
}

// UpdateObject replaces the object with payload.
func (s *Suite) UpdateObject(ctx context.Context, id string, payload Payload) error {
	if _, err := s.exec.Execute(ctx, executor.Put(objectPath(id), payload), executor.Expect(http.StatusOK)); err != nil {
		return fmt.Errorf("update object %s: %w", id, err)
	}
	return nil
}

// DeleteObject removes the object.
func (s *Suite) DeleteObject(ctx context.Context, id string) error {
	if _, err := s.exec.Execute(ctx, executor.Delete(objectPath(id)), executor.Expect(http.StatusNoContent, http.StatusOK)); err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

// ExpectGone asserts that the object can no longer be fetched.
func (s *Suite) ExpectGone(ctx context.Context, id string) error {
	if _, err := s.exec.Execute(ctx, executor.Get(objectPath(id)), executor.Expect(http.StatusNotFound)); err != nil {
		return fmt.Errorf("confirm object %s deleted: %w", id, err)
	}
	return nil
}

// cleanup removes an object a scenario created. Failures are logged only.
func (s *Suite) cleanup(ctx context.Context, id string) {
	if err := s.DeleteObject(ctx, id); err != nil {
		s.logger.Debug("cleanup failed", slog.String("object_id", id), slog.Any("error", err))
	}
}

func objectPath(id string) string {
	return collection + "/" + url.PathEscape(id)
}
