// Package fakeapi serves an in-process stand-in for the public objects API so
// the lifecycle scenarios can run without network access.
package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/l0p7/objectprobe/internal/metrics"
)

// Options shapes how the fake answers. Zero values mirror the public API:
// creates answer 200 and deletes answer 200 with a message body.
type Options struct {
	Store   Store
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	Clock   func() time.Time

	// CreateStatus may be set to 201 to exercise the other accepted create status.
	CreateStatus int
	// DeleteStatus may be set to 204 to answer deletes without a body.
	DeleteStatus int
}

// Handler implements the objects collection over HTTP.
type Handler struct {
	store        Store
	logger       *slog.Logger
	metrics      *metrics.Recorder
	now          func() time.Time
	createStatus int
	deleteStatus int
	mux          *http.ServeMux
}

type objectRequest struct {
	Name *string        `json:"name"`
	Data map[string]any `json:"data"`
}

// NewHandler wires the routes onto a fresh mux.
func NewHandler(opts Options) *Handler {
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	createStatus := opts.CreateStatus
	if createStatus != http.StatusCreated {
		createStatus = http.StatusOK
	}
	deleteStatus := opts.DeleteStatus
	if deleteStatus != http.StatusNoContent {
		deleteStatus = http.StatusOK
	}

	h := &Handler{
		store:        store,
		logger:       logger.With(slog.String("agent", "fakeapi")),
		metrics:      opts.Metrics,
		now:          now,
		createStatus: createStatus,
		deleteStatus: deleteStatus,
		mux:          http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /objects", h.listObjects)
	h.mux.HandleFunc("POST /objects", h.createObject)
	h.mux.HandleFunc("GET /objects/{id}", h.getObject)
	h.mux.HandleFunc("PUT /objects/{id}", h.replaceObject)
	h.mux.HandleFunc("DELETE /objects/{id}", h.deleteObject)
	return h
}

// ServeHTTP dispatches to the objects routes and records each answer.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)

	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	h.metrics.ObserveServed(route, rec.status)
	h.logger.Debug("request served",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", rec.status),
	)
}

func (h *Handler) listObjects(w http.ResponseWriter, r *http.Request) {
	objects, err := h.store.List(r.Context())
	if err != nil {
		h.storeFailure(w, err)
		return
	}
	if ids := r.URL.Query()["id"]; len(ids) > 0 {
		wanted := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			wanted[id] = struct{}{}
		}
		filtered := objects[:0]
		for _, obj := range objects {
			if _, ok := wanted[obj.ID]; ok {
				filtered = append(filtered, obj)
			}
		}
		objects = filtered
	}
	views := make([]Object, 0, len(objects))
	for _, obj := range objects {
		views = append(views, readView(obj))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) createObject(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeObjectRequest(w, r)
	if !ok {
		return
	}
	obj := Object{
		ID:        uuid.NewString(),
		Name:      *req.Name,
		Data:      req.Data,
		CreatedAt: h.now(),
	}
	if err := h.store.Create(r.Context(), obj); err != nil {
		h.storeFailure(w, err)
		return
	}
	writeJSON(w, h.createStatus, obj)
}

func (h *Handler) getObject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	obj, err := h.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeNotFound(w, id)
		return
	}
	if err != nil {
		h.storeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readView(obj))
}

func (h *Handler) replaceObject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, err := h.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeNotFound(w, id)
		return
	}
	if err != nil {
		h.storeFailure(w, err)
		return
	}
	req, ok := decodeObjectRequest(w, r)
	if !ok {
		return
	}
	updated := Object{
		ID:        id,
		Name:      *req.Name,
		Data:      req.Data,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: h.now(),
	}
	if err := h.store.Replace(r.Context(), updated); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeNotFound(w, id)
			return
		}
		h.storeFailure(w, err)
		return
	}
	response := updated
	response.CreatedAt = time.Time{}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) deleteObject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeNotFound(w, id)
		return
	}
	if err != nil {
		h.storeFailure(w, err)
		return
	}
	if h.deleteStatus == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Object with id = %s has been deleted.", id),
	})
}

func (h *Handler) storeFailure(w http.ResponseWriter, err error) {
	h.logger.Error("store operation failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "store unavailable")
}

func decodeObjectRequest(w http.ResponseWriter, r *http.Request) (objectRequest, bool) {
	var req objectRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "400 Bad Request. Invalid JSON: "+err.Error())
		return objectRequest{}, false
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusBadRequest, "400 Bad Request. The 'name' field is required.")
		return objectRequest{}, false
	}
	return req, true
}

// readView drops timestamps, which the public API only echoes on writes.
func readView(obj Object) Object {
	obj.CreatedAt = time.Time{}
	obj.UpdatedAt = time.Time{}
	return obj
}

func writeNotFound(w http.ResponseWriter, id string) {
	writeError(w, http.StatusNotFound, fmt.Sprintf("Object with id=%s was not found.", id))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
