package fakeapi

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Object is the stored representation of one resource.
type Object struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"createdAt,omitzero"`
	UpdatedAt time.Time      `json:"updatedAt,omitzero"`
}

// ErrNotFound is returned when an object id is unknown to the store.
var ErrNotFound = errors.New("fakeapi: object not found")

// Store persists objects for the fake API.
type Store interface {
	Create(ctx context.Context, obj Object) error
	Get(ctx context.Context, id string) (Object, error)
	List(ctx context.Context) ([]Object, error)
	Replace(ctx context.Context, obj Object) error
	Delete(ctx context.Context, id string) error
	Close(ctx context.Context) error
}

type memoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore() Store {
	return &memoryStore{objects: make(map[string]Object)}
}

func (s *memoryStore) Create(_ context.Context, obj Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[obj.ID]; exists {
		return errors.New("fakeapi: duplicate object id")
	}
	s.objects[obj.ID] = cloneObject(obj)
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	if !ok {
		return Object{}, ErrNotFound
	}
	return cloneObject(obj), nil
}

func (s *memoryStore) List(_ context.Context) ([]Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Object, 0, len(s.objects))
	for _, obj := range s.objects {
		out = append(out, cloneObject(obj))
	}
	sortObjects(out)
	return out, nil
}

func (s *memoryStore) Replace(_ context.Context, obj Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[obj.ID]; !ok {
		return ErrNotFound
	}
	s.objects[obj.ID] = cloneObject(obj)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return ErrNotFound
	}
	delete(s.objects, id)
	return nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}

// sortObjects orders by creation time, then id, so listings are stable.
func sortObjects(objects []Object) {
	sort.Slice(objects, func(i, j int) bool {
		if !objects[i].CreatedAt.Equal(objects[j].CreatedAt) {
			return objects[i].CreatedAt.Before(objects[j].CreatedAt)
		}
		return objects[i].ID < objects[j].ID
	})
}

func cloneObject(in Object) Object {
	out := in
	if in.Data != nil {
		out.Data = cloneMap(in.Data)
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
