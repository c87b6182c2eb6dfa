package blob

import (
	"context"
	"sync"

	"lexflow/pkg/platform/sentinel"
)

type object struct {
	contentType string
	data        []byte
}

// InMemory keeps blobs in process memory.
type InMemory struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewInMemory() *InMemory {
	return &InMemory{objects: make(map[string]object)}
}

// Put stores data under key. An existing key is left untouched.
func (s *InMemory) Put(_ context.Context, key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; ok {
		return nil
	}
	s.objects[key] = object{contentType: contentType, data: append([]byte(nil), data...)}
	return nil
}

func (s *InMemory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), obj.data...), nil
}
