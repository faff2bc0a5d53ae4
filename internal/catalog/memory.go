package catalog

import (
	"context"
	"sync"

	apperrors "github.com/jittakal/geobin/internal/errors"
)

// MemoryStore keeps specs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	specs map[string]string
}

// Ensure implementation satisfies interface at compile time.
var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{specs: make(map[string]string)}
}

func (s *MemoryStore) Put(_ context.Context, typeName, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs[typeName] = spec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, typeName string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spec, ok := s.specs[typeName]
	if !ok {
		return "", apperrors.ErrSchemaNotFound
	}
	return spec, nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.specs))
	for n := range s.specs {
		names = append(names, n)
	}
	return names, nil
}

func (s *MemoryStore) Delete(_ context.Context, typeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.specs[typeName]; !ok {
		return apperrors.ErrSchemaNotFound
	}
	delete(s.specs, typeName)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
