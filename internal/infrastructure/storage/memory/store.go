package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

// Store is a process-local key/value store. History kept here does not survive restarts.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

func New() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return "", domain.WrapError(domain.ErrNotFound, "read key", fmt.Errorf("key=%s", key))
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}
