package usecase

import (
	"sync"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

// SelectionStore holds the ordered set of documents chosen for the next batch.
// Documents are unique by (name, size).
type SelectionStore struct {
	mu    sync.Mutex
	items []domain.Document
}

func NewSelectionStore() *SelectionStore {
	return &SelectionStore{}
}

// Add appends every incoming document not already selected and returns how many were added.
func (s *SelectionStore) Add(incoming []domain.Document) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, doc := range incoming {
		if s.indexLocked(doc) >= 0 {
			continue
		}
		s.items = append(s.items, doc)
		added++
	}
	return added
}

// RemoveOne drops the first document sharing target's identity.
func (s *SelectionStore) RemoveOne(target domain.Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(target)
	if idx < 0 {
		return false
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return true
}

func (s *SelectionStore) Remove(id domain.DocumentID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx, doc := range s.items {
		if doc.ID == id {
			s.items = append(s.items[:idx], s.items[idx+1:]...)
			return true
		}
	}
	return false
}

func (s *SelectionStore) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

func (s *SelectionStore) Items() []domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Document, len(s.items))
	copy(out, s.items)
	return out
}

func (s *SelectionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *SelectionStore) indexLocked(target domain.Document) int {
	for idx, doc := range s.items {
		if doc.SameIdentity(target) {
			return idx
		}
	}
	return -1
}
