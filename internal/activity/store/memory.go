package store

import (
	"context"
	"sort"
	"sync"

	"lifeflow/internal/activity/models"
	id "lifeflow/pkg/domain"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	entries []models.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

func (s *InMemoryStore) Append(_ context.Context, entry models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID, page id.Page) ([]models.Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Entry
	for _, e := range s.entries {
		if e.UserID == userID {
			matched = append(matched, e)
		}
	}
	return newestFirst(matched, page), len(matched), nil
}

// ListAll returns entries across all users (admin view).
func (s *InMemoryStore) ListAll(_ context.Context, page id.Page) ([]models.Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := append([]models.Entry(nil), s.entries...)
	return newestFirst(all, page), len(all), nil
}

// newestFirst sorts in place by CreatedAt descending, keeping later appends
// first on ties, and slices the requested page.
func newestFirst(entries []models.Entry, page id.Page) []models.Entry {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	start, end := page.Window(len(entries))
	return append([]models.Entry{}, entries[start:end]...)
}
