package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"lifeflow/internal/request/models"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
)

// InMemoryStore keeps requests in process memory. Reads return deep copies.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.Request
	display  map[string]id.RequestID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[id.RequestID]*models.Request),
		display:  make(map[string]id.RequestID),
	}
}

func clone(r *models.Request) *models.Request {
	c := *r
	c.BloodRequirements = slices.Clone(r.BloodRequirements)
	c.AssignedUnits = slices.Clone(r.AssignedUnits)
	return &c
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.display[r.DisplayID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.requests[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[r.ID] = clone(r)
	s.display[r.DisplayID] = r.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, requestID id.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

func (s *InMemoryStore) selectRequests(keep func(*models.Request) bool) []*models.Request {
	out := []*models.Request{}
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	return out
}

func newestFirst(requests []*models.Request) {
	sort.Slice(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].DisplayID > requests[j].DisplayID
		}
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
}

func matches(r *models.Request, filter models.ListFilter) bool {
	if filter.Status != "" && r.Status != filter.Status {
		return false
	}
	if filter.Priority != "" && r.Priority != filter.Priority {
		return false
	}
	if filter.BloodType != "" && !slices.Contains(r.BloodTypes(), filter.BloodType) {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(r.DisplayID), needle) &&
			!strings.Contains(strings.ToLower(r.Requester.Name()), needle) {
			return false
		}
	}
	return true
}

func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter, page id.Page) ([]*models.Request, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	requests := s.selectRequests(func(r *models.Request) bool { return matches(r, filter) })
	newestFirst(requests)
	start, end := page.Window(len(requests))
	return requests[start:end], len(requests), nil
}

// ListUrgent returns requests needing attention at now, highest priority
// first and then by deadline.
func (s *InMemoryStore) ListUrgent(_ context.Context, now time.Time) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	requests := s.selectRequests(func(r *models.Request) bool { return r.NeedsAttention(now) })
	sort.Slice(requests, func(i, j int) bool {
		a, b := requests[i], requests[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		return a.RequiredBy.Before(b.RequiredBy)
	})
	return requests, nil
}

// Execute loads a request, checks validate and applies mutate under the
// store lock. A validation error leaves the stored request untouched.
func (s *InMemoryStore) Execute(_ context.Context, requestID id.RequestID, validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	r := clone(stored)
	if err := validate(r); err != nil {
		return nil, err
	}
	mutate(r)
	s.requests[requestID] = r
	return clone(r), nil
}

func (s *InMemoryStore) Delete(_ context.Context, requestID id.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.display, r.DisplayID)
	delete(s.requests, requestID)
	return nil
}

func (s *InMemoryStore) Recent(_ context.Context, limit int) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	requests := s.selectRequests(func(*models.Request) bool { return true })
	newestFirst(requests)
	if len(requests) > limit {
		requests = requests[:limit]
	}
	return requests, nil
}

// CountByStatus counts requests in any of statuses; all requests when none
// are given.
func (s *InMemoryStore) CountByStatus(_ context.Context, statuses ...models.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(statuses) == 0 {
		return len(s.requests), nil
	}
	n := 0
	for _, r := range s.requests {
		if slices.Contains(statuses, r.Status) {
			n++
		}
	}
	return n, nil
}

// CountByUser counts requests submitted by userID.
func (s *InMemoryStore) CountByUser(_ context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.requests {
		if r.RequestedBy == userID {
			n++
		}
	}
	return n, nil
}
