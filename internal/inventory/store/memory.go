package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"lifeflow/internal/inventory/models"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
)

// InMemoryStore keeps units in process memory. Reads return copies so
// callers never alias stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	units   map[id.UnitID]*models.Unit
	serials map[string]id.UnitID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		units:   make(map[id.UnitID]*models.Unit),
		serials: make(map[string]id.UnitID),
	}
}

func clone(u *models.Unit) *models.Unit {
	c := *u
	return &c
}

// CreateMany inserts all units or none.
func (s *InMemoryStore) CreateMany(_ context.Context, units []*models.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(units))
	for _, u := range units {
		if _, ok := s.serials[u.SerialNumber]; ok {
			return sentinel.ErrConflict
		}
		if _, ok := seen[u.SerialNumber]; ok {
			return sentinel.ErrConflict
		}
		seen[u.SerialNumber] = struct{}{}
	}
	for _, u := range units {
		s.units[u.ID] = clone(u)
		s.serials[u.SerialNumber] = u.ID
	}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, unitID id.UnitID) (*models.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[unitID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(u), nil
}

func (s *InMemoryStore) selectUnits(keep func(*models.Unit) bool) []*models.Unit {
	out := []*models.Unit{}
	for _, u := range s.units {
		if keep(u) {
			out = append(out, clone(u))
		}
	}
	return out
}

func byExpiration(units []*models.Unit) {
	sort.Slice(units, func(i, j int) bool {
		if units[i].ExpirationDate.Equal(units[j].ExpirationDate) {
			return units[i].SerialNumber < units[j].SerialNumber
		}
		return units[i].ExpirationDate.Before(units[j].ExpirationDate)
	})
}

func (s *InMemoryStore) ListAvailable(_ context.Context, filter models.ListFilter, page id.Page) ([]*models.Unit, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	units := s.selectUnits(func(u *models.Unit) bool {
		if u.Status != models.StatusAvailable {
			return false
		}
		if filter.BloodType != "" && u.BloodType != filter.BloodType {
			return false
		}
		if filter.Location != "" && u.Location != filter.Location {
			return false
		}
		return true
	})
	byExpiration(units)
	start, end := page.Window(len(units))
	return units[start:end], len(units), nil
}

// ListExpiring returns available units expiring at or before the cutoff,
// soonest first.
func (s *InMemoryStore) ListExpiring(_ context.Context, before time.Time) ([]*models.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	units := s.selectUnits(func(u *models.Unit) bool {
		return u.Status == models.StatusAvailable && !u.ExpirationDate.After(before)
	})
	byExpiration(units)
	return units, nil
}

func (s *InMemoryStore) SummarizeAvailable(_ context.Context) ([]models.ComponentCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type key struct {
		bt id.BloodType
		c  models.Component
	}
	groups := make(map[key]*models.ComponentCount)
	for _, u := range s.units {
		if u.Status != models.StatusAvailable {
			continue
		}
		k := key{u.BloodType, u.Component}
		g, ok := groups[k]
		if !ok {
			g = &models.ComponentCount{BloodType: u.BloodType, Component: u.Component}
			groups[k] = g
		}
		g.Units += u.Units
		g.Count++
	}
	out := make([]models.ComponentCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BloodType == out[j].BloodType {
			return out[i].Component < out[j].Component
		}
		return out[i].BloodType < out[j].BloodType
	})
	return out, nil
}

// Execute loads a unit, checks validate, and applies mutate under the store
// lock. A validation error leaves the stored unit untouched.
func (s *InMemoryStore) Execute(_ context.Context, unitID id.UnitID, validate func(*models.Unit) error, mutate func(*models.Unit)) (*models.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.units[unitID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	u := clone(stored)
	if err := validate(u); err != nil {
		return nil, err
	}
	mutate(u)
	s.units[unitID] = u
	return clone(u), nil
}

func (s *InMemoryStore) ExpireOverdue(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for unitID, u := range s.units {
		if !u.IsOverdue(now) {
			continue
		}
		c := clone(u)
		c.ApplyExpire(now)
		s.units[unitID] = c
		n++
	}
	return n, nil
}

// Recent returns the newest units by creation time.
func (s *InMemoryStore) Recent(_ context.Context, limit int) ([]*models.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	units := s.selectUnits(func(*models.Unit) bool { return true })
	sort.Slice(units, func(i, j int) bool {
		return units[i].CreatedAt.After(units[j].CreatedAt)
	})
	if len(units) > limit {
		units = units[:limit]
	}
	return units, nil
}

func (s *InMemoryStore) CountByStatus(_ context.Context, status models.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.units {
		if u.Status == status {
			n++
		}
	}
	return n, nil
}
