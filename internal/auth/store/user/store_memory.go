package user

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"lifeflow/internal/auth/models"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
)

// InMemoryUserStore keeps identities in process memory, indexed by ID and
// normalized email.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

// clone copies u deeply enough that callers cannot reach stored state. Nil
// and empty slices keep their distinction.
func clone(u *models.User) *models.User {
	c := *u
	c.DonationHistory = slices.Clone(u.DonationHistory)
	c.MedicalHistory.Conditions = slices.Clone(u.MedicalHistory.Conditions)
	c.MedicalHistory.Medications = slices.Clone(u.MedicalHistory.Medications)
	c.MedicalHistory.Allergies = slices.Clone(u.MedicalHistory.Allergies)
	c.DateOfBirth = cloneTime(u.DateOfBirth)
	c.LastDonation = cloneTime(u.LastDonation)
	c.NextEligibleDonation = cloneTime(u.NextEligibleDonation)
	c.LastLogin = cloneTime(u.LastLogin)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[user.Email]; ok {
		return sentinel.ErrConflict
	}
	s.users[user.ID] = clone(user)
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		return clone(u), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if userID, ok := s.byEmail[email]; ok {
		return clone(s.users[userID]), nil
	}
	return nil, sentinel.ErrNotFound
}

// List pages through users, newest first.
func (s *InMemoryUserStore) List(_ context.Context, filter models.UserFilter, page id.Page) ([]*models.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if term != "" && !matchesSearch(u, term) {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Email < matched[j].Email
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	start, end := page.Window(len(matched))
	out := make([]*models.User, 0, end-start)
	for _, u := range matched[start:end] {
		out = append(out, clone(u))
	}
	return out, len(matched), nil
}

func matchesSearch(u *models.User, term string) bool {
	return strings.Contains(strings.ToLower(u.FirstName), term) ||
		strings.Contains(strings.ToLower(u.LastName), term) ||
		strings.Contains(u.Email, term)
}

// Execute applies mutate to the stored user if validate passes. A mutation
// that moves the user onto another user's email fails with ErrConflict.
func (s *InMemoryUserStore) Execute(_ context.Context, userID id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := clone(current)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	if working.Email != current.Email {
		if _, taken := s.byEmail[working.Email]; taken {
			return nil, sentinel.ErrConflict
		}
		delete(s.byEmail, current.Email)
		s.byEmail[working.Email] = userID
	}
	s.users[userID] = working
	return clone(working), nil
}
