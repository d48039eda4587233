package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lifeflow/internal/donor/models"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
)

// InMemoryStore keeps donors in process memory, indexed by identity.
type InMemoryStore struct {
	mu      sync.RWMutex
	donors  map[id.DonorID]*models.Donor
	byUser  map[id.UserID]id.DonorID
	display map[string]id.DonorID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		donors:  make(map[id.DonorID]*models.Donor),
		byUser:  make(map[id.UserID]id.DonorID),
		display: make(map[string]id.DonorID),
	}
}

func clone(d *models.Donor) *models.Donor {
	c := *d
	c.DonationHistory = append([]models.Donation(nil), d.DonationHistory...)
	if c.DonationHistory == nil {
		c.DonationHistory = []models.Donation{}
	}
	return &c
}

func (s *InMemoryStore) Create(_ context.Context, d *models.Donor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUser[d.UserID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.display[d.DisplayID]; ok {
		return sentinel.ErrConflict
	}
	s.donors[d.ID] = clone(d)
	s.byUser[d.UserID] = d.ID
	s.display[d.DisplayID] = d.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, donorID id.DonorID) (*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.donors[donorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(d), nil
}

func (s *InMemoryStore) FindByUser(_ context.Context, userID id.UserID) (*models.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	donorID, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.donors[donorID]), nil
}

func matches(d *models.Donor, filter models.ListFilter) bool {
	if filter.BloodType != "" && d.BloodType != filter.BloodType {
		return false
	}
	if filter.Eligibility != "" && d.EligibilityStatus != filter.Eligibility {
		return false
	}
	if filter.Search == "" {
		return true
	}
	needle := strings.ToLower(filter.Search)
	for _, field := range []string{d.FirstName, d.LastName, d.Email, d.DisplayID} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// List returns matching donors newest first.
func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter, page id.Page) ([]*models.Donor, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Donor{}
	for _, d := range s.donors {
		if matches(d, filter) {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].DisplayID > out[j].DisplayID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	start, end := page.Window(len(out))
	return out[start:end], len(out), nil
}

// Execute applies mutate under the store lock once validate passes.
func (s *InMemoryStore) Execute(_ context.Context, donorID id.DonorID, validate func(*models.Donor) error, mutate func(*models.Donor)) (*models.Donor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.donors[donorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	d := clone(stored)
	if err := validate(d); err != nil {
		return nil, err
	}
	mutate(d)
	s.donors[donorID] = d
	return clone(d), nil
}

func (s *InMemoryStore) Delete(_ context.Context, donorID id.DonorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donors[donorID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.donors, donorID)
	delete(s.byUser, d.UserID)
	delete(s.display, d.DisplayID)
	return nil
}

func (s *InMemoryStore) CountGroups(_ context.Context) ([]models.GroupCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type key struct {
		bt id.BloodType
		e  models.EligibilityStatus
	}
	groups := make(map[key]int)
	for _, d := range s.donors {
		groups[key{d.BloodType, d.EligibilityStatus}]++
	}
	out := make([]models.GroupCount, 0, len(groups))
	for k, n := range groups {
		out = append(out, models.GroupCount{BloodType: k.bt, Eligibility: k.e, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BloodType == out[j].BloodType {
			return out[i].Eligibility < out[j].Eligibility
		}
		return out[i].BloodType < out[j].BloodType
	})
	return out, nil
}

func (s *InMemoryStore) CountByEligibility(_ context.Context, status models.EligibilityStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.donors {
		if d.EligibilityStatus == status {
			n++
		}
	}
	return n, nil
}

// CountByUser counts donors enrolled by the given staff member.
func (s *InMemoryStore) CountByUser(_ context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.donors {
		if d.CreatedBy != nil && *d.CreatedBy == userID {
			n++
		}
	}
	return n, nil
}

// MonthlyDonations buckets history entries dated at or after since by UTC
// calendar month, oldest first.
func (s *InMemoryStore) MonthlyDonations(_ context.Context, since time.Time) ([]models.MonthlyDonations, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type key struct{ year, month int }
	buckets := make(map[key]*models.MonthlyDonations)
	for _, d := range s.donors {
		for _, entry := range d.DonationsSince(since) {
			t := entry.Date.UTC()
			k := key{t.Year(), int(t.Month())}
			b, ok := buckets[k]
			if !ok {
				b = &models.MonthlyDonations{Year: k.year, Month: k.month}
				buckets[k] = b
			}
			b.Donations++
			b.Units += entry.Units
		}
	}
	out := make([]models.MonthlyDonations, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year == out[j].Year {
			return out[i].Month < out[j].Month
		}
		return out[i].Year < out[j].Year
	})
	return out, nil
}

// TotalDonations sums every donor's donation count.
func (s *InMemoryStore) TotalDonations(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.donors {
		n += d.TotalDonations
	}
	return n, nil
}
