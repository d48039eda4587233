package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"lifeflow/internal/campaign/models"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
)

// InMemoryStore keeps campaigns in process memory. Reads return deep copies.
type InMemoryStore struct {
	mu        sync.RWMutex
	campaigns map[id.CampaignID]*models.Campaign
	display   map[string]id.CampaignID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		campaigns: make(map[id.CampaignID]*models.Campaign),
		display:   make(map[string]id.CampaignID),
	}
}

func clone(c *models.Campaign) *models.Campaign {
	out := *c
	out.TargetBloodTypes = slices.Clone(c.TargetBloodTypes)
	out.Donations = slices.Clone(c.Donations)
	out.Feedback = slices.Clone(c.Feedback)
	out.Results.BloodTypeDistribution = maps.Clone(c.Results.BloodTypeDistribution)
	return &out
}

func (s *InMemoryStore) Create(_ context.Context, c *models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.display[c.DisplayID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.campaigns[c.ID]; ok {
		return sentinel.ErrConflict
	}
	s.campaigns[c.ID] = clone(c)
	s.display[c.DisplayID] = c.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, campaignID id.CampaignID) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemoryStore) selectCampaigns(keep func(*models.Campaign) bool) []*models.Campaign {
	out := []*models.Campaign{}
	for _, c := range s.campaigns {
		if keep(c) {
			out = append(out, clone(c))
		}
	}
	return out
}

func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter, page id.Page) ([]*models.Campaign, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaigns := s.selectCampaigns(filter.Matches)
	sort.Slice(campaigns, func(i, j int) bool {
		if campaigns[i].CreatedAt.Equal(campaigns[j].CreatedAt) {
			return campaigns[i].DisplayID > campaigns[j].DisplayID
		}
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})
	start, end := page.Window(len(campaigns))
	return campaigns[start:end], len(campaigns), nil
}

// ListActive returns campaigns running at now, soonest to end first.
func (s *InMemoryStore) ListActive(_ context.Context, now time.Time) ([]*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaigns := s.selectCampaigns(func(c *models.Campaign) bool { return c.IsActive(now) })
	sort.Slice(campaigns, func(i, j int) bool { return campaigns[i].EndDate.Before(campaigns[j].EndDate) })
	return campaigns, nil
}

func (s *InMemoryStore) CountActive(_ context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.campaigns {
		if c.IsActive(now) {
			n++
		}
	}
	return n, nil
}

// Execute loads a campaign, checks validate and applies mutate under the
// store lock. A validation error leaves the stored campaign untouched.
func (s *InMemoryStore) Execute(_ context.Context, campaignID id.CampaignID, validate func(*models.Campaign) error, mutate func(*models.Campaign) error) (*models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.campaigns[campaignID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := clone(stored)
	if err := validate(c); err != nil {
		return nil, err
	}
	if err := mutate(c); err != nil {
		return nil, err
	}
	s.campaigns[campaignID] = c
	return clone(c), nil
}

// StatsByStatus groups the campaigns by status. Statuses with no campaigns
// are omitted.
func (s *InMemoryStore) StatsByStatus(_ context.Context) ([]models.StatusStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type acc struct {
		row      models.StatusStats
		progress float64
	}
	groups := make(map[models.Status]*acc)
	for _, c := range s.campaigns {
		g, ok := groups[c.Status]
		if !ok {
			g = &acc{row: models.StatusStats{Status: c.Status}}
			groups[c.Status] = g
		}
		g.row.Count++
		g.row.TotalTargetUnits += c.TargetUnits
		g.row.TotalCollectedUnits += c.UnitsCollected
		if c.TargetUnits > 0 {
			g.progress += float64(c.UnitsCollected) / float64(c.TargetUnits)
		}
	}
	out := make([]models.StatusStats, 0, len(groups))
	for _, g := range groups {
		g.row.AverageProgress = g.progress / float64(g.row.Count)
		out = append(out, g.row)
	}
	return out, nil
}
