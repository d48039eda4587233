package models

import (
	"time"

	id "lifeflow/pkg/domain"
)

// CampaignView adds the computed fields to a campaign.
type CampaignView struct {
	*Campaign
	DurationDays       int     `json:"duration"`
	DaysRemaining      int     `json:"daysRemaining"`
	ProgressPercentage int     `json:"progressPercentage"`
	AverageRating      float64 `json:"averageRating"`
	IsActive           bool    `json:"isActive"`
}

func NewCampaignView(c *Campaign, now time.Time) CampaignView {
	return CampaignView{
		Campaign:           c,
		DurationDays:       c.DurationDays(),
		DaysRemaining:      c.DaysRemaining(now),
		ProgressPercentage: c.ProgressPercentage(),
		AverageRating:      c.AverageRating(),
		IsActive:           c.IsActive(now),
	}
}

func NewCampaignViews(campaigns []*Campaign, now time.Time) []CampaignView {
	out := make([]CampaignView, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, NewCampaignView(c, now))
	}
	return out
}

type CampaignList struct {
	Items      []CampaignView `json:"items"`
	Pagination id.Pagination  `json:"pagination"`
}

type CampaignResponse struct {
	Message  string       `json:"message"`
	Campaign CampaignView `json:"campaign"`
}

// BuildStats fills in every status, zero rows included, in display order.
func BuildStats(rows []StatusStats) []StatusStats {
	byStatus := make(map[Status]StatusStats, len(rows))
	for _, r := range rows {
		byStatus[r.Status] = r
	}
	out := make([]StatusStats, 0, len(AllStatuses()))
	for _, st := range AllStatuses() {
		row, ok := byStatus[st]
		if !ok {
			row = StatusStats{Status: st}
		}
		out = append(out, row)
	}
	return out
}
