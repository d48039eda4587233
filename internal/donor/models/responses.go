package models

import (
	"sort"
	"time"

	authmodels "lifeflow/internal/auth/models"
	id "lifeflow/pkg/domain"
)

// DonorView is a donor with its identity and the derived eligibility flag.
type DonorView struct {
	*Donor
	CanDonate bool             `json:"canDonate"`
	User      *authmodels.User `json:"user,omitempty"`
}

func NewDonorView(d *Donor, user *authmodels.User, now time.Time) DonorView {
	return DonorView{Donor: d, CanDonate: d.CheckEligibility(now), User: user}
}

// NewDonorViews builds list rows. Identities are not attached.
func NewDonorViews(donors []*Donor, now time.Time) []DonorView {
	out := make([]DonorView, 0, len(donors))
	for _, d := range donors {
		out = append(out, NewDonorView(d, nil, now))
	}
	return out
}

type DonorList struct {
	Items      []DonorView   `json:"items"`
	Pagination id.Pagination `json:"pagination"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type DonorResponse struct {
	Message string    `json:"message"`
	Donor   DonorView `json:"donor"`
}

// BloodTypeCount is one row of the blood type distribution.
type BloodTypeCount struct {
	BloodType id.BloodType `json:"bloodType"`
	Count     int          `json:"count"`
}

type Stats struct {
	TotalDonors           int              `json:"totalDonors"`
	EligibleDonors        int              `json:"eligibleDonors"`
	IneligibleDonors      int              `json:"ineligibleDonors"`
	BloodTypeDistribution []BloodTypeCount `json:"bloodTypeDistribution"`
}

// BuildStats folds group counts into totals and a distribution ordered by
// count, largest first, then blood type.
func BuildStats(groups []GroupCount) Stats {
	stats := Stats{BloodTypeDistribution: []BloodTypeCount{}}
	byType := make(map[id.BloodType]int)
	for _, g := range groups {
		stats.TotalDonors += g.Count
		switch g.Eligibility {
		case EligibilityEligible:
			stats.EligibleDonors += g.Count
		case EligibilityIneligible:
			stats.IneligibleDonors += g.Count
		}
		byType[g.BloodType] += g.Count
	}
	for bt, n := range byType {
		stats.BloodTypeDistribution = append(stats.BloodTypeDistribution, BloodTypeCount{BloodType: bt, Count: n})
	}
	sort.Slice(stats.BloodTypeDistribution, func(i, j int) bool {
		a, b := stats.BloodTypeDistribution[i], stats.BloodTypeDistribution[j]
		if a.Count == b.Count {
			return a.BloodType < b.BloodType
		}
		return a.Count > b.Count
	})
	return stats
}
