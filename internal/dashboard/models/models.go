package models

import (
	"sort"
	"time"

	invmodels "lifeflow/internal/inventory/models"
	id "lifeflow/pkg/domain"
)

type BloodTypeUnits struct {
	BloodType id.BloodType `json:"bloodType"`
	Units     int          `json:"units"`
}

// Stats is the dashboard headline. Degraded marks the demonstration dataset.
type Stats struct {
	TotalBloodUnits    int              `json:"totalBloodUnits"`
	ActiveDonors       int              `json:"activeDonors"`
	PendingRequests    int              `json:"pendingRequests"`
	ActiveCampaigns    int              `json:"activeCampaigns"`
	BloodTypeBreakdown []BloodTypeUnits `json:"bloodTypeBreakdown"`
	Degraded           bool             `json:"degraded"`
}

// DemoStats is the fixed dataset served when a source store is down.
func DemoStats() Stats {
	return Stats{
		TotalBloodUnits: 1245,
		ActiveDonors:    586,
		PendingRequests: 24,
		ActiveCampaigns: 5,
		BloodTypeBreakdown: []BloodTypeUnits{
			{BloodType: id.OPositive, Units: 198},
			{BloodType: id.APositive, Units: 175},
			{BloodType: id.BPositive, Units: 132},
			{BloodType: id.ABPositive, Units: 78},
			{BloodType: id.ANegative, Units: 45},
			{BloodType: id.ONegative, Units: 38},
			{BloodType: id.BNegative, Units: 22},
			{BloodType: id.ABNegative, Units: 15},
		},
		Degraded: true,
	}
}

// ByBloodType folds per-component counts into per-type units, largest first.
func ByBloodType(rows []invmodels.ComponentCount) ([]BloodTypeUnits, int) {
	totals := make(map[id.BloodType]int)
	sum := 0
	for _, r := range rows {
		totals[r.BloodType] += r.Units
		sum += r.Units
	}
	out := make([]BloodTypeUnits, 0, len(totals))
	for bt, units := range totals {
		out = append(out, BloodTypeUnits{BloodType: bt, Units: units})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Units == out[j].Units {
			return out[i].BloodType < out[j].BloodType
		}
		return out[i].Units > out[j].Units
	})
	return out, sum
}

type ActivityKind string

const (
	ActivityDonation ActivityKind = "donation"
	ActivityRequest  ActivityKind = "request"
)

type ActivityItem struct {
	Type    ActivityKind `json:"type"`
	Message string       `json:"message"`
	Time    time.Time    `json:"time"`
	Icon    string       `json:"icon"`
	Color   string       `json:"color"`
}

type RecentActivity struct {
	Activities []ActivityItem `json:"activities"`
}

type Distribution struct {
	Distribution []BloodTypeUnits `json:"distribution"`
}

type TrendPoint struct {
	Year      int `json:"year"`
	Month     int `json:"month"`
	Donations int `json:"donations"`
	Units     int `json:"units"`
}

type Trends struct {
	Months int          `json:"months"`
	Trends []TrendPoint `json:"trends"`
}

type Report struct {
	TotalDonations    int       `json:"totalDonations"`
	TotalRequests     int       `json:"totalRequests"`
	FulfilledRequests int       `json:"fulfilledRequests"`
	ExpiredUnits      int       `json:"expiredUnits"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

type ReportResponse struct {
	Reports Report `json:"reports"`
}
