package models

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	id "lifeflow/pkg/domain"
)

type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusPostponed Status = "postponed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusCompleted, StatusCancelled, StatusPostponed:
		return true
	}
	return false
}

// IsClosed reports whether the campaign no longer takes donations.
func (s Status) IsClosed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AllStatuses is the display order used by the stats view.
func AllStatuses() []Status {
	return []Status{StatusPlanning, StatusActive, StatusCompleted, StatusCancelled, StatusPostponed}
}

type Type string

const (
	TypeGeneral   Type = "general"
	TypeEmergency Type = "emergency"
	TypeTargeted  Type = "targeted"
	TypeCorporate Type = "corporate"
	TypeSchool    Type = "school"
	TypeCommunity Type = "community"
	TypeMobile    Type = "mobile"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeGeneral, TypeEmergency, TypeTargeted, TypeCorporate, TypeSchool, TypeCommunity, TypeMobile:
		return true
	}
	return false
}

type LocationType string

const (
	LocationFixed     LocationType = "fixed"
	LocationMobile    LocationType = "mobile"
	LocationSatellite LocationType = "satellite"
)

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

type Location struct {
	Name    string       `json:"name" validate:"notblank" msg:"All required fields must be provided"`
	Address Address      `json:"address"`
	Type    LocationType `json:"type" validate:"omitempty,oneof=fixed mobile satellite" msg:"Invalid location type"`
}

type locationJSON Location

// UnmarshalJSON also accepts a bare string, taken as the location name.
func (l *Location) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*l = Location{Name: name}
		return nil
	}
	var raw locationJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = Location(raw)
	return nil
}

// Donation is one donation collected at the campaign.
type Donation struct {
	DonorID   id.DonorID   `json:"donorId"`
	Date      time.Time    `json:"date"`
	Units     int          `json:"units"`
	BloodType id.BloodType `json:"bloodType"`
	Notes     string       `json:"notes,omitempty"`
}

type Feedback struct {
	DonorID *id.DonorID `json:"donorId,omitempty"`
	Rating  int         `json:"rating"`
	Comment string      `json:"comments,omitempty"`
	Date    time.Time   `json:"date"`
}

// Results is the rollup maintained as donations arrive and recomputed on
// completion.
type Results struct {
	TotalDonations        int                  `json:"totalDonations"`
	UniqueDonors          int                  `json:"uniqueDonors"`
	BloodTypeDistribution map[id.BloodType]int `json:"bloodTypeDistribution"`
}

// ListFilter narrows a campaign listing. City is a case-insensitive
// substring of the location's city. Without an explicit Status it limits
// the listing to campaigns still open to donors, planning or active.
type ListFilter struct {
	Status Status
	City   string
}

// Statuses is the set of statuses the filter admits. Empty means any.
func (f ListFilter) Statuses() []Status {
	switch {
	case f.Status != "":
		return []Status{f.Status}
	case f.City != "":
		return []Status{StatusActive, StatusPlanning}
	}
	return nil
}

func (f ListFilter) Matches(c *Campaign) bool {
	if statuses := f.Statuses(); statuses != nil && !slices.Contains(statuses, c.Status) {
		return false
	}
	city := strings.ToLower(strings.TrimSpace(f.City))
	return city == "" || strings.Contains(strings.ToLower(c.Location.Address.City), city)
}

// StatusStats is one row of the per-status rollup.
type StatusStats struct {
	Status              Status  `json:"status"`
	Count               int     `json:"count"`
	TotalTargetUnits    int     `json:"totalTargetUnits"`
	TotalCollectedUnits int     `json:"totalCollectedUnits"`
	AverageProgress     float64 `json:"averageProgress"`
}
