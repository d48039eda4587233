package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
)

// Campaign is a donation drive.
//
// Invariants:
//   - EndDate is after StartDate
//   - UnitsCollected is the sum of donation units; DonorsParticipated the
//     number of distinct donors
//   - Completed and cancelled campaigns take no donations
//
// Duration, days remaining, progress and average rating are computed on
// read and never stored.
type Campaign struct {
	ID                 id.CampaignID  `json:"id"`
	DisplayID          string         `json:"campaignId"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Type               Type           `json:"type"`
	Status             Status         `json:"status"`
	StartDate          time.Time      `json:"startDate"`
	EndDate            time.Time      `json:"endDate"`
	TargetBloodTypes   []id.BloodType `json:"targetBloodTypes"`
	TargetUnits        int            `json:"targetUnits"`
	TargetDonors       int            `json:"targetDonors"`
	UnitsCollected     int            `json:"unitsCollected"`
	DonorsParticipated int            `json:"donorsParticipated"`
	Location           Location       `json:"location"`
	Organizer          id.UserID      `json:"organizer"`
	Donations          []Donation     `json:"donations"`
	Feedback           []Feedback     `json:"feedback"`
	Results            Results        `json:"results"`
	Notes              string         `json:"notes,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// Draft carries the caller-supplied fields of a new campaign.
type Draft struct {
	Title            string
	Description      string
	Type             Type
	Status           Status
	Location         Location
	StartDate        time.Time
	EndDate          time.Time
	TargetDonors     int
	TargetUnits      int
	TargetBloodTypes []id.BloodType
	Notes            string
}

// NewCampaign builds a campaign in planning unless the draft names a
// status. TargetUnits falls back to TargetDonors.
func NewCampaign(organizer id.UserID, displayID string, d Draft, now time.Time) (*Campaign, error) {
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Location.Name) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "All required fields must be provided")
	}
	if d.StartDate.IsZero() || d.EndDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "All required fields must be provided")
	}
	if !d.EndDate.After(d.StartDate) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "End date must be after start date")
	}
	if d.TargetDonors < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "Target donors must be at least 1")
	}
	if d.Type == "" {
		d.Type = TypeGeneral
	}
	if d.Status == "" {
		d.Status = StatusPlanning
	}
	if !d.Type.IsValid() || !d.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "Invalid campaign type or status")
	}
	if d.TargetUnits == 0 {
		d.TargetUnits = d.TargetDonors
	}
	if d.Location.Type == "" {
		d.Location.Type = LocationFixed
	}
	if d.TargetBloodTypes == nil {
		d.TargetBloodTypes = []id.BloodType{}
	}
	return &Campaign{
		ID:               id.NewCampaignID(),
		DisplayID:        displayID,
		Title:            strings.TrimSpace(d.Title),
		Description:      strings.TrimSpace(d.Description),
		Type:             d.Type,
		Status:           d.Status,
		StartDate:        d.StartDate,
		EndDate:          d.EndDate,
		TargetBloodTypes: d.TargetBloodTypes,
		TargetUnits:      d.TargetUnits,
		TargetDonors:     d.TargetDonors,
		Location:         d.Location,
		Organizer:        organizer,
		Donations:        []Donation{},
		Feedback:         []Feedback{},
		Results:          Results{BloodTypeDistribution: map[id.BloodType]int{}},
		Notes:            d.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

func (c *Campaign) DurationDays() int {
	return ceilDays(c.EndDate.Sub(c.StartDate))
}

// DaysRemaining is 0 for closed campaigns and never negative.
func (c *Campaign) DaysRemaining(now time.Time) int {
	if c.Status.IsClosed() {
		return 0
	}
	return max(0, ceilDays(c.EndDate.Sub(now)))
}

func (c *Campaign) ProgressPercentage() int {
	if c.TargetUnits <= 0 {
		return 0
	}
	return int(math.Round(float64(c.UnitsCollected) / float64(c.TargetUnits) * 100))
}

// AverageRating is rounded to one decimal; 0 without feedback.
func (c *Campaign) AverageRating() float64 {
	if len(c.Feedback) == 0 {
		return 0
	}
	sum := 0
	for _, f := range c.Feedback {
		sum += f.Rating
	}
	return math.Round(float64(sum)/float64(len(c.Feedback))*10) / 10
}

// IsActive holds for an active campaign whose window contains now.
func (c *Campaign) IsActive(now time.Time) bool {
	return c.Status == StatusActive && !now.Before(c.StartDate) && !now.After(c.EndDate)
}

func (c *Campaign) uniqueDonors() int {
	seen := make(map[id.DonorID]struct{}, len(c.Donations))
	for _, d := range c.Donations {
		seen[d.DonorID] = struct{}{}
	}
	return len(seen)
}

func (c *Campaign) CanAddDonation() error {
	if c.Status.IsClosed() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("Cannot record donations for a %s campaign", c.Status))
	}
	return nil
}

// AddDonation appends the donation and rolls it into the totals.
func (c *Campaign) AddDonation(donorID id.DonorID, units int, bt id.BloodType, notes string, now time.Time) {
	c.Donations = append(c.Donations, Donation{
		DonorID:   donorID,
		Date:      now,
		Units:     units,
		BloodType: bt,
		Notes:     notes,
	})
	c.UnitsCollected += units
	c.DonorsParticipated = c.uniqueDonors()
	if c.Results.BloodTypeDistribution == nil {
		c.Results.BloodTypeDistribution = map[id.BloodType]int{}
	}
	c.Results.BloodTypeDistribution[bt] += units
	c.Results.TotalDonations = len(c.Donations)
	c.Results.UniqueDonors = c.DonorsParticipated
	c.UpdatedAt = now
}

// AddFeedback appends a rating between 1 and 5.
func (c *Campaign) AddFeedback(rating int, comment string, donorID *id.DonorID, now time.Time) error {
	if rating < 1 || rating > 5 {
		return dErrors.New(dErrors.CodeInvariantViolation, "Rating must be between 1 and 5")
	}
	c.Feedback = append(c.Feedback, Feedback{
		DonorID: donorID,
		Rating:  rating,
		Comment: strings.TrimSpace(comment),
		Date:    now,
	})
	c.UpdatedAt = now
	return nil
}

func (c *Campaign) ApplyStatus(status Status, now time.Time) {
	c.Status = status
	c.UpdatedAt = now
}

func (c *Campaign) CanComplete() error {
	switch c.Status {
	case StatusCompleted:
		return dErrors.New(dErrors.CodeValidation, "Campaign is already completed")
	case StatusCancelled:
		return dErrors.New(dErrors.CodeValidation, "Cannot complete a cancelled campaign")
	}
	return nil
}

// Complete closes the campaign and recomputes the results from the
// donation list.
func (c *Campaign) Complete(now time.Time) {
	c.Status = StatusCompleted
	dist := make(map[id.BloodType]int)
	units := 0
	for _, d := range c.Donations {
		dist[d.BloodType] += d.Units
		units += d.Units
	}
	c.UnitsCollected = units
	c.DonorsParticipated = c.uniqueDonors()
	c.Results = Results{
		TotalDonations:        len(c.Donations),
		UniqueDonors:          c.DonorsParticipated,
		BloodTypeDistribution: dist,
	}
	c.UpdatedAt = now
}
