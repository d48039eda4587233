package models

import (
	"strings"
	"time"

	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
)

// DonationInterval is the minimum gap between two donations.
const DonationInterval = 56 * 24 * time.Hour

// Donor links an identity to its donation record.
//
// Invariants:
//   - exactly one donor per identity
//   - NextEligibleDonation, when set, is LastDonation + 56 days
//   - EligibilityPermanent is never reset by recomputation
//
// FirstName, LastName and Email mirror the linked identity so listings can
// search without joining.
type Donor struct {
	ID                   id.DonorID          `json:"id"`
	DisplayID            string              `json:"donorId"`
	UserID               id.UserID           `json:"userId"`
	FirstName            string              `json:"firstName"`
	LastName             string              `json:"lastName"`
	Email                string              `json:"email"`
	BloodType            id.BloodType        `json:"bloodType"`
	EligibilityStatus    EligibilityStatus   `json:"eligibilityStatus"`
	IneligibilityReason  IneligibilityReason `json:"ineligibilityReason,omitempty"`
	LastDonation         *time.Time          `json:"lastDonation,omitempty"`
	NextEligibleDonation *time.Time          `json:"nextEligibleDonation,omitempty"`
	TotalDonations       int                 `json:"totalDonations"`
	TotalUnits           int                 `json:"totalUnits"`
	DonationHistory      []Donation          `json:"donationHistory"`
	ContactInfo          ContactInfo         `json:"contactInfo"`
	EmergencyContact     EmergencyContact    `json:"emergencyContact"`
	MedicalInfo          MedicalInfo         `json:"medicalInfo"`
	Preferences          Preferences         `json:"preferences"`
	IsActive             bool                `json:"isActive"`
	CreatedBy            *id.UserID          `json:"createdBy,omitempty"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
}

// NewDonor builds an eligible donor for userID.
func NewDonor(userID id.UserID, displayID string, bloodType id.BloodType, now time.Time) (*Donor, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "donor must reference a user")
	}
	if !bloodType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "Please provide a valid blood type")
	}
	if strings.TrimSpace(displayID) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "donor id is required")
	}
	return &Donor{
		ID:                id.NewDonorID(),
		DisplayID:         displayID,
		UserID:            userID,
		BloodType:         bloodType,
		EligibilityStatus: EligibilityEligible,
		DonationHistory:   []Donation{},
		Preferences:       DefaultPreferences(),
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (d *Donor) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// ApplyIdentity copies the identity's name and email onto the donor.
func (d *Donor) ApplyIdentity(firstName, lastName, email string) {
	d.FirstName = firstName
	d.LastName = lastName
	d.Email = email
}

// ApplyProfile mirrors an identity's profile edit. A blank phone or an
// invalid blood type leaves the stored value.
func (d *Donor) ApplyProfile(firstName, lastName, email, phone string, bloodType id.BloodType, now time.Time) {
	d.ApplyIdentity(firstName, lastName, email)
	if phone != "" {
		d.ContactInfo.Phone = phone
	}
	if bloodType.IsValid() {
		d.BloodType = bloodType
	}
	d.UpdatedAt = now
}

// CheckEligibility applies the 56-day rule.
func (d *Donor) CheckEligibility(now time.Time) bool {
	if d.EligibilityStatus == EligibilityPermanent {
		return false
	}
	if d.LastDonation == nil {
		return true
	}
	return now.Sub(*d.LastDonation) >= DonationInterval
}

// UpdateEligibility recomputes the status from elapsed time since the last
// donation. Permanent donors are left alone.
func (d *Donor) UpdateEligibility(now time.Time) {
	if d.EligibilityStatus == EligibilityPermanent {
		return
	}
	if d.CheckEligibility(now) {
		d.EligibilityStatus = EligibilityEligible
		d.IneligibilityReason = ""
		d.NextEligibleDonation = nil
		return
	}
	d.EligibilityStatus = EligibilityIneligible
	d.IneligibilityReason = ReasonRecentDonation
	next := d.LastDonation.Add(DonationInterval)
	d.NextEligibleDonation = &next
}

// AddDonation appends the entry, updates totals and recomputes eligibility.
// Units below one count as one.
func (d *Donor) AddDonation(entry Donation, now time.Time) {
	if entry.Units < 1 {
		entry.Units = 1
	}
	if entry.Status == "" {
		entry.Status = DonationCompleted
	}
	d.DonationHistory = append(d.DonationHistory, entry)
	last := entry.Date
	d.LastDonation = &last
	d.TotalDonations++
	d.TotalUnits += entry.Units
	d.UpdateEligibility(now)
	d.UpdatedAt = now
}

// ApplyEligibilityStatus sets the status by hand. Returning to eligible
// clears the reason.
func (d *Donor) ApplyEligibilityStatus(status EligibilityStatus, reason IneligibilityReason, now time.Time) {
	d.EligibilityStatus = status
	if status == EligibilityEligible {
		d.IneligibilityReason = ""
	} else if reason != "" {
		d.IneligibilityReason = reason
	}
	d.UpdatedAt = now
}

// DonationsSince returns history entries dated at or after since.
func (d *Donor) DonationsSince(since time.Time) []Donation {
	var out []Donation
	for _, entry := range d.DonationHistory {
		if !entry.Date.Before(since) {
			out = append(out, entry)
		}
	}
	return out
}
