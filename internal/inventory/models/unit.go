package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
)

// Unit is one physical unit of a blood component.
//
// Invariants:
//   - BloodType is one of the eight ABO/Rh groups
//   - ExpirationDate defaults to CollectionDate + the component's shelf life
//   - SerialNumber is unique across the inventory
//   - Status transitions: available → reserved → issued → available (return);
//     any status → discarded; available/reserved → expired
//   - Only available or reserved units may be issued; only issued units may
//     be returned
//
// Derived values (DaysUntilExpiration, IsExpired, StorageDays, IsSafe) are
// computed on read and never stored.
type Unit struct {
	ID             id.UnitID     `json:"id"`
	SerialNumber   string        `json:"serialNumber"`
	BloodType      id.BloodType  `json:"bloodType"`
	Component      Component     `json:"component"`
	Units          int           `json:"units"`
	Volume         int           `json:"volume,omitempty"`
	Location       Location      `json:"location"`
	DonorID        *id.DonorID   `json:"donorId,omitempty"`
	DonationID     string        `json:"donationId,omitempty"`
	CollectionDate time.Time     `json:"collectionDate"`
	ExpirationDate time.Time     `json:"expirationDate"`
	Status         Status        `json:"status"`
	TestResults    TestResults   `json:"testResults"`
	QualityCheck   QualityCheck  `json:"qualityCheck"`
	ReservedFor    *id.RequestID `json:"reservedFor,omitempty"`
	IssuedTo       *id.RequestID `json:"issuedTo,omitempty"`
	IssuedDate     *time.Time    `json:"issuedDate,omitempty"`
	IssuedBy       *id.UserID    `json:"issuedBy,omitempty"`
	ReturnDate     *time.Time    `json:"returnDate,omitempty"`
	ReturnReason   string        `json:"returnReason,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// QualityCheck records the intake inspection.
type QualityCheck struct {
	Passed    bool       `json:"passed"`
	CheckedBy string     `json:"checkedBy,omitempty"`
	CheckedAt *time.Time `json:"checkedAt,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

const defaultVolumeML = 450

// NewUnit builds an available unit. A zero expiry is derived from the
// component's shelf life.
func NewUnit(bloodType id.BloodType, component Component, location Location, collected, expires time.Time, now time.Time) (*Unit, error) {
	if !bloodType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid blood type")
	}
	if component == "" {
		component = ComponentWholeBlood
	}
	if !component.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid component")
	}
	if location == "" {
		location = LocationMainBank
	}
	if !location.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid location")
	}
	if collected.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "collection date is required")
	}
	if expires.IsZero() {
		expires = component.ExpirationFrom(collected)
	}
	if !expires.After(collected) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "expiration date must be after collection date")
	}
	return &Unit{
		ID:             id.NewUnitID(),
		SerialNumber:   NewSerialNumber(bloodType, component, now),
		BloodType:      bloodType,
		Component:      component,
		Units:          1,
		Volume:         defaultVolumeML,
		Location:       location,
		CollectionDate: collected,
		ExpirationDate: expires,
		Status:         StatusAvailable,
		TestResults:    DefaultTestResults(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewSerialNumber renders <TYPE>-<COMPONENT>-<base36 millis>-<random>.
func NewSerialNumber(bloodType id.BloodType, component Component, now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 36)
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
	return strings.ToUpper(fmt.Sprintf("%s-%s-%s-%s", bloodType, component, ts, random))
}

const day = 24 * time.Hour

// DaysUntilExpiration rounds up partial days; negative once expired.
func (u *Unit) DaysUntilExpiration(now time.Time) int {
	return int(math.Ceil(u.ExpirationDate.Sub(now).Hours() / 24))
}

func (u *Unit) IsExpired(now time.Time) bool {
	return now.After(u.ExpirationDate)
}

// StorageDays counts days since collection, rounding up.
func (u *Unit) StorageDays(now time.Time) int {
	return int(math.Ceil(float64(now.Sub(u.CollectionDate)) / float64(day)))
}

// IsSafe holds when the unit is available, unexpired and free of positive
// results on the critical infectious markers.
func (u *Unit) IsSafe(now time.Time) bool {
	if u.IsExpired(now) {
		return false
	}
	if u.Status != StatusAvailable {
		return false
	}
	return !u.TestResults.HasCriticalPositive()
}

func transitionError(action string, status Status) error {
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("Cannot %s unit with status %s", action, status))
}

func (u *Unit) CanReserve() error {
	if u.Status != StatusAvailable {
		return transitionError("reserve", u.Status)
	}
	return nil
}

func (u *Unit) ApplyReserve(requestID id.RequestID, now time.Time) {
	u.Status = StatusReserved
	u.ReservedFor = &requestID
	u.UpdatedAt = now
}

func (u *Unit) CanIssue() error {
	if u.Status != StatusAvailable && u.Status != StatusReserved {
		return transitionError("issue", u.Status)
	}
	return nil
}

func (u *Unit) ApplyIssue(requestID id.RequestID, issuedBy id.UserID, now time.Time) {
	u.Status = StatusIssued
	u.IssuedTo = &requestID
	u.ReservedFor = nil
	issued := now
	u.IssuedDate = &issued
	if !issuedBy.IsNil() {
		u.IssuedBy = &issuedBy
	}
	u.UpdatedAt = now
}

func (u *Unit) CanReturn() error {
	if u.Status != StatusIssued {
		return transitionError("return", u.Status)
	}
	return nil
}

// ApplyReturn puts the unit back on the shelf and clears issuance stamps.
func (u *Unit) ApplyReturn(reason string, now time.Time) {
	u.Status = StatusAvailable
	returned := now
	u.ReturnDate = &returned
	u.ReturnReason = reason
	u.IssuedTo = nil
	u.IssuedDate = nil
	u.IssuedBy = nil
	u.UpdatedAt = now
}

// ApplyDiscard is permitted from any status. The reason is appended to the
// existing notes.
func (u *Unit) ApplyDiscard(reason string, now time.Time) {
	u.Status = StatusDiscarded
	line := fmt.Sprintf("Discarded: %s (%s)", reason, now.UTC().Format(time.RFC3339))
	if u.Notes == "" {
		u.Notes = line
	} else {
		u.Notes = u.Notes + "\n" + line
	}
	u.UpdatedAt = now
}

// IsOverdue reports whether the unit sits on the shelf past its expiry.
func (u *Unit) IsOverdue(now time.Time) bool {
	return (u.Status == StatusAvailable || u.Status == StatusReserved) && u.IsExpired(now)
}

func (u *Unit) ApplyExpire(now time.Time) {
	u.Status = StatusExpired
	u.ReservedFor = nil
	u.UpdatedAt = now
}
