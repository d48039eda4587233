package models

import (
	"strings"
	"time"

	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/email"
)

// Role gates what a user may do.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
	RoleDonor Role = "donor"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleDonor:
		return true
	}
	return false
}

// Eligibility is the identity-level donation eligibility snapshot.
type Eligibility string

const (
	EligibilityEligible   Eligibility = "eligible"
	EligibilityIneligible Eligibility = "ineligible"
	EligibilityDeferred   Eligibility = "deferred"
)

const MinPasswordLength = 6

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

type EmergencyContact struct {
	Name         string `json:"name,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

type MedicalHistory struct {
	Conditions  []string `json:"conditions,omitempty"`
	Medications []string `json:"medications,omitempty"`
	Allergies   []string `json:"allergies,omitempty"`
}

// DonationRecord is the identity's copy of a past donation.
type DonationRecord struct {
	Date     time.Time `json:"date"`
	Units    int       `json:"units"`
	Location string    `json:"location"`
}

type Notifications struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

type Preferences struct {
	Notifications Notifications `json:"notifications"`
	Newsletter    bool          `json:"newsletter"`
	Language      string        `json:"language,omitempty"`
	Theme         string        `json:"theme,omitempty"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Notifications: Notifications{Email: true},
		Language:      "en",
		Theme:         "light",
	}
}

// User is an identity: staff, admin or donor. The password hash is kept out
// of every JSON encoding.
type User struct {
	ID                   id.UserID        `json:"id"`
	FirstName            string           `json:"firstName"`
	LastName             string           `json:"lastName"`
	Email                string           `json:"email"`
	PasswordHash         string           `json:"-"`
	Role                 Role             `json:"role"`
	Phone                string           `json:"phone,omitempty"`
	BloodType            id.BloodType     `json:"bloodType,omitempty"`
	DateOfBirth          *time.Time       `json:"dateOfBirth,omitempty"`
	Address              Address          `json:"address"`
	EmergencyContact     EmergencyContact `json:"emergencyContact"`
	MedicalHistory       MedicalHistory   `json:"medicalHistory"`
	DonationHistory      []DonationRecord `json:"donationHistory"`
	Eligibility          Eligibility      `json:"eligibilityStatus"`
	LastDonation         *time.Time       `json:"lastDonation,omitempty"`
	NextEligibleDonation *time.Time       `json:"nextEligibleDonation,omitempty"`
	IsActive             bool             `json:"isActive"`
	Preferences          Preferences      `json:"preferences"`
	LastLogin            *time.Time       `json:"lastLogin,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

// NewUser builds an active identity. An empty role defaults to staff.
func NewUser(firstName, lastName, address string, role Role, now time.Time) (*User, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	address = email.Normalize(address)
	if role == "" {
		role = RoleStaff
	}
	if firstName == "" || lastName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "First name and last name are required")
	}
	if !email.IsValid(address) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "Please provide a valid email")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "Valid role is required")
	}
	return &User{
		ID:              id.NewUserID(),
		FirstName:       firstName,
		LastName:        lastName,
		Email:           address,
		Role:            role,
		Address:         Address{Country: "USA"},
		DonationHistory: []DonationRecord{},
		Eligibility:     EligibilityEligible,
		IsActive:        true,
		Preferences:     DefaultPreferences(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// RequiresPassword reports whether the identity must carry a credential.
// Donor-only identities are created without one.
func (u *User) RequiresPassword() bool {
	return u.Role != RoleDonor
}

func (u *User) CanLogin() bool {
	return u.IsActive && u.PasswordHash != ""
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DaysActive counts whole days since the account was created.
func (u *User) DaysActive(now time.Time) int {
	if now.Before(u.CreatedAt) {
		return 0
	}
	return int(now.Sub(u.CreatedAt).Hours() / 24)
}

func (u *User) ApplyLogin(now time.Time) {
	u.LastLogin = &now
	u.UpdatedAt = now
}

func (u *User) ApplyPassword(hash string, now time.Time) {
	u.PasswordHash = hash
	u.UpdatedAt = now
}

func (u *User) ApplyRole(role Role, now time.Time) {
	u.Role = role
	u.UpdatedAt = now
}

// ApplyDonorContact refreshes the fields a donor intake may supply. Blank
// values leave the stored ones untouched.
func (u *User) ApplyDonorContact(firstName, lastName, phone string, bloodType id.BloodType, now time.Time) {
	if v := strings.TrimSpace(firstName); v != "" {
		u.FirstName = v
	}
	if v := strings.TrimSpace(lastName); v != "" {
		u.LastName = v
	}
	if v := strings.TrimSpace(phone); v != "" {
		u.Phone = v
	}
	if bloodType != "" {
		u.BloodType = bloodType
	}
	u.UpdatedAt = now
}

// ApplyDonation mirrors a recorded donation onto the identity snapshot.
func (u *User) ApplyDonation(record DonationRecord, eligibility Eligibility, next *time.Time, now time.Time) {
	u.DonationHistory = append(u.DonationHistory, record)
	last := record.Date
	u.LastDonation = &last
	u.Eligibility = eligibility
	u.NextEligibleDonation = next
	u.UpdatedAt = now
}
