package models

import (
	"time"

	id "lifeflow/pkg/domain"
)

// EligibilityStatus is the donor's current standing. Permanent is sticky:
// recomputation never clears it.
type EligibilityStatus string

const (
	EligibilityEligible   EligibilityStatus = "eligible"
	EligibilityIneligible EligibilityStatus = "ineligible"
	EligibilityDeferred   EligibilityStatus = "deferred"
	EligibilityPermanent  EligibilityStatus = "permanent"
)

func (e EligibilityStatus) IsValid() bool {
	switch e {
	case EligibilityEligible, EligibilityIneligible, EligibilityDeferred, EligibilityPermanent:
		return true
	}
	return false
}

type IneligibilityReason string

const (
	ReasonRecentDonation   IneligibilityReason = "recent_donation"
	ReasonMedicalCondition IneligibilityReason = "medical_condition"
	ReasonMedication       IneligibilityReason = "medication"
	ReasonTravel           IneligibilityReason = "travel"
	ReasonPregnancy        IneligibilityReason = "pregnancy"
	ReasonAge              IneligibilityReason = "age"
	ReasonWeight           IneligibilityReason = "weight"
	ReasonTattoo           IneligibilityReason = "tattoo"
	ReasonOther            IneligibilityReason = "other"
)

// DonationStatus is the outcome of a single collection.
type DonationStatus string

const (
	DonationCompleted   DonationStatus = "completed"
	DonationRejected    DonationStatus = "rejected"
	DonationQuarantined DonationStatus = "quarantined"
)

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

type ContactInfo struct {
	Phone   string  `json:"phone,omitempty" validate:"omitempty,min=10,max=15" msg:"Please provide a valid phone number"`
	Email   string  `json:"email,omitempty" validate:"omitempty,email" msg:"Please provide a valid email"`
	Address Address `json:"address"`
}

type EmergencyContact struct {
	Name         string `json:"name,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

type BloodPressure struct {
	Systolic  int `json:"systolic,omitempty"`
	Diastolic int `json:"diastolic,omitempty"`
}

type MedicalInfo struct {
	Weight            float64       `json:"weight,omitempty" validate:"omitempty,gt=0" msg:"Weight must be positive"`
	Height            float64       `json:"height,omitempty" validate:"omitempty,gt=0" msg:"Height must be positive"`
	Hemoglobin        float64       `json:"hemoglobin,omitempty"`
	BloodPressure     BloodPressure `json:"bloodPressure"`
	Allergies         []string      `json:"allergies,omitempty"`
	Medications       []string      `json:"medications,omitempty"`
	MedicalConditions []string      `json:"medicalConditions,omitempty"`
}

type Preferences struct {
	PreferredLocation string `json:"preferredLocation,omitempty"`
	PreferredTime     string `json:"preferredTime,omitempty" validate:"omitempty,oneof=morning afternoon evening" msg:"Preferred time must be morning, afternoon or evening"`
	ContactMethod     string `json:"contactMethod,omitempty" validate:"omitempty,oneof=email phone sms" msg:"Contact method must be email, phone or sms"`
	Reminders         bool   `json:"reminders"`
}

func DefaultPreferences() Preferences {
	return Preferences{ContactMethod: "email", Reminders: true}
}

type Vitals struct {
	Hemoglobin    float64       `json:"hemoglobin,omitempty"`
	BloodPressure BloodPressure `json:"bloodPressure"`
	Pulse         int           `json:"pulse,omitempty"`
	Temperature   float64       `json:"temperature,omitempty"`
}

// Donation is one entry in a donor's history.
type Donation struct {
	Date        time.Time         `json:"date"`
	Units       int               `json:"units"`
	Location    string            `json:"location"`
	CampaignID  *id.CampaignID    `json:"campaignId,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	Vitals      *Vitals           `json:"vitals,omitempty"`
	TestResults map[string]string `json:"testResults,omitempty"`
	Status      DonationStatus    `json:"status"`
}

// ListFilter narrows the donor listing. Search matches first name, last
// name, email and display id as case-insensitive substrings.
type ListFilter struct {
	BloodType   id.BloodType
	Eligibility EligibilityStatus
	Search      string
}

// GroupCount is the number of donors sharing a blood type and status.
type GroupCount struct {
	BloodType   id.BloodType
	Eligibility EligibilityStatus
	Count       int
}

// MonthlyDonations sums donation entries dated within one calendar month.
type MonthlyDonations struct {
	Year      int `json:"year"`
	Month     int `json:"month"`
	Donations int `json:"donations"`
	Units     int `json:"units"`
}
