package models

import (
	"strings"

	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/email"
	"lifeflow/pkg/validation"
)

// CreateDonorRequest is the intake payload. The identity is matched by
// email and created with the donor role when absent.
type CreateDonorRequest struct {
	FirstName        string            `json:"firstName" validate:"notblank" msg:"First name is required"`
	LastName         string            `json:"lastName" validate:"notblank" msg:"Last name is required"`
	Email            string            `json:"email" validate:"required,email" msg:"Please provide a valid email"`
	BloodType        string            `json:"bloodType" validate:"required,bloodtype" msg:"Please provide a valid blood type"`
	Phone            string            `json:"phone" validate:"min=10,max=15" msg:"Please provide a valid phone number"`
	DateOfBirth      id.Date           `json:"dateOfBirth"`
	Address          Address           `json:"address"`
	EmergencyContact *EmergencyContact `json:"emergencyContact"`
	MedicalInfo      *MedicalInfo      `json:"medicalInfo" validate:"omitnil"`
	Preferences      *Preferences      `json:"preferences" validate:"omitnil"`
}

func (r *CreateDonorRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = email.Normalize(r.Email)
	r.BloodType = strings.ToUpper(strings.TrimSpace(r.BloodType))
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r *CreateDonorRequest) Validate() error {
	return validation.Struct(r)
}

// ApplyProfile copies the optional profile blocks onto d.
func (r *CreateDonorRequest) ApplyProfile(d *Donor) {
	d.BloodType = id.BloodType(r.BloodType)
	d.ContactInfo.Phone = r.Phone
	d.ContactInfo.Email = r.Email
	d.ContactInfo.Address = r.Address
	if r.EmergencyContact != nil {
		d.EmergencyContact = *r.EmergencyContact
	}
	if r.MedicalInfo != nil {
		d.MedicalInfo = *r.MedicalInfo
	}
	if r.Preferences != nil {
		d.Preferences = *r.Preferences
	}
}

// UpdateDonorRequest is a partial update. Nil fields are left untouched.
// Name and phone changes are written to the linked identity as well.
type UpdateDonorRequest struct {
	FirstName           *string           `json:"firstName" validate:"omitnil,notblank" msg:"First name cannot be empty"`
	LastName            *string           `json:"lastName" validate:"omitnil,notblank" msg:"Last name cannot be empty"`
	Phone               *string           `json:"phone" validate:"omitnil,min=10,max=15" msg:"Please provide a valid phone number"`
	BloodType           *string           `json:"bloodType" validate:"omitnil,bloodtype" msg:"Please provide a valid blood type"`
	EligibilityStatus   *string           `json:"eligibilityStatus" validate:"omitnil,oneof=eligible ineligible deferred permanent" msg:"Invalid eligibility status"`
	IneligibilityReason *string           `json:"ineligibilityReason" validate:"omitnil,oneof=recent_donation medical_condition medication travel pregnancy age weight tattoo other" msg:"Invalid ineligibility reason"`
	ContactInfo         *ContactInfo      `json:"contactInfo" validate:"omitnil"`
	EmergencyContact    *EmergencyContact `json:"emergencyContact"`
	MedicalInfo         *MedicalInfo      `json:"medicalInfo" validate:"omitnil"`
	Preferences         *Preferences      `json:"preferences" validate:"omitnil"`
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func (r *UpdateDonorRequest) Normalize() {
	trimPtr(r.FirstName)
	trimPtr(r.LastName)
	trimPtr(r.Phone)
	if r.BloodType != nil {
		bt := strings.ToUpper(strings.TrimSpace(*r.BloodType))
		r.BloodType = &bt
	}
	trimPtr(r.EligibilityStatus)
	trimPtr(r.IneligibilityReason)
}

func (r *UpdateDonorRequest) Validate() error {
	return validation.Struct(r)
}

// TouchesIdentity reports whether the patch carries identity fields.
func (r *UpdateDonorRequest) TouchesIdentity() bool {
	return r.FirstName != nil || r.LastName != nil || r.Phone != nil || r.BloodType != nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// IdentityFields returns the identity values carried by the patch; absent
// fields are blank.
func (r *UpdateDonorRequest) IdentityFields() (firstName, lastName, phone string, bloodType id.BloodType) {
	return deref(r.FirstName), deref(r.LastName), deref(r.Phone), id.BloodType(deref(r.BloodType))
}

// ApplyTo writes the whitelisted fields onto d.
func (r *UpdateDonorRequest) ApplyTo(d *Donor) {
	if r.FirstName != nil {
		d.FirstName = *r.FirstName
	}
	if r.LastName != nil {
		d.LastName = *r.LastName
	}
	if r.Phone != nil {
		d.ContactInfo.Phone = *r.Phone
	}
	if r.BloodType != nil {
		d.BloodType = id.BloodType(*r.BloodType)
	}
	if r.EligibilityStatus != nil {
		d.EligibilityStatus = EligibilityStatus(*r.EligibilityStatus)
	}
	if r.IneligibilityReason != nil {
		d.IneligibilityReason = IneligibilityReason(*r.IneligibilityReason)
	}
	if r.ContactInfo != nil {
		d.ContactInfo = *r.ContactInfo
	}
	if r.EmergencyContact != nil {
		d.EmergencyContact = *r.EmergencyContact
	}
	if r.MedicalInfo != nil {
		d.MedicalInfo = *r.MedicalInfo
	}
	if r.Preferences != nil {
		d.Preferences = *r.Preferences
	}
}

// RecordDonationRequest logs a collection. Date defaults to now.
type RecordDonationRequest struct {
	Units       int               `json:"units" validate:"min=1" msg:"Units must be at least 1"`
	Location    string            `json:"location" validate:"notblank" msg:"Donation location is required"`
	Date        id.Date           `json:"date"`
	CampaignID  string            `json:"campaignId"`
	Notes       string            `json:"notes" validate:"max=500"`
	Vitals      *Vitals           `json:"vitals"`
	TestResults map[string]string `json:"testResults"`
	Status      string            `json:"status" validate:"omitempty,oneof=completed rejected quarantined" msg:"Invalid donation status"`
}

func (r *RecordDonationRequest) Normalize() {
	r.Location = strings.TrimSpace(r.Location)
	r.CampaignID = strings.TrimSpace(r.CampaignID)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *RecordDonationRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.CampaignID != "" {
		if _, err := id.ParseCampaignID(r.CampaignID); err != nil {
			return dErrors.New(dErrors.CodeValidation, "Invalid campaign id")
		}
	}
	return nil
}

// Campaign returns the referenced campaign, if any. Call after Validate.
func (r *RecordDonationRequest) Campaign() *id.CampaignID {
	if r.CampaignID == "" {
		return nil
	}
	c, err := id.ParseCampaignID(r.CampaignID)
	if err != nil {
		return nil
	}
	return &c
}

// EligibilityRequest sets the status by hand. An empty status changes
// nothing.
type EligibilityRequest struct {
	Status string `json:"eligibilityStatus" validate:"omitempty,oneof=eligible ineligible deferred permanent" msg:"Invalid eligibility status"`
	Reason string `json:"ineligibilityReason" validate:"omitempty,oneof=recent_donation medical_condition medication travel pregnancy age weight tattoo other" msg:"Invalid ineligibility reason"`
}

func (r *EligibilityRequest) Normalize() {
	r.Status = strings.TrimSpace(r.Status)
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *EligibilityRequest) Validate() error {
	return validation.Struct(r)
}
