package models

import (
	"strings"

	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/validation"
)

const errMissingFields = "All required fields must be provided"

// CreateCampaignRequest is the campaign payload. Location may be sent as a
// plain name.
type CreateCampaignRequest struct {
	Title            string   `json:"title" validate:"notblank" msg:"All required fields must be provided"`
	Description      string   `json:"description" validate:"notblank" msg:"All required fields must be provided"`
	Type             string   `json:"type" validate:"omitempty,oneof=general emergency targeted corporate school community mobile" msg:"Invalid campaign type"`
	Status           string   `json:"status" validate:"omitempty,oneof=planning active completed cancelled postponed" msg:"Invalid campaign status"`
	Location         Location `json:"location"`
	StartDate        id.Date  `json:"startDate"`
	EndDate          id.Date  `json:"endDate"`
	TargetDonors     int      `json:"targetDonors" validate:"min=1" msg:"All required fields must be provided"`
	TargetUnits      int      `json:"targetUnits" validate:"min=0" msg:"Target units cannot be negative"`
	TargetBloodTypes []string `json:"targetBloodTypes" validate:"omitempty,dive,bloodtype" msg:"Please provide a valid blood type"`
	Notes            string   `json:"notes" validate:"max=2000"`
}

func (r *CreateCampaignRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Type = strings.TrimSpace(r.Type)
	r.Status = strings.TrimSpace(r.Status)
	r.Location.Name = strings.TrimSpace(r.Location.Name)
	for i, bt := range r.TargetBloodTypes {
		r.TargetBloodTypes[i] = strings.ToUpper(strings.TrimSpace(bt))
	}
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *CreateCampaignRequest) Validate() error {
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, errMissingFields)
	}
	if err := validation.Struct(r); err != nil {
		return err
	}
	if !r.EndDate.After(r.StartDate.Time) {
		return dErrors.New(dErrors.CodeValidation, "End date must be after start date")
	}
	return nil
}

func (r *CreateCampaignRequest) Draft() Draft {
	types := make([]id.BloodType, 0, len(r.TargetBloodTypes))
	for _, bt := range r.TargetBloodTypes {
		types = append(types, id.BloodType(bt))
	}
	return Draft{
		Title:            r.Title,
		Description:      r.Description,
		Type:             Type(r.Type),
		Status:           Status(r.Status),
		Location:         r.Location,
		StartDate:        r.StartDate.Time,
		EndDate:          r.EndDate.Time,
		TargetDonors:     r.TargetDonors,
		TargetUnits:      r.TargetUnits,
		TargetBloodTypes: types,
		Notes:            r.Notes,
	}
}

type DonationRequest struct {
	DonorID   string `json:"donorId" validate:"required" msg:"Invalid donor id"`
	Units     int    `json:"units" validate:"min=1" msg:"Units must be at least 1"`
	BloodType string `json:"bloodType" validate:"required,bloodtype" msg:"Please provide a valid blood type"`
	Notes     string `json:"notes" validate:"max=500"`
}

func (r *DonationRequest) Normalize() {
	r.DonorID = strings.TrimSpace(r.DonorID)
	r.BloodType = strings.ToUpper(strings.TrimSpace(r.BloodType))
	r.Notes = strings.TrimSpace(r.Notes)
}

// Validate also parses the donor id.
func (r *DonationRequest) Validate() (id.DonorID, error) {
	if err := validation.Struct(r); err != nil {
		return id.DonorID{}, err
	}
	donorID, err := id.ParseDonorID(r.DonorID)
	if err != nil {
		return id.DonorID{}, dErrors.New(dErrors.CodeValidation, "Invalid donor id")
	}
	return donorID, nil
}

type FeedbackRequest struct {
	Rating  int    `json:"rating" validate:"min=1,max=5" msg:"Rating must be between 1 and 5"`
	Comment string `json:"comments" validate:"max=1000" msg:"Comments must be at most 1000 characters"`
	DonorID string `json:"donorId"`
}

// Validate returns the optional donor id.
func (r *FeedbackRequest) Validate() (*id.DonorID, error) {
	if err := validation.Struct(r); err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(r.DonorID)
	if raw == "" {
		return nil, nil
	}
	donorID, err := id.ParseDonorID(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "Invalid donor id")
	}
	return &donorID, nil
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=planning active completed cancelled postponed" msg:"Invalid campaign status"`
}

func (r *StatusRequest) Validate() error {
	r.Status = strings.TrimSpace(r.Status)
	return validation.Struct(r)
}
