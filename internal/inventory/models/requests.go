package models

import (
	"strings"

	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/validation"
)

// AddUnitsRequest is the intake payload. Units is the number of physical
// records to create.
type AddUnitsRequest struct {
	BloodType    string  `json:"bloodType" validate:"required,bloodtype" msg:"Please provide a valid blood type"`
	Units        int     `json:"units" validate:"min=1,max=50" msg:"Units must be between 1 and 50"`
	DonationDate id.Date `json:"donationDate"`
	ExpiryDate   id.Date `json:"expiryDate"`
	Location     string  `json:"location" validate:"omitempty,oneof=main_bank satellite_1 satellite_2 mobile_unit" msg:"Please provide a valid location"`
	Component    string  `json:"component" validate:"omitempty,oneof=whole_blood plasma platelets red_cells cryoprecipitate" msg:"Please provide a valid component"`
	DonorID      string  `json:"donorId"`
	DonationID   string  `json:"donationId"`
	Notes        string  `json:"notes" validate:"max=500"`
}

func (r *AddUnitsRequest) Normalize() {
	r.BloodType = strings.ToUpper(strings.TrimSpace(r.BloodType))
	r.Location = strings.TrimSpace(r.Location)
	r.Component = strings.TrimSpace(r.Component)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *AddUnitsRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.DonationDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "Donation date is required")
	}
	if r.DonorID != "" {
		if _, err := id.ParseDonorID(r.DonorID); err != nil {
			return dErrors.New(dErrors.CodeValidation, "Invalid donor id")
		}
	}
	return nil
}

// ReserveRequest and IssueRequest name the blood request the unit serves.
type ReserveRequest struct {
	RequestID string `json:"requestId" validate:"required" msg:"Request id is required"`
}

type IssueRequest struct {
	RequestID string `json:"requestId" validate:"required" msg:"Request id is required"`
}

// ReasonRequest carries the reason for a return or a discard.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"notblank,max=500" msg:"Reason is required"`
}
