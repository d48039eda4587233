package models

import (
	"strings"

	invmodels "lifeflow/internal/inventory/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/validation"
)

// LineItemInput is a line item as submitted. Component defaults to whole
// blood, urgency to routine, crossmatch to required.
type LineItemInput struct {
	BloodType           string `json:"bloodType" validate:"required,bloodtype" msg:"Please provide a valid blood type"`
	Component           string `json:"component" validate:"omitempty,oneof=whole_blood plasma platelets red_cells cryoprecipitate" msg:"Please provide a valid component"`
	Units               int    `json:"units" validate:"min=1" msg:"Units must be at least 1"`
	Urgency             string `json:"urgency" validate:"omitempty,oneof=routine urgent emergency" msg:"Invalid urgency"`
	SpecialRequirements string `json:"specialRequirements"`
	CrossmatchRequired  *bool  `json:"crossmatchRequired"`
}

func (in LineItemInput) toLineItem() LineItem {
	l := LineItem{
		BloodType:           id.BloodType(strings.ToUpper(strings.TrimSpace(in.BloodType))),
		Component:           invmodels.Component(in.Component),
		Units:               in.Units,
		Urgency:             Urgency(in.Urgency),
		SpecialRequirements: strings.TrimSpace(in.SpecialRequirements),
		CrossmatchRequired:  true,
	}
	if l.Component == "" {
		l.Component = invmodels.ComponentWholeBlood
	}
	if l.Urgency == "" {
		l.Urgency = UrgencyRoutine
	}
	if in.CrossmatchRequired != nil {
		l.CrossmatchRequired = *in.CrossmatchRequired
	}
	return l
}

func normalizeLines(in []LineItemInput) {
	for i := range in {
		in[i].BloodType = strings.ToUpper(strings.TrimSpace(in[i].BloodType))
		in[i].Component = strings.TrimSpace(in[i].Component)
		in[i].Urgency = strings.TrimSpace(in[i].Urgency)
	}
}

// LineItems converts validated inputs.
func LineItems(in []LineItemInput) []LineItem {
	out := make([]LineItem, 0, len(in))
	for _, item := range in {
		out = append(out, item.toLineItem())
	}
	return out
}

// CreateRequestRequest is the intake payload. At least one of patient and
// institution is required.
type CreateRequestRequest struct {
	Patient           *Patient        `json:"patient" validate:"omitnil"`
	Institution       *Institution    `json:"institution" validate:"omitnil"`
	BloodRequirements []LineItemInput `json:"bloodRequirements" validate:"required,min=1,dive" msg:"Blood requirements are required"`
	Priority          string          `json:"priority" validate:"omitempty,oneof=low medium high critical" msg:"Invalid priority"`
	RequiredBy        id.Date         `json:"requiredBy"`
	Notes             string          `json:"notes" validate:"max=1000"`
	FollowUp          *FollowUp       `json:"followUp"`
	Transportation    *Transportation `json:"transportation" validate:"omitnil"`
}

func (r *CreateRequestRequest) Normalize() {
	normalizeLines(r.BloodRequirements)
	r.Priority = strings.TrimSpace(r.Priority)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *CreateRequestRequest) Validate() error {
	if len(r.BloodRequirements) == 0 {
		return dErrors.New(dErrors.CodeValidation, "Blood requirements are required")
	}
	if r.Patient == nil && r.Institution == nil {
		return errNoRequester
	}
	return validation.Struct(r)
}

// UpdateRequestRequest is a partial update over the whitelisted fields.
// Sending a patient or institution rebuilds the requester.
type UpdateRequestRequest struct {
	Patient           *Patient        `json:"patient" validate:"omitnil"`
	Institution       *Institution    `json:"institution" validate:"omitnil"`
	BloodRequirements []LineItemInput `json:"bloodRequirements" validate:"omitempty,min=1,dive" msg:"Blood requirements are required"`
	Status            *string         `json:"status" validate:"omitnil,oneof=pending approved partially_fulfilled fulfilled cancelled rejected" msg:"Invalid status"`
	Priority          *string         `json:"priority" validate:"omitnil,oneof=low medium high critical" msg:"Invalid priority"`
	RequiredBy        *id.Date        `json:"requiredBy"`
	Notes             *string         `json:"notes" validate:"omitnil,max=1000"`
	FollowUp          *FollowUp       `json:"followUp"`
	Transportation    *Transportation `json:"transportation" validate:"omitnil"`
}

func (r *UpdateRequestRequest) Normalize() {
	normalizeLines(r.BloodRequirements)
	if r.Status != nil {
		s := strings.TrimSpace(*r.Status)
		r.Status = &s
	}
	if r.Priority != nil {
		p := strings.TrimSpace(*r.Priority)
		r.Priority = &p
	}
}

func (r *UpdateRequestRequest) Validate() error {
	if r.BloodRequirements != nil && len(r.BloodRequirements) == 0 {
		return dErrors.New(dErrors.CodeValidation, "Blood requirements are required")
	}
	return validation.Struct(r)
}

// NewStatus returns the requested status, if any.
func (r *UpdateRequestRequest) NewStatus() Status {
	if r.Status == nil {
		return ""
	}
	return Status(*r.Status)
}

// ApplyTo writes the non-status fields onto req. The requester must have
// been rebuilt by the caller when patient or institution is set.
func (r *UpdateRequestRequest) ApplyTo(req *Request, requester *Requester) {
	if requester != nil {
		req.Requester = *requester
	}
	if r.BloodRequirements != nil {
		req.ReplaceRequirements(LineItems(r.BloodRequirements))
	}
	if r.Priority != nil {
		req.Priority = Priority(*r.Priority)
	}
	if r.RequiredBy != nil && !r.RequiredBy.IsZero() {
		req.RequiredBy = r.RequiredBy.Time
	}
	if r.Notes != nil {
		req.Notes = strings.TrimSpace(*r.Notes)
	}
	if r.FollowUp != nil {
		req.FollowUp = r.FollowUp
	}
	if r.Transportation != nil {
		req.Transportation = r.Transportation
	}
}

// StatusRequest sets the status by hand. An empty status changes nothing.
type StatusRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=pending approved partially_fulfilled fulfilled cancelled rejected" msg:"Invalid status"`
	Reason string `json:"reason" validate:"max=500"`
}

func (r *StatusRequest) Normalize() {
	r.Status = strings.TrimSpace(r.Status)
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *StatusRequest) Validate() error {
	return validation.Struct(r)
}

// AssignRequest hands an inventory unit to the request. Units defaults to
// the unit's own count.
type AssignRequest struct {
	UnitID string `json:"unitId" validate:"required" msg:"Unit id is required"`
	Units  int    `json:"units" validate:"min=0" msg:"Units must be at least 1"`
}

func (r *AssignRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if _, err := id.ParseUnitID(strings.TrimSpace(r.UnitID)); err != nil {
		return dErrors.New(dErrors.CodeValidation, "Invalid blood unit id")
	}
	return nil
}

// Unit returns the parsed unit id. Call after Validate.
func (r *AssignRequest) Unit() id.UnitID {
	u, _ := id.ParseUnitID(strings.TrimSpace(r.UnitID))
	return u
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (r *CancelRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}
