package models

import (
	"time"

	invmodels "lifeflow/internal/inventory/models"
	id "lifeflow/pkg/domain"
)

// Status is the overall request state.
type Status string

const (
	StatusPending            Status = "pending"
	StatusApproved           Status = "approved"
	StatusPartiallyFulfilled Status = "partially_fulfilled"
	StatusFulfilled          Status = "fulfilled"
	StatusCancelled          Status = "cancelled"
	StatusRejected           Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusPartiallyFulfilled, StatusFulfilled, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// IsActive reports whether the request still awaits blood.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusApproved || s == StatusPartiallyFulfilled
}

// IsClosed reports whether the request accepts no further assignments.
func (s Status) IsClosed() bool {
	return s == StatusFulfilled || s == StatusCancelled || s == StatusRejected
}

// IsDerived reports whether the status follows from the fulfilled line
// totals rather than a decision.
func (s Status) IsDerived() bool {
	return s == StatusPending || s == StatusPartiallyFulfilled || s == StatusFulfilled
}

// ActiveStatuses lists the states counted as open work.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusPartiallyFulfilled}
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorityRank = map[Priority]int{
	PriorityLow:      1,
	PriorityMedium:   2,
	PriorityHigh:     3,
	PriorityCritical: 4,
}

func (p Priority) IsValid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank orders priorities; higher is more pressing.
func (p Priority) Rank() int {
	return priorityRank[p]
}

type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// AssignmentStatus tracks one unit handed to a request.
type AssignmentStatus string

const (
	AssignmentAssigned AssignmentStatus = "assigned"
	AssignmentIssued   AssignmentStatus = "issued"
	AssignmentReturned AssignmentStatus = "returned"
)

// Outstanding reports whether the unit is still held by the request.
func (s AssignmentStatus) Outstanding() bool {
	return s == AssignmentAssigned || s == AssignmentIssued
}

// LineItem is one blood type and component demand.
type LineItem struct {
	BloodType           id.BloodType        `json:"bloodType"`
	Component           invmodels.Component `json:"component"`
	Units               int                 `json:"units"`
	UnitsFulfilled      int                 `json:"unitsFulfilled"`
	Urgency             Urgency             `json:"urgency"`
	SpecialRequirements string              `json:"specialRequirements,omitempty"`
	CrossmatchRequired  bool                `json:"crossmatchRequired"`
}

// Matches reports whether a unit of the given type and component serves
// this line.
func (l LineItem) Matches(bt id.BloodType, c invmodels.Component) bool {
	return l.BloodType == bt && l.Component == c
}

func (l LineItem) open() bool {
	return l.UnitsFulfilled < l.Units
}

type lineKey struct {
	bloodType id.BloodType
	component invmodels.Component
}

func (l LineItem) key() lineKey {
	return lineKey{bloodType: l.BloodType, component: l.Component}
}

type Assignment struct {
	UnitID       id.UnitID           `json:"unitId"`
	BloodType    id.BloodType        `json:"bloodType"`
	Component    invmodels.Component `json:"component"`
	Units        int                 `json:"units"`
	AssignedDate time.Time           `json:"assignedDate"`
	AssignedBy   *id.UserID          `json:"assignedBy,omitempty"`
	Status       AssignmentStatus    `json:"status"`
	ReturnDate   *time.Time          `json:"returnDate,omitempty"`
	ReturnReason string              `json:"returnReason,omitempty"`
}

type FollowUp struct {
	Required bool       `json:"required"`
	Date     *time.Time `json:"date,omitempty"`
	Notes    string     `json:"notes,omitempty"`
}

type Transportation struct {
	Required       bool       `json:"required"`
	Method         string     `json:"method,omitempty" validate:"omitempty,oneof=courier ambulance pickup other" msg:"Invalid transportation method"`
	TrackingNumber string     `json:"trackingNumber,omitempty"`
	DeliveredDate  *time.Time `json:"deliveredDate,omitempty"`
	DeliveredBy    string     `json:"deliveredBy,omitempty"`
}

type ListFilter struct {
	Status    Status
	Priority  Priority
	BloodType id.BloodType
	Search    string
}
