package models

import (
	"fmt"
	"math"
	"time"

	invmodels "lifeflow/internal/inventory/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
)

const (
	// DefaultLeadTime is how far out requiredBy lands when not given.
	DefaultLeadTime = 7 * 24 * time.Hour
	// DueSoonWindow marks active requests as urgent regardless of priority.
	DueSoonWindow = 24 * time.Hour

	CancelReturnReason = "Request cancelled"
)

// Request is a clinical demand for blood. Totals and fulfillment are
// derived from the line items and never stored.
type Request struct {
	ID                 id.RequestID    `json:"id"`
	DisplayID          string          `json:"requestId"`
	RequestedBy        id.UserID       `json:"requestedBy"`
	Requester          Requester       `json:"requester"`
	BloodRequirements  []LineItem      `json:"bloodRequirements"`
	Status             Status          `json:"status"`
	Priority           Priority        `json:"priority"`
	RequestedDate      time.Time       `json:"requestedDate"`
	RequiredBy         time.Time       `json:"requiredBy"`
	ApprovedBy         *id.UserID      `json:"approvedBy,omitempty"`
	ApprovedDate       *time.Time      `json:"approvedDate,omitempty"`
	FulfilledDate      *time.Time      `json:"fulfilledDate,omitempty"`
	CancelledDate      *time.Time      `json:"cancelledDate,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	RejectionReason    string          `json:"rejectionReason,omitempty"`
	AssignedUnits      []Assignment    `json:"assignedUnits"`
	Notes              string          `json:"notes,omitempty"`
	FollowUp           *FollowUp       `json:"followUp,omitempty"`
	Transportation     *Transportation `json:"transportation,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// NewRequest builds a pending request. A zero requiredBy defaults to now
// plus DefaultLeadTime; an empty priority to medium.
func NewRequest(requestedBy id.UserID, displayID string, requester Requester, items []LineItem, priority Priority, requiredBy, now time.Time) (*Request, error) {
	if requester.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "Either patient or institution information is required")
	}
	if len(items) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "Blood requirements are required")
	}
	if displayID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "display id required")
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "Invalid priority")
	}
	if requiredBy.IsZero() {
		requiredBy = now.Add(DefaultLeadTime)
	}
	return &Request{
		ID:                id.NewRequestID(),
		DisplayID:         displayID,
		RequestedBy:       requestedBy,
		Requester:         requester,
		BloodRequirements: items,
		Status:            StatusPending,
		Priority:          priority,
		RequestedDate:     now,
		RequiredBy:        requiredBy,
		AssignedUnits:     []Assignment{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (r *Request) TotalUnitsRequested() int {
	total := 0
	for _, l := range r.BloodRequirements {
		total += l.Units
	}
	return total
}

func (r *Request) TotalUnitsFulfilled() int {
	total := 0
	for _, l := range r.BloodRequirements {
		total += l.UnitsFulfilled
	}
	return total
}

// FulfillmentPercentage is rounded to a whole percent; 0 when nothing was
// requested.
func (r *Request) FulfillmentPercentage() int {
	requested := r.TotalUnitsRequested()
	if requested == 0 {
		return 0
	}
	return int(math.Round(float64(r.TotalUnitsFulfilled()) / float64(requested) * 100))
}

// DaysUntilRequired rounds up; overdue requests go negative.
func (r *Request) DaysUntilRequired(now time.Time) int {
	return int(math.Ceil(r.RequiredBy.Sub(now).Hours() / 24))
}

// IsUrgent holds for high and critical priority or any emergency line.
func (r *Request) IsUrgent() bool {
	if r.Priority == PriorityHigh || r.Priority == PriorityCritical {
		return true
	}
	for _, l := range r.BloodRequirements {
		if l.Urgency == UrgencyEmergency {
			return true
		}
	}
	return false
}

// NeedsAttention is the urgent-queue predicate: an active request that is
// urgent or due within DueSoonWindow.
func (r *Request) NeedsAttention(now time.Time) bool {
	if !r.Status.IsActive() {
		return false
	}
	return r.IsUrgent() || !r.RequiredBy.After(now.Add(DueSoonWindow))
}

// BloodTypes lists the distinct types across line items in order.
func (r *Request) BloodTypes() []id.BloodType {
	seen := make(map[id.BloodType]struct{}, len(r.BloodRequirements))
	out := make([]id.BloodType, 0, len(r.BloodRequirements))
	for _, l := range r.BloodRequirements {
		if _, ok := seen[l.BloodType]; ok {
			continue
		}
		seen[l.BloodType] = struct{}{}
		out = append(out, l.BloodType)
	}
	return out
}

// DerivedStatus is the status the line totals imply.
func (r *Request) DerivedStatus() Status {
	requested, fulfilled := r.TotalUnitsRequested(), r.TotalUnitsFulfilled()
	switch {
	case fulfilled == 0:
		return StatusPending
	case fulfilled < requested:
		return StatusPartiallyFulfilled
	default:
		return StatusFulfilled
	}
}

// RecomputeStatus derives the status from fulfillment. The first time the
// request is fully served, the fulfillment time is stamped.
func (r *Request) RecomputeStatus(now time.Time) {
	r.Status = r.DerivedStatus()
	if r.Status == StatusFulfilled && r.FulfilledDate == nil {
		stamp := now
		r.FulfilledDate = &stamp
	}
}

// matchingLine prefers the first matching line that still has room and
// falls back to the first match.
func (r *Request) matchingLine(bt id.BloodType, c invmodels.Component) int {
	first := -1
	for i, l := range r.BloodRequirements {
		if !l.Matches(bt, c) {
			continue
		}
		if l.open() {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

// CanAssign checks that a unit of the given type and component may be
// assigned to the request.
func (r *Request) CanAssign(bt id.BloodType, c invmodels.Component) error {
	if r.Status.IsClosed() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("Cannot assign units to a request with status %s", r.Status))
	}
	if r.matchingLine(bt, c) < 0 {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("Request has no %s %s requirement", bt, c))
	}
	return nil
}

// Assign appends the assignment, bumps the matching line and recomputes
// the status. Call CanAssign first.
func (r *Request) Assign(unitID id.UnitID, bt id.BloodType, c invmodels.Component, units int, by id.UserID, now time.Time) {
	a := Assignment{
		UnitID:       unitID,
		BloodType:    bt,
		Component:    c,
		Units:        units,
		AssignedDate: now,
		Status:       AssignmentAssigned,
	}
	if !by.IsNil() {
		a.AssignedBy = &by
	}
	r.AssignedUnits = append(r.AssignedUnits, a)
	if i := r.matchingLine(bt, c); i >= 0 {
		r.BloodRequirements[i].UnitsFulfilled += units
	}
	r.RecomputeStatus(now)
	r.UpdatedAt = now
}

// OutstandingUnits lists units still held by the request.
func (r *Request) OutstandingUnits() []id.UnitID {
	var out []id.UnitID
	for _, a := range r.AssignedUnits {
		if a.Status.Outstanding() {
			out = append(out, a.UnitID)
		}
	}
	return out
}

func (r *Request) CanCancel() error {
	if r.Status == StatusCancelled {
		return dErrors.New(dErrors.CodeValidation, "Request is already cancelled")
	}
	return nil
}

// Cancel closes the request and marks the given assignments returned.
func (r *Request) Cancel(reason string, returned []id.UnitID, now time.Time) {
	r.Status = StatusCancelled
	stamp := now
	r.CancelledDate = &stamp
	r.CancellationReason = reason
	back := make(map[id.UnitID]struct{}, len(returned))
	for _, u := range returned {
		back[u] = struct{}{}
	}
	for i := range r.AssignedUnits {
		a := &r.AssignedUnits[i]
		if _, ok := back[a.UnitID]; !ok || !a.Status.Outstanding() {
			continue
		}
		a.Status = AssignmentReturned
		a.ReturnDate = &stamp
		a.ReturnReason = CancelReturnReason
	}
	r.UpdatedAt = now
}

// CanApplyStatus rejects a hand-set pending, partially fulfilled or
// fulfilled status that disagrees with the line totals.
func (r *Request) CanApplyStatus(status Status) error {
	if !status.IsDerived() {
		return nil
	}
	if derived := r.DerivedStatus(); status != derived {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf(
			"Cannot set status %s while %d of %d units are fulfilled",
			status, r.TotalUnitsFulfilled(), r.TotalUnitsRequested()))
	}
	return nil
}

// ApplyStatus sets a status by hand. Approval stamps the approver and
// rejection the reason. Derived statuses are recomputed from the lines, so
// call CanApplyStatus first.
func (r *Request) ApplyStatus(status Status, actor id.UserID, reason string, now time.Time) {
	switch {
	case status.IsDerived():
		r.RecomputeStatus(now)
	case status == StatusApproved:
		r.Status = status
		if !actor.IsNil() {
			r.ApprovedBy = &actor
		}
		stamp := now
		r.ApprovedDate = &stamp
	case status == StatusRejected:
		r.Status = status
		r.RejectionReason = reason
	default:
		r.Status = status
	}
	r.UpdatedAt = now
}

// ReplaceRequirements swaps the line items. The units already fulfilled for
// each type and component are handed out once across the matching new
// lines, filling each in order; whatever does not fit stays on the last
// match so the total still equals what was assigned.
func (r *Request) ReplaceRequirements(items []LineItem) {
	pool := make(map[lineKey]int, len(r.BloodRequirements))
	for _, l := range r.BloodRequirements {
		pool[l.key()] += l.UnitsFulfilled
	}
	last := make(map[lineKey]int, len(items))
	for i := range items {
		k := items[i].key()
		n := min(pool[k], items[i].Units)
		items[i].UnitsFulfilled = n
		pool[k] -= n
		last[k] = i
	}
	for k, rest := range pool {
		if i, ok := last[k]; ok && rest > 0 {
			items[i].UnitsFulfilled += rest
		}
	}
	r.BloodRequirements = items
}
