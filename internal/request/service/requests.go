package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	activity "lifeflow/internal/activity/models"
	invmodels "lifeflow/internal/inventory/models"
	"lifeflow/internal/platform/sequence"
	"lifeflow/internal/request/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/requestcontext"
)

// Create files a pending request under the next REQ display id.
func (s *Service) Create(ctx context.Context, req *models.CreateRequestRequest) (_ *models.Request, err error) {
	ctx, span := tracer.Start(ctx, "Request.Service.Create")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	requester, err := models.RequesterFrom(req.Patient, req.Institution)
	if err != nil {
		return nil, invariantToValidation(err)
	}
	now := requestcontext.Now(ctx)
	actor := requestcontext.UserID(ctx)

	seq, err := s.seq.Next(ctx, sequence.ScopeRequest, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to allocate request id")
	}
	r, err := models.NewRequest(actor, id.FormatDisplayID(id.RequestPrefix, now, seq), requester,
		models.LineItems(req.BloodRequirements), models.Priority(req.Priority), req.RequiredBy.Time, now)
	if err != nil {
		return nil, invariantToValidation(err)
	}
	r.Notes = req.Notes
	r.FollowUp = req.FollowUp
	r.Transportation = req.Transportation

	if err := s.store.Create(ctx, r); err != nil {
		return nil, wrapRequestErr(err, "Failed to create request")
	}

	span.SetAttributes(attribute.String("request_id", r.ID.String()))
	s.metrics.IncrementRequestsCreated()
	s.record(ctx, activity.NewEntry(actor, activity.ActionCreateRequest,
		fmt.Sprintf("Created request %s for %s", r.DisplayID, r.Requester.Name()),
		activity.EntityRequest, r.ID.String()).
		WithMetadata("priority", string(r.Priority)).
		WithMetadata("unitsRequested", r.TotalUnitsRequested()))
	s.logger.InfoContext(ctx, "blood request created",
		"request_id", requestcontext.RequestID(ctx),
		"blood_request_id", r.ID.String(),
		"display_id", r.DisplayID,
		"priority", r.Priority,
	)
	return r, nil
}

// List pages through requests newest first.
func (s *Service) List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Request, id.Pagination, error) {
	page = page.Normalize(defaultListLimit)
	switch {
	case filter.Status != "" && !filter.Status.IsValid():
		return nil, id.Pagination{}, dErrors.New(dErrors.CodeValidation, "Invalid status")
	case filter.Priority != "" && !filter.Priority.IsValid():
		return nil, id.Pagination{}, dErrors.New(dErrors.CodeValidation, "Invalid priority")
	case filter.BloodType != "" && !filter.BloodType.IsValid():
		return nil, id.Pagination{}, dErrors.New(dErrors.CodeValidation, "Please provide a valid blood type")
	}
	requests, total, err := s.store.List(ctx, filter, page)
	if err != nil {
		return nil, id.Pagination{}, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch requests")
	}
	return requests, id.NewPagination(page, total), nil
}

func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	r, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		return nil, wrapRequestErr(err, "Failed to fetch request")
	}
	return r, nil
}

// Urgent lists active requests that are urgent or due within a day.
func (s *Service) Urgent(ctx context.Context) ([]*models.Request, error) {
	requests, err := s.store.ListUrgent(ctx, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch urgent requests")
	}
	return requests, nil
}

// Update applies a whitelisted patch. A cancelled status goes through the
// cancellation path so held units are returned.
func (s *Service) Update(ctx context.Context, requestID id.RequestID, patch *models.UpdateRequestRequest) (_ *models.Request, err error) {
	ctx, span := tracer.Start(ctx, "Request.Service.Update",
		trace.WithAttributes(attribute.String("request_id", requestID.String())))
	defer func() { endSpan(span, err) }()

	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	var requester *models.Requester
	if patch.Patient != nil || patch.Institution != nil {
		rq, err := models.RequesterFrom(patch.Patient, patch.Institution)
		if err != nil {
			return nil, invariantToValidation(err)
		}
		requester = &rq
	}
	now := requestcontext.Now(ctx)
	actor := requestcontext.UserID(ctx)
	status := patch.NewStatus()

	var r *models.Request
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if status == models.StatusCancelled {
			if _, _, err := s.cancelInTx(ctx, requestID, "", now); err != nil {
				return err
			}
		}
		updated, err := s.store.Execute(ctx, requestID, statusCheck(patch, status), func(r *models.Request) {
			patch.ApplyTo(r, requester)
			switch {
			case status == "" && patch.BloodRequirements != nil && r.Status.IsDerived():
				r.RecomputeStatus(now)
			case status != "" && status != models.StatusCancelled:
				r.ApplyStatus(status, actor, "", now)
			}
			r.UpdatedAt = now
		})
		r = updated
		return err
	})
	if err != nil {
		return nil, wrapRequestErr(err, "Failed to update request")
	}

	if status != "" {
		s.metrics.IncrementRequestStatus(string(status))
	}
	s.record(ctx, activity.NewEntry(actor, activity.ActionUpdateRequest,
		"Updated request "+r.DisplayID, activity.EntityRequest, r.ID.String()).
		WithMetadata("status", string(r.Status)))
	return r, nil
}

// statusCheck validates a patched status against the line totals the patch
// leaves behind.
func statusCheck(patch *models.UpdateRequestRequest, status models.Status) func(*models.Request) error {
	return func(r *models.Request) error {
		if !status.IsDerived() {
			return nil
		}
		next := *r
		if patch.BloodRequirements != nil {
			next.ReplaceRequirements(models.LineItems(patch.BloodRequirements))
		}
		return next.CanApplyStatus(status)
	}
}

// UpdateStatus sets the status by hand. An empty status returns the request
// unchanged and records nothing; cancelled delegates to Cancel.
func (s *Service) UpdateStatus(ctx context.Context, requestID id.RequestID, req *models.StatusRequest) (*models.Request, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Status == "" {
		return s.Get(ctx, requestID)
	}
	status := models.Status(req.Status)
	if status == models.StatusCancelled {
		return s.Cancel(ctx, requestID, &models.CancelRequest{Reason: req.Reason})
	}
	now := requestcontext.Now(ctx)
	actor := requestcontext.UserID(ctx)
	r, err := s.store.Execute(ctx, requestID, func(r *models.Request) error {
		return r.CanApplyStatus(status)
	}, func(r *models.Request) {
		r.ApplyStatus(status, actor, req.Reason, now)
	})
	if err != nil {
		return nil, wrapRequestErr(err, "Failed to update request status")
	}
	s.metrics.IncrementRequestStatus(string(status))
	s.record(ctx, activity.NewEntry(actor, activity.ActionUpdateStatus,
		fmt.Sprintf("Changed status of request %s to %s", r.DisplayID, status),
		activity.EntityRequest, r.ID.String()).
		WithMetadata("status", string(status)))
	return r, nil
}

// AssignUnits issues an inventory unit to the request, appends the
// assignment and recomputes the status in one unit of work.
func (s *Service) AssignUnits(ctx context.Context, requestID id.RequestID, req *models.AssignRequest) (_ *models.Request, err error) {
	ctx, span := tracer.Start(ctx, "Request.Service.AssignUnits",
		trace.WithAttributes(attribute.String("request_id", requestID.String())))
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	unitID := req.Unit()
	now := requestcontext.Now(ctx)
	actor := requestcontext.UserID(ctx)

	var (
		r    *models.Request
		unit *invmodels.Unit
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		unit, err = s.inventory.Get(ctx, unitID)
		if err != nil {
			return err
		}
		if err := current.CanAssign(unit.BloodType, unit.Component); err != nil {
			return err
		}
		units := req.Units
		if units == 0 {
			units = max(unit.Units, 1)
		}
		if _, err := s.inventory.IssueForRequest(ctx, unitID, requestID, actor); err != nil {
			return err
		}
		r, err = s.store.Execute(ctx, requestID,
			func(r *models.Request) error { return r.CanAssign(unit.BloodType, unit.Component) },
			func(r *models.Request) { r.Assign(unitID, unit.BloodType, unit.Component, units, actor, now) },
		)
		return err
	})
	if err != nil {
		return nil, wrapRequestErr(err, "Failed to assign units")
	}

	s.metrics.IncrementRequestStatus(string(r.Status))
	s.record(ctx, activity.NewEntry(actor, activity.ActionUpdateRequest,
		fmt.Sprintf("Assigned unit %s to request %s", unit.SerialNumber, r.DisplayID),
		activity.EntityRequest, r.ID.String()).
		WithMetadata("unitId", unitID.String()).
		WithMetadata("status", string(r.Status)))
	s.logger.InfoContext(ctx, "unit assigned to request",
		"request_id", requestcontext.RequestID(ctx),
		"blood_request_id", r.ID.String(),
		"unit_id", unitID.String(),
		"status", r.Status,
	)
	return r, nil
}

// Cancel closes the request and puts every unit it still holds back on the
// shelf.
func (s *Service) Cancel(ctx context.Context, requestID id.RequestID, req *models.CancelRequest) (_ *models.Request, err error) {
	ctx, span := tracer.Start(ctx, "Request.Service.Cancel",
		trace.WithAttributes(attribute.String("request_id", requestID.String())))
	defer func() { endSpan(span, err) }()

	req.Normalize()
	now := requestcontext.Now(ctx)
	var (
		r        *models.Request
		returned []id.UnitID
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		r, returned, err = s.cancelInTx(ctx, requestID, req.Reason, now)
		return err
	})
	if err != nil {
		return nil, wrapRequestErr(err, "Failed to cancel request")
	}

	s.metrics.IncrementRequestStatus(string(models.StatusCancelled))
	s.record(ctx, activity.NewEntry(requestcontext.UserID(ctx), activity.ActionUpdateStatus,
		"Cancelled request "+r.DisplayID, activity.EntityRequest, r.ID.String()).
		WithMetadata("reason", req.Reason).
		WithMetadata("returnedUnits", len(returned)))
	return r, nil
}

// cancelInTx returns held units to inventory and cancels the request. Units
// no longer issued to this request are left alone.
func (s *Service) cancelInTx(ctx context.Context, requestID id.RequestID, reason string, now time.Time) (*models.Request, []id.UnitID, error) {
	current, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if err := current.CanCancel(); err != nil {
		return nil, nil, err
	}
	var held []id.UnitID
	for _, unitID := range current.OutstandingUnits() {
		u, err := s.inventory.Get(ctx, unitID)
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if u.Status == invmodels.StatusIssued && u.IssuedTo != nil && *u.IssuedTo == requestID {
			held = append(held, unitID)
		}
	}
	for _, unitID := range held {
		if _, err := s.inventory.ReturnForRequest(ctx, unitID, models.CancelReturnReason); err != nil {
			return nil, nil, err
		}
	}
	r, err := s.store.Execute(ctx, requestID,
		func(r *models.Request) error { return r.CanCancel() },
		func(r *models.Request) { r.Cancel(reason, held, now) },
	)
	if err != nil {
		return nil, nil, err
	}
	return r, held, nil
}

func (s *Service) Delete(ctx context.Context, requestID id.RequestID) error {
	r, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		return wrapRequestErr(err, "Failed to delete request")
	}
	if err := s.store.Delete(ctx, requestID); err != nil {
		return wrapRequestErr(err, "Failed to delete request")
	}
	s.record(ctx, activity.NewEntry(requestcontext.UserID(ctx), activity.ActionDeleteRequest,
		"Deleted request "+r.DisplayID, activity.EntityRequest, r.ID.String()))
	s.logger.InfoContext(ctx, "blood request deleted",
		"request_id", requestcontext.RequestID(ctx),
		"blood_request_id", r.ID.String(),
	)
	return nil
}
