package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	activity "lifeflow/internal/activity/models"
	"lifeflow/internal/inventory/models"
	"lifeflow/internal/platform/metrics"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/requestcontext"
)

var tracer = otel.Tracer("inventory")

// Store persists blood units.
type Store interface {
	CreateMany(ctx context.Context, units []*models.Unit) error
	FindByID(ctx context.Context, unitID id.UnitID) (*models.Unit, error)
	ListAvailable(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Unit, int, error)
	ListExpiring(ctx context.Context, before time.Time) ([]*models.Unit, error)
	SummarizeAvailable(ctx context.Context) ([]models.ComponentCount, error)
	Execute(ctx context.Context, unitID id.UnitID, validate func(*models.Unit) error, mutate func(*models.Unit)) (*models.Unit, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// ActivityRecorder appends entries to the activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, entry activity.Entry)
}

const (
	defaultListLimit    = 10
	defaultExpiringDays = 7
)

// Service manages blood unit intake and the unit status machine.
type Service struct {
	store    Store
	activity ActivityRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithActivityRecorder(r ActivityRecorder) Option {
	return func(s *Service) {
		s.activity = r
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) record(ctx context.Context, entry activity.Entry) {
	if s.activity != nil {
		s.activity.Record(ctx, entry)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// wrapUnitErr translates store errors for single-unit operations.
func wrapUnitErr(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "Blood unit not found")
	case dErrors.HasCode(err, dErrors.CodeValidation):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action+" blood unit")
	}
}

// AddUnits materializes one record per physical unit, each with its own
// serial number.
func (s *Service) AddUnits(ctx context.Context, req *models.AddUnitsRequest) (_ []*models.Unit, err error) {
	ctx, span := tracer.Start(ctx, "Inventory.Service.AddUnits")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var donorID *id.DonorID
	if req.DonorID != "" {
		parsed, _ := id.ParseDonorID(req.DonorID)
		donorID = &parsed
	}

	units := make([]*models.Unit, 0, req.Units)
	for range req.Units {
		u, err := models.NewUnit(
			id.BloodType(req.BloodType),
			models.Component(req.Component),
			models.Location(req.Location),
			req.DonationDate.Time,
			req.ExpiryDate.Time,
			now,
		)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
			}
			return nil, err
		}
		u.DonorID = donorID
		u.DonationID = req.DonationID
		u.Notes = req.Notes
		units = append(units, u)
	}
	span.SetAttributes(attribute.String("blood_type", req.BloodType), attribute.Int("units", len(units)))

	if err := s.store.CreateMany(ctx, units); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "Serial number collision, please retry")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add blood units")
	}

	first := units[0]
	s.metrics.AddUnits(string(first.BloodType), string(first.Component), len(units))
	s.record(ctx, activity.NewEntry(id.UserID{}, activity.ActionCreateInventory,
		fmt.Sprintf("Added %d unit(s) of %s %s", len(units), first.BloodType, first.Component),
		activity.EntityInventory, first.ID.String()).
		WithMetadata("bloodType", string(first.BloodType)).
		WithMetadata("units", len(units)))
	s.logger.InfoContext(ctx, "blood units added",
		"request_id", requestcontext.RequestID(ctx),
		"blood_type", first.BloodType,
		"count", len(units),
	)
	return units, nil
}

func (s *Service) Get(ctx context.Context, unitID id.UnitID) (*models.Unit, error) {
	u, err := s.store.FindByID(ctx, unitID)
	if err != nil {
		return nil, wrapUnitErr(err, "load")
	}
	return u, nil
}

// ListAvailable pages through available units, soonest expiry first.
func (s *Service) ListAvailable(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Unit, id.Pagination, error) {
	page = page.Normalize(defaultListLimit)
	if filter.BloodType != "" && !filter.BloodType.IsValid() {
		return nil, id.Pagination{}, dErrors.New(dErrors.CodeValidation, "Please provide a valid blood type")
	}
	units, total, err := s.store.ListAvailable(ctx, filter, page)
	if err != nil {
		return nil, id.Pagination{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list blood units")
	}
	return units, id.NewPagination(page, total), nil
}

func (s *Service) Summary(ctx context.Context) ([]models.TypeSummary, error) {
	counts, err := s.store.SummarizeAvailable(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize inventory")
	}
	return models.BuildSummary(counts), nil
}

// ExpiringSoon lists available units expiring within days (default 7).
func (s *Service) ExpiringSoon(ctx context.Context, days int) ([]*models.Unit, error) {
	if days <= 0 {
		days = defaultExpiringDays
	}
	cutoff := requestcontext.Now(ctx).AddDate(0, 0, days)
	units, err := s.store.ListExpiring(ctx, cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expiring units")
	}
	return units, nil
}

func (s *Service) transition(ctx context.Context, name string, unitID id.UnitID, validate func(*models.Unit) error, mutate func(*models.Unit)) (_ *models.Unit, err error) {
	ctx, span := tracer.Start(ctx, "Inventory.Service."+name,
		trace.WithAttributes(attribute.String("unit_id", unitID.String())))
	defer func() { endSpan(span, err) }()

	u, err := s.store.Execute(ctx, unitID, validate, mutate)
	if err != nil {
		return nil, wrapUnitErr(err, "update")
	}
	s.metrics.IncrementUnitTransition(string(u.Status))
	return u, nil
}

func (s *Service) recordUpdate(ctx context.Context, u *models.Unit, description string) {
	s.record(ctx, activity.NewEntry(id.UserID{}, activity.ActionUpdateInventory, description,
		activity.EntityInventory, u.ID.String()).
		WithMetadata("serialNumber", u.SerialNumber).
		WithMetadata("status", string(u.Status)))
}

func (s *Service) Reserve(ctx context.Context, unitID id.UnitID, requestID id.RequestID) (*models.Unit, error) {
	now := requestcontext.Now(ctx)
	u, err := s.transition(ctx, "Reserve", unitID,
		func(u *models.Unit) error { return u.CanReserve() },
		func(u *models.Unit) { u.ApplyReserve(requestID, now) },
	)
	if err != nil {
		return nil, err
	}
	s.recordUpdate(ctx, u, "Reserved unit "+u.SerialNumber)
	return u, nil
}

func (s *Service) Issue(ctx context.Context, unitID id.UnitID, requestID id.RequestID) (*models.Unit, error) {
	u, err := s.IssueForRequest(ctx, unitID, requestID, requestcontext.UserID(ctx))
	if err != nil {
		return nil, err
	}
	s.recordUpdate(ctx, u, "Issued unit "+u.SerialNumber)
	return u, nil
}

// IssueForRequest issues a unit without recording activity, for callers
// that run it inside their own unit of work and record afterwards.
func (s *Service) IssueForRequest(ctx context.Context, unitID id.UnitID, requestID id.RequestID, issuedBy id.UserID) (*models.Unit, error) {
	now := requestcontext.Now(ctx)
	return s.transition(ctx, "Issue", unitID,
		func(u *models.Unit) error { return u.CanIssue() },
		func(u *models.Unit) { u.ApplyIssue(requestID, issuedBy, now) },
	)
}

func (s *Service) Return(ctx context.Context, unitID id.UnitID, reason string) (*models.Unit, error) {
	u, err := s.ReturnForRequest(ctx, unitID, reason)
	if err != nil {
		return nil, err
	}
	s.recordUpdate(ctx, u, "Returned unit "+u.SerialNumber)
	return u, nil
}

// ReturnForRequest is Return without the activity entry.
func (s *Service) ReturnForRequest(ctx context.Context, unitID id.UnitID, reason string) (*models.Unit, error) {
	now := requestcontext.Now(ctx)
	return s.transition(ctx, "Return", unitID,
		func(u *models.Unit) error { return u.CanReturn() },
		func(u *models.Unit) { u.ApplyReturn(reason, now) },
	)
}

// Discard is permitted from every status.
func (s *Service) Discard(ctx context.Context, unitID id.UnitID, reason string) (*models.Unit, error) {
	now := requestcontext.Now(ctx)
	u, err := s.transition(ctx, "Discard", unitID,
		func(*models.Unit) error { return nil },
		func(u *models.Unit) { u.ApplyDiscard(reason, now) },
	)
	if err != nil {
		return nil, err
	}
	s.recordUpdate(ctx, u, "Discarded unit "+u.SerialNumber+": "+reason)
	return u, nil
}

// ExpireOverdue marks shelf units past their expiration as expired.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	n, err := s.store.ExpireOverdue(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire blood units")
	}
	if n > 0 {
		s.metrics.AddUnitTransitions(string(models.StatusExpired), n)
		s.record(ctx, activity.NewEntry(id.UserID{}, activity.ActionUpdateInventory,
			fmt.Sprintf("Marked %d unit(s) as expired", n), activity.EntityInventory, "").
			WithMetadata("expired", n))
	}
	s.logger.InfoContext(ctx, "expired overdue blood units",
		"request_id", requestcontext.RequestID(ctx),
		"count", n,
	)
	return n, nil
}
