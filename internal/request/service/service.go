package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	activity "lifeflow/internal/activity/models"
	invmodels "lifeflow/internal/inventory/models"
	"lifeflow/internal/platform/metrics"
	"lifeflow/internal/platform/sequence"
	"lifeflow/internal/request/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/platform/tx"
)

var tracer = otel.Tracer("request")

// Store persists blood requests.
type Store interface {
	Create(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Request, int, error)
	ListUrgent(ctx context.Context, now time.Time) ([]*models.Request, error)
	Execute(ctx context.Context, requestID id.RequestID, validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error)
	Delete(ctx context.Context, requestID id.RequestID) error
}

// Inventory is the unit side of assignment and cancellation. Calls run
// inside the request's unit of work and record no activity of their own.
type Inventory interface {
	Get(ctx context.Context, unitID id.UnitID) (*invmodels.Unit, error)
	IssueForRequest(ctx context.Context, unitID id.UnitID, requestID id.RequestID, issuedBy id.UserID) (*invmodels.Unit, error)
	ReturnForRequest(ctx context.Context, unitID id.UnitID, reason string) (*invmodels.Unit, error)
}

// ActivityRecorder appends entries to the activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, entry activity.Entry)
}

const defaultListLimit = 10

// Service manages blood requests and their fulfilment.
type Service struct {
	store     Store
	inventory Inventory
	tx        tx.Runner
	seq       sequence.Generator
	activity  ActivityRecorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
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

func New(store Store, inventory Inventory, runner tx.Runner, seq sequence.Generator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		inventory: inventory,
		tx:        runner,
		seq:       seq,
		logger:    slog.Default(),
	}
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

var errRequestNotFound = dErrors.New(dErrors.CodeNotFound, "Request not found")

// wrapRequestErr keeps domain errors and maps store facts for single-request
// operations.
func wrapRequestErr(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return errRequestNotFound
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "Request already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func invariantToValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}
