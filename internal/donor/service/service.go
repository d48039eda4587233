package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	activity "lifeflow/internal/activity/models"
	authmodels "lifeflow/internal/auth/models"
	"lifeflow/internal/donor/models"
	"lifeflow/internal/platform/metrics"
	"lifeflow/internal/platform/sequence"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/platform/tx"
)

var tracer = otel.Tracer("donor")

// Store persists donors.
type Store interface {
	Create(ctx context.Context, d *models.Donor) error
	FindByID(ctx context.Context, donorID id.DonorID) (*models.Donor, error)
	FindByUser(ctx context.Context, userID id.UserID) (*models.Donor, error)
	List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Donor, int, error)
	Execute(ctx context.Context, donorID id.DonorID, validate func(*models.Donor) error, mutate func(*models.Donor)) (*models.Donor, error)
	Delete(ctx context.Context, donorID id.DonorID) error
	CountGroups(ctx context.Context) ([]models.GroupCount, error)
}

// UserStore is the slice of the identity store the donor flows touch.
type UserStore interface {
	Create(ctx context.Context, user *authmodels.User) error
	FindByID(ctx context.Context, userID id.UserID) (*authmodels.User, error)
	FindByEmail(ctx context.Context, email string) (*authmodels.User, error)
	Execute(ctx context.Context, userID id.UserID, validate func(*authmodels.User) error, mutate func(*authmodels.User)) (*authmodels.User, error)
}

// CampaignLedger appends a donor's donation to a campaign. It runs inside
// the donation unit of work.
type CampaignLedger interface {
	RecordDonorDonation(ctx context.Context, campaignID id.CampaignID, donorID id.DonorID, bloodType id.BloodType, units int, notes string) error
}

// ActivityRecorder appends entries to the activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, entry activity.Entry)
}

const defaultListLimit = 10

// Service manages donors and their linked identities.
type Service struct {
	store     Store
	users     UserStore
	tx        tx.Runner
	seq       sequence.Generator
	campaigns CampaignLedger
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

func WithCampaignLedger(c CampaignLedger) Option {
	return func(s *Service) {
		s.campaigns = c
	}
}

func New(store Store, users UserStore, runner tx.Runner, seq sequence.Generator, opts ...Option) *Service {
	s := &Service{
		store:  store,
		users:  users,
		tx:     runner,
		seq:    seq,
		logger: slog.Default(),
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

var errDonorNotFound = dErrors.New(dErrors.CodeNotFound, "Donor not found")

// wrapDonorErr keeps domain errors and maps store facts for single-donor
// operations.
func wrapDonorErr(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return errDonorNotFound
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "Donor already exists")
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

// newDonor builds the donor for user under displayID.
func newDonor(user *authmodels.User, displayID string, bloodType id.BloodType, now time.Time) (*models.Donor, error) {
	d, err := models.NewDonor(user.ID, displayID, bloodType, now)
	if err != nil {
		return nil, invariantToValidation(err)
	}
	d.ApplyIdentity(user.FirstName, user.LastName, user.Email)
	d.ContactInfo.Email = user.Email
	d.ContactInfo.Phone = user.Phone
	return d, nil
}

// identityEligibility maps donor standing onto the identity snapshot, which
// has no permanent state.
func identityEligibility(status models.EligibilityStatus) authmodels.Eligibility {
	switch status {
	case models.EligibilityEligible:
		return authmodels.EligibilityEligible
	case models.EligibilityDeferred:
		return authmodels.EligibilityDeferred
	default:
		return authmodels.EligibilityIneligible
	}
}
