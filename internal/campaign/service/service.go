package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lifeflow/internal/campaign/models"
	"lifeflow/internal/platform/metrics"
	"lifeflow/internal/platform/sequence"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/requestcontext"
)

var tracer = otel.Tracer("campaign")

// Store persists campaigns.
type Store interface {
	Create(ctx context.Context, c *models.Campaign) error
	FindByID(ctx context.Context, campaignID id.CampaignID) (*models.Campaign, error)
	List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Campaign, int, error)
	ListActive(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	Execute(ctx context.Context, campaignID id.CampaignID, validate func(*models.Campaign) error, mutate func(*models.Campaign) error) (*models.Campaign, error)
	StatsByStatus(ctx context.Context) ([]models.StatusStats, error)
}

const defaultListLimit = 10

// Service manages donation campaigns.
type Service struct {
	store   Store
	seq     sequence.Generator
	logger  *slog.Logger
	metrics *metrics.Metrics
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

func New(store Store, seq sequence.Generator, opts ...Option) *Service {
	s := &Service{
		store:  store,
		seq:    seq,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func wrapCampaignErr(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		if de.Code == dErrors.CodeInvariantViolation {
			return dErrors.New(dErrors.CodeValidation, de.Message)
		}
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "Campaign not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "Campaign already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func noCheck(*models.Campaign) error { return nil }

// Create opens a campaign under the next CAMP display id, organized by the
// caller.
func (s *Service) Create(ctx context.Context, req *models.CreateCampaignRequest) (_ *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "Campaign.Service.Create")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	seq, err := s.seq.Next(ctx, sequence.ScopeCampaign, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to allocate campaign id")
	}
	c, err := models.NewCampaign(requestcontext.UserID(ctx), id.FormatDisplayID(id.CampaignPrefix, now, seq), req.Draft(), now)
	if err != nil {
		return nil, wrapCampaignErr(err, "Failed to create campaign")
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, wrapCampaignErr(err, "Failed to create campaign")
	}

	span.SetAttributes(attribute.String("campaign_id", c.ID.String()))
	s.metrics.IncrementCampaignsCreated()
	s.logger.InfoContext(ctx, "campaign created",
		"request_id", requestcontext.RequestID(ctx),
		"campaign_id", c.ID.String(),
		"display_id", c.DisplayID,
	)
	return c, nil
}

func (s *Service) List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Campaign, id.Pagination, error) {
	page = page.Normalize(defaultListLimit)
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, id.Pagination{}, dErrors.New(dErrors.CodeValidation, "Invalid campaign status")
	}
	campaigns, total, err := s.store.List(ctx, filter, page)
	if err != nil {
		return nil, id.Pagination{}, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch campaigns")
	}
	return campaigns, id.NewPagination(page, total), nil
}

func (s *Service) Get(ctx context.Context, campaignID id.CampaignID) (*models.Campaign, error) {
	c, err := s.store.FindByID(ctx, campaignID)
	if err != nil {
		return nil, wrapCampaignErr(err, "Failed to fetch campaign")
	}
	return c, nil
}

// Active lists campaigns running now, soonest to end first.
func (s *Service) Active(ctx context.Context) ([]*models.Campaign, error) {
	campaigns, err := s.store.ListActive(ctx, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch active campaigns")
	}
	return campaigns, nil
}

// Stats returns one row per status, zero rows included.
func (s *Service) Stats(ctx context.Context) ([]models.StatusStats, error) {
	rows, err := s.store.StatsByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch campaign stats")
	}
	return models.BuildStats(rows), nil
}

func (s *Service) addDonation(ctx context.Context, campaignID id.CampaignID, donorID id.DonorID, bt id.BloodType, units int, notes string) (*models.Campaign, error) {
	now := requestcontext.Now(ctx)
	return s.store.Execute(ctx, campaignID,
		func(c *models.Campaign) error { return c.CanAddDonation() },
		func(c *models.Campaign) error {
			c.AddDonation(donorID, units, bt, notes, now)
			return nil
		})
}

// AddDonation appends a donation taken at the campaign.
func (s *Service) AddDonation(ctx context.Context, campaignID id.CampaignID, req *models.DonationRequest) (_ *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "Campaign.Service.AddDonation",
		trace.WithAttributes(attribute.String("campaign_id", campaignID.String())))
	defer func() { endSpan(span, err) }()

	req.Normalize()
	donorID, err := req.Validate()
	if err != nil {
		return nil, err
	}
	c, err := s.addDonation(ctx, campaignID, donorID, id.BloodType(req.BloodType), req.Units, req.Notes)
	if err != nil {
		return nil, wrapCampaignErr(err, "Failed to record campaign donation")
	}
	s.logger.InfoContext(ctx, "campaign donation recorded",
		"request_id", requestcontext.RequestID(ctx),
		"campaign_id", c.ID.String(),
		"units_collected", c.UnitsCollected,
	)
	return c, nil
}

// RecordDonorDonation is the donor registry's hook for donations that name
// a campaign. It runs inside the caller's unit of work.
func (s *Service) RecordDonorDonation(ctx context.Context, campaignID id.CampaignID, donorID id.DonorID, bloodType id.BloodType, units int, notes string) error {
	if _, err := s.addDonation(ctx, campaignID, donorID, bloodType, units, notes); err != nil {
		return wrapCampaignErr(err, "Failed to record campaign donation")
	}
	return nil
}

func (s *Service) AddFeedback(ctx context.Context, campaignID id.CampaignID, req *models.FeedbackRequest) (*models.Campaign, error) {
	donorID, err := req.Validate()
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	c, err := s.store.Execute(ctx, campaignID, noCheck, func(c *models.Campaign) error {
		return c.AddFeedback(req.Rating, req.Comment, donorID, now)
	})
	if err != nil {
		return nil, wrapCampaignErr(err, "Failed to record feedback")
	}
	return c, nil
}

func (s *Service) UpdateStatus(ctx context.Context, campaignID id.CampaignID, req *models.StatusRequest) (*models.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	status := models.Status(req.Status)
	if status == models.StatusCompleted {
		return s.Complete(ctx, campaignID)
	}
	now := requestcontext.Now(ctx)
	c, err := s.store.Execute(ctx, campaignID, noCheck, func(c *models.Campaign) error {
		c.ApplyStatus(status, now)
		return nil
	})
	if err != nil {
		return nil, wrapCampaignErr(err, "Failed to update campaign status")
	}
	s.logger.InfoContext(ctx, "campaign status changed",
		"request_id", requestcontext.RequestID(ctx),
		"campaign_id", c.ID.String(),
		"status", c.Status,
	)
	return c, nil
}

// Complete closes the campaign and recomputes its results.
func (s *Service) Complete(ctx context.Context, campaignID id.CampaignID) (*models.Campaign, error) {
	now := requestcontext.Now(ctx)
	c, err := s.store.Execute(ctx, campaignID,
		func(c *models.Campaign) error { return c.CanComplete() },
		func(c *models.Campaign) error {
			c.Complete(now)
			return nil
		})
	if err != nil {
		return nil, wrapCampaignErr(err, "Failed to complete campaign")
	}
	s.logger.InfoContext(ctx, "campaign completed",
		"request_id", requestcontext.RequestID(ctx),
		"campaign_id", c.ID.String(),
		"total_donations", c.Results.TotalDonations,
	)
	return c, nil
}
