package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	activity "lifeflow/internal/activity/models"
	"lifeflow/internal/dashboard/models"
	donormodels "lifeflow/internal/donor/models"
	invmodels "lifeflow/internal/inventory/models"
	"lifeflow/internal/platform/metrics"
	reqmodels "lifeflow/internal/request/models"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/requestcontext"
)

var tracer = otel.Tracer("dashboard")

type DonorSource interface {
	CountByEligibility(ctx context.Context, status donormodels.EligibilityStatus) (int, error)
	MonthlyDonations(ctx context.Context, since time.Time) ([]donormodels.MonthlyDonations, error)
	TotalDonations(ctx context.Context) (int, error)
}

type InventorySource interface {
	SummarizeAvailable(ctx context.Context) ([]invmodels.ComponentCount, error)
	Recent(ctx context.Context, limit int) ([]*invmodels.Unit, error)
	CountByStatus(ctx context.Context, status invmodels.Status) (int, error)
}

type RequestSource interface {
	Recent(ctx context.Context, limit int) ([]*reqmodels.Request, error)
	CountByStatus(ctx context.Context, statuses ...reqmodels.Status) (int, error)
}

type CampaignSource interface {
	CountActive(ctx context.Context, now time.Time) (int, error)
}

// ActivityRecorder appends entries to the activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, entry activity.Entry)
}

const (
	recentUnits     = 5
	recentRequests  = 3
	maxFeedItems    = 10
	defaultMonths   = 6
	aggregateBudget = 5 * time.Second
)

// Service re-aggregates the dashboard from the source stores on every call.
type Service struct {
	donors       DonorSource
	inventory    InventorySource
	requests     RequestSource
	campaigns    CampaignSource
	activity     ActivityRecorder
	logger       *slog.Logger
	metrics      *metrics.Metrics
	demoFallback bool
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

// WithDemoFallback serves the demonstration dataset instead of failing when
// a source store errors.
func WithDemoFallback(enabled bool) Option {
	return func(s *Service) {
		s.demoFallback = enabled
	}
}

func New(donors DonorSource, inventory InventorySource, requests RequestSource, campaigns CampaignSource, opts ...Option) *Service {
	s := &Service{
		donors:    donors,
		inventory: inventory,
		requests:  requests,
		campaigns: campaigns,
		logger:    slog.Default(),
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

// Stats queries the four sources in parallel. A failing source either
// degrades the response to the demonstration dataset or surfaces as
// unavailable.
func (s *Service) Stats(ctx context.Context) (_ *models.Stats, err error) {
	ctx, span := tracer.Start(ctx, "Dashboard.Service.Stats")
	defer func() { endSpan(span, err) }()
	defer s.metrics.ObserveDashboard(time.Now())

	stats, err := s.aggregate(ctx)
	if err != nil {
		if !s.demoFallback {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "Failed to fetch dashboard statistics")
		}
		s.logger.WarnContext(ctx, "dashboard source unavailable, serving demonstration data",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		s.metrics.IncrementDegraded("dashboard_stats")
		demo := models.DemoStats()
		stats = &demo
		err = nil
	}

	if s.activity != nil {
		s.activity.Record(ctx, activity.NewEntry(requestcontext.UserID(ctx), activity.ActionViewDashboard,
			"Viewed dashboard", activity.EntitySystem, ""))
	}
	return stats, nil
}

func (s *Service) aggregate(ctx context.Context) (*models.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, aggregateBudget)
	defer cancel()
	now := requestcontext.Now(ctx)

	g, ctx := errgroup.WithContext(ctx)
	stats := &models.Stats{}

	g.Go(func() error {
		rows, err := s.inventory.SummarizeAvailable(ctx)
		if err != nil {
			return fmt.Errorf("inventory summary: %w", err)
		}
		stats.BloodTypeBreakdown, stats.TotalBloodUnits = models.ByBloodType(rows)
		return nil
	})
	g.Go(func() error {
		n, err := s.donors.CountByEligibility(ctx, donormodels.EligibilityEligible)
		if err != nil {
			return fmt.Errorf("count eligible donors: %w", err)
		}
		stats.ActiveDonors = n
		return nil
	})
	g.Go(func() error {
		n, err := s.requests.CountByStatus(ctx, reqmodels.ActiveStatuses()...)
		if err != nil {
			return fmt.Errorf("count open requests: %w", err)
		}
		stats.PendingRequests = n
		return nil
	})
	g.Go(func() error {
		n, err := s.campaigns.CountActive(ctx, now)
		if err != nil {
			return fmt.Errorf("count active campaigns: %w", err)
		}
		stats.ActiveCampaigns = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// RecentActivity merges the newest inventory additions with the newest
// requests, newest first.
func (s *Service) RecentActivity(ctx context.Context) (*models.RecentActivity, error) {
	units, err := s.inventory.Recent(ctx, recentUnits)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch recent activity")
	}
	requests, err := s.requests.Recent(ctx, recentRequests)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch recent activity")
	}

	items := make([]models.ActivityItem, 0, len(units)+len(requests))
	for _, u := range units {
		items = append(items, models.ActivityItem{
			Type:    models.ActivityDonation,
			Message: fmt.Sprintf("New %s blood donation received", u.BloodType),
			Time:    u.CreatedAt,
			Icon:    "tint",
			Color:   "success",
		})
	}
	for _, r := range requests {
		items = append(items, models.ActivityItem{
			Type:    models.ActivityRequest,
			Message: fmt.Sprintf("Blood request from %s", r.Requester.Name()),
			Time:    r.CreatedAt,
			Icon:    "hand-holding-heart",
			Color:   "warning",
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Time.After(items[j].Time)
	})
	if len(items) > maxFeedItems {
		items = items[:maxFeedItems]
	}
	return &models.RecentActivity{Activities: items}, nil
}

// BloodDistribution reports available units per blood type, largest first.
func (s *Service) BloodDistribution(ctx context.Context) (*models.Distribution, error) {
	rows, err := s.inventory.SummarizeAvailable(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch blood distribution")
	}
	dist, _ := models.ByBloodType(rows)
	return &models.Distribution{Distribution: dist}, nil
}

// DonationTrends buckets donor history by month over the trailing window.
func (s *Service) DonationTrends(ctx context.Context, months int) (*models.Trends, error) {
	if months < 1 {
		months = defaultMonths
	}
	since := requestcontext.Now(ctx).AddDate(0, -months, 0)
	rows, err := s.donors.MonthlyDonations(ctx, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch donation trends")
	}
	points := make([]models.TrendPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, models.TrendPoint{Year: r.Year, Month: r.Month, Donations: r.Donations, Units: r.Units})
	}
	return &models.Trends{Months: months, Trends: points}, nil
}

// Reports collects the headline totals for the reports page.
func (s *Service) Reports(ctx context.Context) (_ *models.Report, err error) {
	ctx, span := tracer.Start(ctx, "Dashboard.Service.Reports")
	defer func() { endSpan(span, err) }()

	report := &models.Report{GeneratedAt: requestcontext.Now(ctx)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		report.TotalDonations, err = s.donors.TotalDonations(gctx)
		return err
	})
	g.Go(func() (err error) {
		report.TotalRequests, err = s.requests.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		report.FulfilledRequests, err = s.requests.CountByStatus(gctx, reqmodels.StatusFulfilled)
		return err
	})
	g.Go(func() (err error) {
		report.ExpiredUnits, err = s.inventory.CountByStatus(gctx, invmodels.StatusExpired)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Failed to fetch reports")
	}
	return report, nil
}
