package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CampaignSource,ActivityRecorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	activity "lifeflow/internal/activity/models"
	campaignmodels "lifeflow/internal/campaign/models"
	campaignstore "lifeflow/internal/campaign/store"
	"lifeflow/internal/dashboard/models"
	"lifeflow/internal/dashboard/service/mocks"
	donormodels "lifeflow/internal/donor/models"
	donorstore "lifeflow/internal/donor/store"
	invmodels "lifeflow/internal/inventory/models"
	invstore "lifeflow/internal/inventory/store"
	"lifeflow/internal/platform/metrics"
	reqmodels "lifeflow/internal/request/models"
	reqstore "lifeflow/internal/request/store"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/requestcontext"
)

type DashboardSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	recorder  *mocks.MockActivityRecorder
	donors    *donorstore.InMemoryStore
	inventory *invstore.InMemoryStore
	requests  *reqstore.InMemoryStore
	campaigns *campaignstore.InMemoryStore
	metrics   *metrics.Metrics
	ctx       context.Context
	now       time.Time
	user      id.UserID
}

func TestDashboardSuite(t *testing.T) {
	suite.Run(t, new(DashboardSuite))
}

func (s *DashboardSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.recorder = mocks.NewMockActivityRecorder(s.ctrl)
	s.donors = donorstore.NewInMemoryStore()
	s.inventory = invstore.NewInMemoryStore()
	s.requests = reqstore.NewInMemoryStore()
	s.campaigns = campaignstore.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s.user = id.NewUserID()
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithPrincipal(s.ctx, requestcontext.Principal{UserID: s.user, Role: "staff"})
}

func (s *DashboardSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DashboardSuite) service(campaigns CampaignSource, opts ...Option) *Service {
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithActivityRecorder(s.recorder),
	}, opts...)
	return New(s.donors, s.inventory, s.requests, campaigns, opts...)
}

func (s *DashboardSuite) addUnits(bt id.BloodType, n int, at time.Time) {
	units := make([]*invmodels.Unit, 0, n)
	for range n {
		u, err := invmodels.NewUnit(bt, "", "", at, time.Time{}, at)
		s.Require().NoError(err)
		units = append(units, u)
	}
	s.Require().NoError(s.inventory.CreateMany(s.ctx, units))
}

func (s *DashboardSuite) addDonor(seq int, bt id.BloodType, donations ...time.Time) *donormodels.Donor {
	d, err := donormodels.NewDonor(id.NewUserID(), id.FormatDisplayID("", s.now, int64(seq)), bt, s.now)
	s.Require().NoError(err)
	for _, at := range donations {
		d.AddDonation(donormodels.Donation{Date: at, Units: 1, Location: "Main"}, s.now)
	}
	s.Require().NoError(s.donors.Create(s.ctx, d))
	return d
}

func (s *DashboardSuite) addRequest(seq int, name string, at time.Time) *reqmodels.Request {
	requester, err := reqmodels.NewPatientRequester(reqmodels.Patient{Name: name}, nil)
	s.Require().NoError(err)
	r, err := reqmodels.NewRequest(s.user, id.FormatDisplayID(id.RequestPrefix, at, int64(seq)), requester,
		[]reqmodels.LineItem{{BloodType: id.OPositive, Component: invmodels.ComponentWholeBlood, Units: 1}},
		reqmodels.PriorityMedium, time.Time{}, at)
	s.Require().NoError(err)
	s.Require().NoError(s.requests.Create(s.ctx, r))
	return r
}

func (s *DashboardSuite) addCampaign(seq int, status campaignmodels.Status) {
	c, err := campaignmodels.NewCampaign(s.user, id.FormatDisplayID(id.CampaignPrefix, s.now, int64(seq)), campaignmodels.Draft{
		Title:        "Drive",
		Description:  "Drive",
		Status:       status,
		Location:     campaignmodels.Location{Name: "Hall"},
		StartDate:    s.now.AddDate(0, 0, -1),
		EndDate:      s.now.AddDate(0, 0, 2),
		TargetDonors: 10,
	}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.campaigns.Create(s.ctx, c))
}

func (s *DashboardSuite) expectView() {
	s.recorder.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e activity.Entry) {
		s.Equal(activity.ActionViewDashboard, e.Action)
		s.Equal(s.user, e.UserID)
	})
}

func (s *DashboardSuite) TestStats() {
	s.addUnits(id.OPositive, 3, s.now)
	s.addUnits(id.ANegative, 1, s.now)
	s.addDonor(1, id.OPositive)
	s.addDonor(2, id.APositive, s.now.AddDate(0, 0, -3))
	s.addRequest(1, "Jane Roe", s.now)
	s.addCampaign(1, campaignmodels.StatusActive)
	s.addCampaign(2, campaignmodels.StatusPlanning)
	s.expectView()

	stats, err := s.service(s.campaigns).Stats(s.ctx)
	s.Require().NoError(err)
	s.False(stats.Degraded)
	s.Equal(4, stats.TotalBloodUnits)
	s.Equal(1, stats.ActiveDonors)
	s.Equal(1, stats.PendingRequests)
	s.Equal(1, stats.ActiveCampaigns)
	s.Equal([]models.BloodTypeUnits{
		{BloodType: id.OPositive, Units: 3},
		{BloodType: id.ANegative, Units: 1},
	}, stats.BloodTypeBreakdown)
}

func (s *DashboardSuite) TestStatsWhenASourceFails() {
	failing := mocks.NewMockCampaignSource(s.ctrl)
	failing.EXPECT().CountActive(gomock.Any(), s.now).Return(0, errors.New("connection refused")).AnyTimes()

	s.Run("fallback serves the demonstration dataset", func() {
		s.expectView()
		stats, err := s.service(failing, WithDemoFallback(true)).Stats(s.ctx)
		s.Require().NoError(err)
		s.True(stats.Degraded)
		s.Equal(1245, stats.TotalBloodUnits)
		s.Equal(586, stats.ActiveDonors)
		s.Len(stats.BloodTypeBreakdown, 8)
		s.Equal(float64(1), promtestutil.ToFloat64(s.metrics.DegradedResponses.WithLabelValues("dashboard_stats")))
	})

	s.Run("without fallback the failure is unavailable", func() {
		_, err := s.service(failing).Stats(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *DashboardSuite) TestRecentActivity() {
	base := s.now.Add(-10 * time.Hour)
	for i := range 6 {
		s.addUnits(id.BPositive, 1, base.Add(time.Duration(i)*time.Hour))
	}
	s.addRequest(1, "Old Patient", base.Add(-time.Hour))
	newest := s.addRequest(2, "Jane Roe", s.now)

	feed, err := s.service(s.campaigns).RecentActivity(s.ctx)
	s.Require().NoError(err)
	s.Len(feed.Activities, 7)
	s.Equal(models.ActivityRequest, feed.Activities[0].Type)
	s.Equal("Blood request from Jane Roe", feed.Activities[0].Message)
	s.Equal(newest.CreatedAt, feed.Activities[0].Time)
	s.Equal("New B+ blood donation received", feed.Activities[1].Message)
	s.Equal("Blood request from Old Patient", feed.Activities[6].Message)
	for i := 1; i < len(feed.Activities); i++ {
		s.False(feed.Activities[i].Time.After(feed.Activities[i-1].Time))
	}
}

func (s *DashboardSuite) TestBloodDistribution() {
	s.addUnits(id.ABPositive, 1, s.now)
	s.addUnits(id.ONegative, 2, s.now)

	dist, err := s.service(s.campaigns).BloodDistribution(s.ctx)
	s.Require().NoError(err)
	s.Equal([]models.BloodTypeUnits{
		{BloodType: id.ONegative, Units: 2},
		{BloodType: id.ABPositive, Units: 1},
	}, dist.Distribution)
}

func (s *DashboardSuite) TestDonationTrends() {
	s.addDonor(1, id.OPositive,
		time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	s.addDonor(2, id.ANegative, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))

	s.Run("defaults to six months", func() {
		trends, err := s.service(s.campaigns).DonationTrends(s.ctx, 0)
		s.Require().NoError(err)
		s.Equal(6, trends.Months)
		s.Equal([]models.TrendPoint{
			{Year: 2024, Month: 1, Donations: 2, Units: 2},
			{Year: 2024, Month: 3, Donations: 1, Units: 1},
		}, trends.Trends)
	})

	s.Run("wider window", func() {
		trends, err := s.service(s.campaigns).DonationTrends(s.ctx, 12)
		s.Require().NoError(err)
		s.Len(trends.Trends, 3)
		s.Equal(2023, trends.Trends[0].Year)
	})
}

func (s *DashboardSuite) TestReports() {
	s.addDonor(1, id.OPositive, s.now.AddDate(0, -1, 0), s.now.AddDate(0, -4, 0))
	s.addRequest(1, "Jane Roe", s.now)
	fulfilled := s.addRequest(2, "John Roe", s.now)
	_, err := s.requests.Execute(s.ctx, fulfilled.ID, func(*reqmodels.Request) error { return nil },
		func(r *reqmodels.Request) { r.Status = reqmodels.StatusFulfilled })
	s.Require().NoError(err)
	s.addUnits(id.OPositive, 2, s.now.AddDate(0, 0, -60))
	expired, err := s.inventory.ExpireOverdue(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(2, expired)

	report, err := s.service(s.campaigns).Reports(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.Report{
		TotalDonations:    2,
		TotalRequests:     2,
		FulfilledRequests: 1,
		ExpiredUnits:      2,
		GeneratedAt:       s.now,
	}, *report)
}
