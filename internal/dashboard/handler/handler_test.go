package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"lifeflow/internal/dashboard/handler/mocks"
	"lifeflow/internal/dashboard/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/testutil"
)

type DashboardHandlerSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	mockService *mocks.MockService
	router      chi.Router
}

func TestDashboardHandlerSuite(t *testing.T) {
	suite.Run(t, new(DashboardHandlerSuite))
}

func (s *DashboardHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.mockService, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *DashboardHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DashboardHandlerSuite) get(path string) *http.Response {
	rr := testutil.DoRequest(s.router, testutil.WithPrincipal(
		testutil.NewRequest(s.T(), http.MethodGet, path), id.NewUserID(), "staff"))
	return rr.Result()
}

func (s *DashboardHandlerSuite) TestStats() {
	s.Run("live data carries no degraded header", func() {
		s.mockService.EXPECT().Stats(gomock.Any()).Return(&models.Stats{TotalBloodUnits: 4}, nil)
		resp := s.get("/dashboard/stats")
		defer resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Empty(resp.Header.Get(DegradedHeader))
	})

	s.Run("demonstration data is flagged", func() {
		demo := models.DemoStats()
		s.mockService.EXPECT().Stats(gomock.Any()).Return(&demo, nil)
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(
			testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/stats"), id.NewUserID(), "staff"))
		s.Equal(http.StatusOK, rr.Code)
		s.Equal("true", rr.Header().Get(DegradedHeader))
		body := testutil.UnmarshalResponse[models.Stats](s.T(), rr)
		s.True(body.Degraded)
		s.Equal(1245, body.TotalBloodUnits)
	})

	s.Run("unavailable sources are 503", func() {
		s.mockService.EXPECT().Stats(gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "Failed to fetch dashboard statistics"))
		resp := s.get("/dashboard/stats")
		defer resp.Body.Close()
		s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func (s *DashboardHandlerSuite) TestFeeds() {
	s.mockService.EXPECT().RecentActivity(gomock.Any()).Return(&models.RecentActivity{
		Activities: []models.ActivityItem{{Type: models.ActivityDonation, Message: "New O+ blood donation received", Time: time.Now()}},
	}, nil)
	rr := testutil.DoRequest(s.router, testutil.WithPrincipal(
		testutil.NewRequest(s.T(), http.MethodGet, "/dashboard/activity"), id.NewUserID(), "staff"))
	s.Equal(http.StatusOK, rr.Code)
	feed := testutil.UnmarshalResponse[models.RecentActivity](s.T(), rr)
	s.Require().Len(feed.Activities, 1)
	s.Equal(models.ActivityDonation, feed.Activities[0].Type)

	s.mockService.EXPECT().BloodDistribution(gomock.Any()).Return(&models.Distribution{}, nil)
	resp := s.get("/dashboard/blood-distribution")
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *DashboardHandlerSuite) TestTrendsPassesMonths() {
	s.mockService.EXPECT().DonationTrends(gomock.Any(), 12).Return(&models.Trends{Months: 12}, nil)
	resp := s.get("/dashboard/donation-trends?months=12")
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	s.mockService.EXPECT().DonationTrends(gomock.Any(), 0).Return(&models.Trends{Months: 6}, nil)
	resp = s.get("/dashboard/donation-trends?months=abc")
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *DashboardHandlerSuite) TestReports() {
	s.mockService.EXPECT().Reports(gomock.Any()).Return(&models.Report{TotalDonations: 7, FulfilledRequests: 2}, nil)
	rr := testutil.DoRequest(s.router, testutil.WithPrincipal(
		testutil.NewRequest(s.T(), http.MethodGet, "/reports"), id.NewUserID(), "staff"))
	s.Equal(http.StatusOK, rr.Code)
	body := testutil.UnmarshalResponse[models.ReportResponse](s.T(), rr)
	s.Equal(7, body.Reports.TotalDonations)
	s.Equal(2, body.Reports.FulfilledRequests)
}
