package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,ActivityRecorder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	activity "lifeflow/internal/activity/models"
	"lifeflow/internal/inventory/models"
	"lifeflow/internal/inventory/service/mocks"
	"lifeflow/internal/inventory/store"
	"lifeflow/internal/platform/metrics"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockStore    *mocks.MockStore
	mockActivity *mocks.MockActivityRecorder
	metrics      *metrics.Metrics
	service      *Service
	ctx          context.Context
	now          time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockActivity = mocks.NewMockActivityRecorder(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.mockStore,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithActivityRecorder(s.mockActivity),
	)
	s.now = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) availableUnit() *models.Unit {
	u, err := models.NewUnit(id.OPositive, models.ComponentWholeBlood, "", s.now.AddDate(0, 0, -2), time.Time{}, s.now)
	s.Require().NoError(err)
	return u
}

// expectExecute runs the service's validate and mutate callbacks against u,
// mirroring a store's Execute.
func (s *ServiceSuite) expectExecute(u *models.Unit) {
	s.mockStore.EXPECT().Execute(gomock.Any(), u.ID, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ id.UnitID, validate func(*models.Unit) error, mutate func(*models.Unit)) (*models.Unit, error) {
			if err := validate(u); err != nil {
				return nil, err
			}
			mutate(u)
			return u, nil
		})
}

func (s *ServiceSuite) TestAddUnits() {
	s.Run("creates one record per unit and records activity", func() {
		var created []*models.Unit
		s.mockStore.EXPECT().CreateMany(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, units []*models.Unit) error {
				created = units
				return nil
			})
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any()).Do(
			func(_ context.Context, e activity.Entry) {
				s.Equal(activity.ActionCreateInventory, e.Action)
				s.Equal(activity.EntityInventory, e.EntityType)
			})

		req := &models.AddUnitsRequest{
			BloodType:    "o+",
			Units:        3,
			DonationDate: id.Date{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			ExpiryDate:   id.Date{Time: time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)},
		}
		units, err := s.service.AddUnits(s.ctx, req)
		s.Require().NoError(err)
		s.Require().Len(units, 3)
		s.Equal(created, units)

		serials := map[string]struct{}{}
		for _, u := range units {
			s.Equal(id.OPositive, u.BloodType)
			s.Equal(models.StatusAvailable, u.Status)
			s.Equal(time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), u.ExpirationDate)
			serials[u.SerialNumber] = struct{}{}
		}
		s.Len(serials, 3)
		s.Equal(float64(3), promtestutil.ToFloat64(s.metrics.UnitsAdded.WithLabelValues("O+", "whole_blood")))
	})

	s.Run("rejects invalid blood type before touching the store", func() {
		_, err := s.service.AddUnits(s.ctx, &models.AddUnitsRequest{
			BloodType:    "Q+",
			Units:        1,
			DonationDate: id.Date{Time: s.now},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("Please provide a valid blood type", dErrors.MessageOf(err))
	})

	s.Run("requires a donation date", func() {
		_, err := s.service.AddUnits(s.ctx, &models.AddUnitsRequest{BloodType: "A+", Units: 1})
		s.Equal("Donation date is required", dErrors.MessageOf(err))
	})

	s.Run("expiry before collection is a validation error", func() {
		_, err := s.service.AddUnits(s.ctx, &models.AddUnitsRequest{
			BloodType:    "A+",
			Units:        1,
			DonationDate: id.Date{Time: s.now},
			ExpiryDate:   id.Date{Time: s.now.AddDate(0, 0, -1)},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure is internal", func() {
		s.mockStore.EXPECT().CreateMany(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
		_, err := s.service.AddUnits(s.ctx, &models.AddUnitsRequest{BloodType: "A+", Units: 1, DonationDate: id.Date{Time: s.now}})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestTransitions() {
	requestID := id.NewRequestID()

	s.Run("reserve from available", func() {
		u := s.availableUnit()
		s.expectExecute(u)
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any())

		got, err := s.service.Reserve(s.ctx, u.ID, requestID)
		s.Require().NoError(err)
		s.Equal(models.StatusReserved, got.Status)
	})

	s.Run("issue stamps the caller as issuer", func() {
		u := s.availableUnit()
		staff := id.NewUserID()
		ctx := requestcontext.WithPrincipal(s.ctx, requestcontext.Principal{UserID: staff, Role: "staff"})
		s.expectExecute(u)
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any())

		got, err := s.service.Issue(ctx, u.ID, requestID)
		s.Require().NoError(err)
		s.Equal(models.StatusIssued, got.Status)
		s.Equal(staff, *got.IssuedBy)
		s.Equal(s.now, *got.IssuedDate)
	})

	s.Run("return from available fails with status in message", func() {
		u := s.availableUnit()
		s.expectExecute(u)

		_, err := s.service.Return(s.ctx, u.ID, "unused")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("Cannot return unit with status available", dErrors.MessageOf(err))
	})

	s.Run("discard from issued appends a note", func() {
		u := s.availableUnit()
		u.ApplyIssue(requestID, id.NewUserID(), s.now)
		s.expectExecute(u)
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any())

		got, err := s.service.Discard(s.ctx, u.ID, "bag leak")
		s.Require().NoError(err)
		s.Equal(models.StatusDiscarded, got.Status)
		s.Contains(got.Notes, "Discarded: bag leak")
	})

	s.Run("missing unit is not found", func() {
		unitID := id.NewUnitID()
		s.mockStore.EXPECT().Execute(gomock.Any(), unitID, gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Reserve(s.ctx, unitID, requestID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("request flows do not record activity", func() {
		u := s.availableUnit()
		s.expectExecute(u)

		got, err := s.service.IssueForRequest(s.ctx, u.ID, requestID, id.NewUserID())
		s.Require().NoError(err)
		s.Equal(models.StatusIssued, got.Status)
	})
}

func (s *ServiceSuite) TestReads() {
	s.Run("list normalizes paging", func() {
		s.mockStore.EXPECT().ListAvailable(gomock.Any(), models.ListFilter{}, id.Page{Page: 1, Limit: 10}).
			Return([]*models.Unit{s.availableUnit()}, 11, nil)

		units, pagination, err := s.service.ListAvailable(s.ctx, models.ListFilter{}, id.Page{})
		s.Require().NoError(err)
		s.Len(units, 1)
		s.Equal(id.Pagination{Page: 1, Limit: 10, Total: 11, Pages: 2}, pagination)
	})

	s.Run("list rejects unknown blood type filter", func() {
		_, _, err := s.service.ListAvailable(s.ctx, models.ListFilter{BloodType: "C+"}, id.Page{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("expiring defaults to seven days", func() {
		s.mockStore.EXPECT().ListExpiring(gomock.Any(), s.now.AddDate(0, 0, 7)).Return([]*models.Unit{}, nil)
		_, err := s.service.ExpiringSoon(s.ctx, 0)
		s.Require().NoError(err)
	})

	s.Run("summary groups by type", func() {
		s.mockStore.EXPECT().SummarizeAvailable(gomock.Any()).Return([]models.ComponentCount{
			{BloodType: id.OPositive, Component: models.ComponentWholeBlood, Units: 4, Count: 4},
		}, nil)
		summary, err := s.service.Summary(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(summary, 1)
		s.Equal(4, summary[0].TotalUnits)
	})

	s.Run("get maps not found", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Get(s.ctx, id.NewUnitID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestExpireOverdue() {
	s.mockStore.EXPECT().ExpireOverdue(gomock.Any(), s.now).Return(2, nil)
	s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any())

	n, err := s.service.ExpireOverdue(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal(float64(2), promtestutil.ToFloat64(s.metrics.UnitTransitions.WithLabelValues("expired")))
}

func TestLifecycleAgainstInMemoryStore(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	svc := New(store.NewInMemoryStore())

	units, err := svc.AddUnits(ctx, &models.AddUnitsRequest{
		BloodType:    "AB-",
		Units:        2,
		DonationDate: id.Date{Time: now.AddDate(0, 0, -1)},
		Component:    "platelets",
	})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, now.AddDate(0, 0, 4), units[0].ExpirationDate)

	requestID := id.NewRequestID()
	_, err = svc.Reserve(ctx, units[0].ID, requestID)
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, units[0].ID, requestID)
	assert.Equal(t, "Cannot reserve unit with status reserved", dErrors.MessageOf(err))

	_, err = svc.Issue(ctx, units[0].ID, requestID)
	require.NoError(t, err)
	returned, err := svc.Return(ctx, units[0].ID, "patient discharged")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, returned.Status)

	expiring, err := svc.ExpiringSoon(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, expiring, 2)

	n, err := svc.ExpireOverdue(requestcontext.WithTime(ctx, now.AddDate(0, 0, 5)))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary)
}
