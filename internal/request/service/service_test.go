package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Inventory,ActivityRecorder

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
	invmodels "lifeflow/internal/inventory/models"
	invservice "lifeflow/internal/inventory/service"
	invstore "lifeflow/internal/inventory/store"
	"lifeflow/internal/platform/metrics"
	"lifeflow/internal/platform/sequence"
	"lifeflow/internal/request/models"
	"lifeflow/internal/request/service/mocks"
	"lifeflow/internal/request/store"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/tx"
	"lifeflow/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockActivity *mocks.MockActivityRecorder
	requests     *store.InMemoryStore
	units        *invstore.InMemoryStore
	metrics      *metrics.Metrics
	service      *Service
	ctx          context.Context
	now          time.Time
	staff        id.UserID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockActivity = mocks.NewMockActivityRecorder(s.ctrl)
	s.requests = store.NewInMemoryStore()
	s.units = invstore.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.requests, invservice.New(s.units), tx.NewLockRunner(), sequence.NewMemory(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithActivityRecorder(s.mockActivity),
	)
	s.now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.staff = id.NewUserID()
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithPrincipal(s.ctx, requestcontext.Principal{UserID: s.staff, Role: "staff"})
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) expectActivity(action activity.Action) {
	s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, e activity.Entry) {
			s.Equal(action, e.Action)
			s.Equal(activity.EntityRequest, e.EntityType)
			s.Equal(s.staff, e.UserID)
		})
}

func (s *ServiceSuite) createRequest() *models.CreateRequestRequest {
	return &models.CreateRequestRequest{
		Patient: &models.Patient{Name: "Jane Roe", Ward: "ICU"},
		BloodRequirements: []models.LineItemInput{
			{BloodType: "o+", Units: 2},
		},
	}
}

func (s *ServiceSuite) create() *models.Request {
	s.expectActivity(activity.ActionCreateRequest)
	r, err := s.service.Create(s.ctx, s.createRequest())
	s.Require().NoError(err)
	return r
}

func (s *ServiceSuite) shelve(bt id.BloodType, c invmodels.Component) *invmodels.Unit {
	u, err := invmodels.NewUnit(bt, c, "", s.now.AddDate(0, 0, -2), time.Time{}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.units.CreateMany(s.ctx, []*invmodels.Unit{u}))
	return u
}

func (s *ServiceSuite) assign(r *models.Request, u *invmodels.Unit) (*models.Request, error) {
	return s.service.AssignUnits(s.ctx, r.ID, &models.AssignRequest{UnitID: u.ID.String()})
}

func (s *ServiceSuite) unit(u *invmodels.Unit) *invmodels.Unit {
	found, err := s.units.FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	return found
}

func (s *ServiceSuite) TestCreate() {
	s.Run("files a pending request with defaults", func() {
		r := s.create()

		s.Equal("REQ2403010001", r.DisplayID)
		s.Equal(models.StatusPending, r.Status)
		s.Equal(models.PriorityMedium, r.Priority)
		s.Equal(s.now.Add(models.DefaultLeadTime), r.RequiredBy)
		s.Equal(s.staff, r.RequestedBy)
		s.Equal(models.RequesterPatient, r.Requester.Kind())
		s.Equal(invmodels.ComponentWholeBlood, r.BloodRequirements[0].Component)
		s.Equal(id.OPositive, r.BloodRequirements[0].BloodType)
		s.True(r.BloodRequirements[0].CrossmatchRequired)
		s.Equal(float64(1), promtestutil.ToFloat64(s.metrics.RequestsCreated))
	})

	s.Run("display ids follow the daily sequence", func() {
		r := s.create()
		s.Equal("REQ2403010002", r.DisplayID)
	})

	s.Run("institution requester", func() {
		s.expectActivity(activity.ActionCreateRequest)
		req := s.createRequest()
		req.Patient = nil
		req.Institution = &models.Institution{Name: "St. Mary"}
		r, err := s.service.Create(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(models.RequesterInstitution, r.Requester.Kind())
		s.Equal("St. Mary", r.Requester.Name())
	})

	s.Run("validation", func() {
		cases := []struct {
			name   string
			mutate func(*models.CreateRequestRequest)
			msg    string
		}{
			{"no requester", func(r *models.CreateRequestRequest) { r.Patient = nil }, "Either patient or institution information is required"},
			{"no requirements", func(r *models.CreateRequestRequest) { r.BloodRequirements = nil }, "Blood requirements are required"},
			{"bad blood type", func(r *models.CreateRequestRequest) { r.BloodRequirements[0].BloodType = "C+" }, "Please provide a valid blood type"},
			{"bad priority", func(r *models.CreateRequestRequest) { r.Priority = "asap" }, "Invalid priority"},
		}
		for _, tc := range cases {
			req := s.createRequest()
			tc.mutate(req)
			_, err := s.service.Create(s.ctx, req)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), tc.name)
			s.Equal(tc.msg, dErrors.MessageOf(err), tc.name)
		}
	})
}

func (s *ServiceSuite) TestAssignUnits() {
	r := s.create()
	first := s.shelve(id.OPositive, invmodels.ComponentWholeBlood)
	second := s.shelve(id.OPositive, invmodels.ComponentWholeBlood)

	s.Run("partial then full", func() {
		s.expectActivity(activity.ActionUpdateRequest)
		updated, err := s.assign(r, first)
		s.Require().NoError(err)
		s.Equal(models.StatusPartiallyFulfilled, updated.Status)
		s.Equal(50, updated.FulfillmentPercentage())

		issued := s.unit(first)
		s.Equal(invmodels.StatusIssued, issued.Status)
		s.Require().NotNil(issued.IssuedTo)
		s.Equal(r.ID, *issued.IssuedTo)
		s.Require().NotNil(issued.IssuedBy)
		s.Equal(s.staff, *issued.IssuedBy)

		s.expectActivity(activity.ActionUpdateRequest)
		updated, err = s.assign(r, second)
		s.Require().NoError(err)
		s.Equal(models.StatusFulfilled, updated.Status)
		s.NotNil(updated.FulfilledDate)
		s.Len(updated.AssignedUnits, 2)
		s.Equal(float64(1), promtestutil.ToFloat64(s.metrics.RequestStatusChanges.WithLabelValues("fulfilled")))
	})

	s.Run("unit already issued", func() {
		other := s.create()
		_, err := s.assign(other, first)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("Cannot issue unit with status issued", dErrors.MessageOf(err))
	})

	s.Run("closed request", func() {
		third := s.shelve(id.OPositive, invmodels.ComponentWholeBlood)
		_, err := s.assign(r, third)
		s.Equal("Cannot assign units to a request with status fulfilled", dErrors.MessageOf(err))
		s.Equal(invmodels.StatusAvailable, s.unit(third).Status)
	})
}

func (s *ServiceSuite) TestAssignMismatchLeavesUnitOnShelf() {
	r := s.create()
	plasma := s.shelve(id.ANegative, invmodels.ComponentPlasma)

	_, err := s.assign(r, plasma)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal("Request has no A- plasma requirement", dErrors.MessageOf(err))
	s.Equal(invmodels.StatusAvailable, s.unit(plasma).Status)

	_, err = s.service.AssignUnits(s.ctx, r.ID, &models.AssignRequest{UnitID: id.NewUnitID().String()})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal("Blood unit not found", dErrors.MessageOf(err))

	_, err = s.service.AssignUnits(s.ctx, r.ID, &models.AssignRequest{UnitID: "nope"})
	s.Equal("Invalid blood unit id", dErrors.MessageOf(err))

	_, err = s.assign(&models.Request{ID: id.NewRequestID()}, plasma)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal("Request not found", dErrors.MessageOf(err))
}

func (s *ServiceSuite) TestCancel() {
	r := s.create()
	first := s.shelve(id.OPositive, invmodels.ComponentWholeBlood)
	second := s.shelve(id.OPositive, invmodels.ComponentWholeBlood)
	s.expectActivity(activity.ActionUpdateRequest)
	_, err := s.assign(r, first)
	s.Require().NoError(err)
	s.expectActivity(activity.ActionUpdateRequest)
	_, err = s.assign(r, second)
	s.Require().NoError(err)

	s.Run("returns every held unit", func() {
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any()).Do(
			func(_ context.Context, e activity.Entry) {
				s.Equal(activity.ActionUpdateStatus, e.Action)
				s.Equal(2, e.Metadata["returnedUnits"])
			})
		cancelled, err := s.service.Cancel(s.ctx, r.ID, &models.CancelRequest{Reason: " duplicate "})
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, cancelled.Status)
		s.Equal("duplicate", cancelled.CancellationReason)
		s.NotNil(cancelled.CancelledDate)
		for _, a := range cancelled.AssignedUnits {
			s.Equal(models.AssignmentReturned, a.Status)
			s.Equal(models.CancelReturnReason, a.ReturnReason)
		}
		for _, u := range []*invmodels.Unit{first, second} {
			back := s.unit(u)
			s.Equal(invmodels.StatusAvailable, back.Status)
			s.Nil(back.IssuedTo)
			s.Equal(models.CancelReturnReason, back.ReturnReason)
		}
	})

	s.Run("twice is rejected", func() {
		_, err := s.service.Cancel(s.ctx, r.ID, &models.CancelRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("Request is already cancelled", dErrors.MessageOf(err))
	})
}

func (s *ServiceSuite) TestCancelSkipsUnitsNoLongerHeld() {
	r := s.create()
	u := s.shelve(id.OPositive, invmodels.ComponentWholeBlood)
	s.expectActivity(activity.ActionUpdateRequest)
	_, err := s.assign(r, u)
	s.Require().NoError(err)
	_, err = invservice.New(s.units).ReturnForRequest(s.ctx, u.ID, "damaged in transit")
	s.Require().NoError(err)

	s.expectActivity(activity.ActionUpdateStatus)
	cancelled, err := s.service.Cancel(s.ctx, r.ID, &models.CancelRequest{})
	s.Require().NoError(err)
	s.Equal(models.AssignmentAssigned, cancelled.AssignedUnits[0].Status)
	s.Equal("damaged in transit", s.unit(u).ReturnReason)
}

func (s *ServiceSuite) TestUpdateStatus() {
	r := s.create()

	s.Run("empty status is a no-op", func() {
		got, err := s.service.UpdateStatus(s.ctx, r.ID, &models.StatusRequest{})
		s.Require().NoError(err)
		s.Equal(models.StatusPending, got.Status)
	})

	s.Run("approval stamps the approver", func() {
		s.expectActivity(activity.ActionUpdateStatus)
		got, err := s.service.UpdateStatus(s.ctx, r.ID, &models.StatusRequest{Status: "approved"})
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, got.Status)
		s.Require().NotNil(got.ApprovedBy)
		s.Equal(s.staff, *got.ApprovedBy)
		s.Equal(s.now, *got.ApprovedDate)
	})

	s.Run("rejection keeps the reason", func() {
		s.expectActivity(activity.ActionUpdateStatus)
		got, err := s.service.UpdateStatus(s.ctx, r.ID, &models.StatusRequest{Status: "rejected", Reason: "duplicate"})
		s.Require().NoError(err)
		s.Equal("duplicate", got.RejectionReason)
	})

	s.Run("invalid status", func() {
		_, err := s.service.UpdateStatus(s.ctx, r.ID, &models.StatusRequest{Status: "lost"})
		s.Equal("Invalid status", dErrors.MessageOf(err))
	})

	s.Run("cancelled goes through cancellation", func() {
		s.expectActivity(activity.ActionUpdateStatus)
		got, err := s.service.UpdateStatus(s.ctx, r.ID, &models.StatusRequest{Status: "cancelled", Reason: "no longer needed"})
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, got.Status)
		s.Equal("no longer needed", got.CancellationReason)
	})
}

func (s *ServiceSuite) TestHandSetStatusMustMatchFulfilment() {
	r := s.create()

	s.Run("fulfilled with nothing assigned", func() {
		_, err := s.service.UpdateStatus(s.ctx, r.ID, &models.StatusRequest{Status: "fulfilled"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("Cannot set status fulfilled while 0 of 2 units are fulfilled", dErrors.MessageOf(err))
		stored, err := s.service.Get(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, stored.Status)
	})

	s.expectActivity(activity.ActionUpdateRequest)
	_, err := s.assign(r, s.shelve(id.OPositive, invmodels.ComponentWholeBlood))
	s.Require().NoError(err)

	s.Run("pending with a unit assigned", func() {
		_, err := s.service.UpdateStatus(s.ctx, r.ID, &models.StatusRequest{Status: "pending"})
		s.Equal("Cannot set status pending while 1 of 2 units are fulfilled", dErrors.MessageOf(err))
	})

	s.Run("status matching the lines is accepted", func() {
		s.expectActivity(activity.ActionUpdateStatus)
		got, err := s.service.UpdateStatus(s.ctx, r.ID, &models.StatusRequest{Status: "partially_fulfilled"})
		s.Require().NoError(err)
		s.Equal(models.StatusPartiallyFulfilled, got.Status)
	})

	s.Run("update checks the status against the patched lines", func() {
		status := "fulfilled"
		_, err := s.service.Update(s.ctx, r.ID, &models.UpdateRequestRequest{Status: &status})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		s.expectActivity(activity.ActionUpdateRequest)
		got, err := s.service.Update(s.ctx, r.ID, &models.UpdateRequestRequest{
			Status:            &status,
			BloodRequirements: []models.LineItemInput{{BloodType: "O+", Units: 1}},
		})
		s.Require().NoError(err)
		s.Equal(models.StatusFulfilled, got.Status)
		s.Equal(1, got.TotalUnitsFulfilled())
		s.NotNil(got.FulfilledDate)
	})
}

func (s *ServiceSuite) TestUpdate() {
	r := s.create()
	u := s.shelve(id.OPositive, invmodels.ComponentWholeBlood)
	s.expectActivity(activity.ActionUpdateRequest)
	_, err := s.assign(r, u)
	s.Require().NoError(err)

	s.Run("patch fields", func() {
		s.expectActivity(activity.ActionUpdateRequest)
		priority := "critical"
		notes := "  theatre 3 "
		got, err := s.service.Update(s.ctx, r.ID, &models.UpdateRequestRequest{
			Priority:    &priority,
			Notes:       &notes,
			Patient:     &models.Patient{Name: "Jane Roe", Ward: "Theatre"},
			Institution: &models.Institution{Name: "St. Mary"},
		})
		s.Require().NoError(err)
		s.Equal(models.PriorityCritical, got.Priority)
		s.Equal("theatre 3", got.Notes)
		s.Equal(models.RequesterPatient, got.Requester.Kind())
		patient, _ := got.Requester.Patient()
		s.Equal("Theatre", patient.Ward)
		referrer, ok := got.Requester.Institution()
		s.Require().True(ok)
		s.Equal("St. Mary", referrer.Name)
		s.Equal("hospital", referrer.Type)
	})

	s.Run("shrinking requirements recomputes the status", func() {
		s.expectActivity(activity.ActionUpdateRequest)
		got, err := s.service.Update(s.ctx, r.ID, &models.UpdateRequestRequest{
			BloodRequirements: []models.LineItemInput{{BloodType: "O+", Units: 1}},
		})
		s.Require().NoError(err)
		s.Equal(1, got.BloodRequirements[0].UnitsFulfilled)
		s.Equal(models.StatusFulfilled, got.Status)
	})

	s.Run("cancelling through update returns units", func() {
		s.expectActivity(activity.ActionUpdateRequest)
		status := "cancelled"
		got, err := s.service.Update(s.ctx, r.ID, &models.UpdateRequestRequest{Status: &status})
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, got.Status)
		s.Equal(invmodels.StatusAvailable, s.unit(u).Status)
	})

	s.Run("invalid priority", func() {
		priority := "asap"
		_, err := s.service.Update(s.ctx, r.ID, &models.UpdateRequestRequest{Priority: &priority})
		s.Equal("Invalid priority", dErrors.MessageOf(err))
	})
}

func (s *ServiceSuite) TestListAndUrgent() {
	r := s.create()
	s.expectActivity(activity.ActionCreateRequest)
	req := s.createRequest()
	req.Priority = "critical"
	critical, err := s.service.Create(s.ctx, req)
	s.Require().NoError(err)

	requests, pagination, err := s.service.List(s.ctx, models.ListFilter{}, id.Page{})
	s.Require().NoError(err)
	s.Equal(2, pagination.Total)
	s.Equal(10, pagination.Limit)
	s.Len(requests, 2)

	_, _, err = s.service.List(s.ctx, models.ListFilter{Status: "lost"}, id.Page{})
	s.Equal("Invalid status", dErrors.MessageOf(err))

	urgent, err := s.service.Urgent(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(urgent, 1)
	s.Equal(critical.ID, urgent[0].ID)
	s.NotEqual(r.ID, urgent[0].ID)
}

func (s *ServiceSuite) TestDelete() {
	r := s.create()
	s.expectActivity(activity.ActionDeleteRequest)
	s.Require().NoError(s.service.Delete(s.ctx, r.ID))

	_, err := s.service.Get(s.ctx, r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.True(dErrors.HasCode(s.service.Delete(s.ctx, r.ID), dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestStoreFailureIsInternal() {
	mockStore := mocks.NewMockStore(s.ctrl)
	mockInventory := mocks.NewMockInventory(s.ctrl)
	svc := New(mockStore, mockInventory, tx.NewLockRunner(), sequence.NewMemory(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
	_, err := svc.Create(s.ctx, s.createRequest())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	requestID := id.NewRequestID()
	unitID := id.NewUnitID()
	current, _ := models.NewRequest(s.staff, "REQ2403010009",
		mustPatient(s.T(), "Jane Roe"), []models.LineItem{{BloodType: id.OPositive, Component: invmodels.ComponentWholeBlood, Units: 1}}, "", time.Time{}, s.now)
	mockStore.EXPECT().FindByID(gomock.Any(), requestID).Return(current, nil)
	mockInventory.EXPECT().Get(gomock.Any(), unitID).Return(&invmodels.Unit{ID: unitID, BloodType: id.OPositive, Component: invmodels.ComponentWholeBlood, Units: 1}, nil)
	mockInventory.EXPECT().IssueForRequest(gomock.Any(), unitID, requestID, s.staff).Return(nil, errors.New("lock timeout"))
	_, err = svc.AssignUnits(s.ctx, requestID, &models.AssignRequest{UnitID: unitID.String()})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal("Failed to assign units", dErrors.MessageOf(err))
}

func mustPatient(t *testing.T, name string) models.Requester {
	r, err := models.NewPatientRequester(models.Patient{Name: name}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}
