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

	"lifeflow/internal/donor/handler/mocks"
	"lifeflow/internal/donor/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/testutil"
)

type DonorHandlerSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	mockService *mocks.MockService
	router      chi.Router
	staff       id.UserID
}

func TestDonorHandlerSuite(t *testing.T) {
	suite.Run(t, new(DonorHandlerSuite))
}

func (s *DonorHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.mockService, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
	s.staff = id.NewUserID()
}

func (s *DonorHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DonorHandlerSuite) do(req *http.Request) (int, []byte) {
	rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "staff"))
	return rr.Code, rr.Body.Bytes()
}

func (s *DonorHandlerSuite) donor() *models.Donor {
	d, err := models.NewDonor(id.NewUserID(), "2403010001", id.BPositive, time.Now())
	s.Require().NoError(err)
	d.ApplyIdentity("Alice", "Nguyen", "alice@example.com")
	return d
}

func (s *DonorHandlerSuite) view(d *models.Donor) *models.DonorView {
	v := models.NewDonorView(d, nil, time.Now())
	return &v
}

func (s *DonorHandlerSuite) TestList() {
	s.mockService.EXPECT().List(gomock.Any(),
		models.ListFilter{BloodType: id.ONegative, Eligibility: models.EligibilityDeferred, Search: "ali"},
		id.Page{Page: 3, Limit: 5},
	).Return([]*models.Donor{s.donor()}, id.Pagination{Page: 3, Limit: 5, Total: 11, Pages: 3}, nil)

	req := testutil.NewRequest(s.T(), http.MethodGet, "/donors?bloodType=o-&eligibilityStatus=deferred&search=ali&page=3&limit=5")
	rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "staff"))
	s.Equal(http.StatusOK, rr.Code)

	resp := testutil.UnmarshalResponse[struct {
		Items []struct {
			DonorID   string `json:"donorId"`
			CanDonate bool   `json:"canDonate"`
		} `json:"items"`
		Pagination id.Pagination `json:"pagination"`
	}](s.T(), rr)
	s.Require().Len(resp.Items, 1)
	s.Equal("2403010001", resp.Items[0].DonorID)
	s.True(resp.Items[0].CanDonate)
	s.Equal(3, resp.Pagination.Pages)
}

func (s *DonorHandlerSuite) TestCreate() {
	s.Run("returns 201 with the donor", func() {
		d := s.donor()
		s.mockService.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, req *models.CreateDonorRequest) (*models.DonorView, error) {
				s.Equal("Alice", req.FirstName)
				s.Equal("B+", req.BloodType)
				s.Equal(time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC), req.DateOfBirth.Time)
				return s.view(d), nil
			})

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/donors",
			`{"firstName":"Alice","lastName":"Nguyen","email":"alice@example.com","bloodType":"B+","phone":"5551234567","dateOfBirth":"1990-04-02"}`)
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "staff"))
		s.Equal(http.StatusCreated, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "message", "Donor created successfully")
	})

	s.Run("validation failure is 400", func() {
		s.mockService.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "Please provide a valid phone number"))

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/donors", `{"phone":"1"}`)
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "staff"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *DonorHandlerSuite) TestSingleDonorRoutes() {
	d := s.donor()
	path := "/donors/" + d.ID.String()

	s.Run("get", func() {
		s.mockService.EXPECT().Get(gomock.Any(), d.ID).Return(s.view(d), nil)
		code, _ := s.do(testutil.NewRequest(s.T(), http.MethodGet, path))
		s.Equal(http.StatusOK, code)
	})

	s.Run("stats is not captured by the id route", func() {
		s.mockService.EXPECT().Stats(gomock.Any()).Return(&models.Stats{TotalDonors: 3}, nil)
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(
			testutil.NewRequest(s.T(), http.MethodGet, "/donors/stats"), s.staff, "staff"))
		s.Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "totalDonors", float64(3))
	})

	s.Run("update passes the patch", func() {
		s.mockService.EXPECT().Update(gomock.Any(), d.ID, gomock.Any()).DoAndReturn(
			func(_ any, _ id.DonorID, patch *models.UpdateDonorRequest) (*models.DonorView, error) {
				s.Require().NotNil(patch.FirstName)
				s.Equal("Alicia", *patch.FirstName)
				s.Nil(patch.LastName)
				return s.view(d), nil
			})
		code, _ := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPut, path, `{"firstName":"Alicia"}`))
		s.Equal(http.StatusOK, code)
	})

	s.Run("eligibility", func() {
		s.mockService.EXPECT().UpdateEligibility(gomock.Any(), d.ID, &models.EligibilityRequest{Status: "deferred", Reason: "travel"}).
			Return(s.view(d), nil)
		code, _ := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, path+"/eligibility",
			map[string]string{"eligibilityStatus": "deferred", "ineligibilityReason": "travel"}))
		s.Equal(http.StatusOK, code)
	})

	s.Run("record donation", func() {
		s.mockService.EXPECT().RecordDonation(gomock.Any(), d.ID, gomock.Any()).DoAndReturn(
			func(_ any, _ id.DonorID, req *models.RecordDonationRequest) (*models.DonorView, error) {
				s.Equal(1, req.Units)
				s.Equal("Main Clinic", req.Location)
				return s.view(d), nil
			})
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, path+"/donations",
			map[string]any{"units": 1, "location": "Main Clinic"})
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "staff"))
		s.Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "message", "Donation recorded successfully")
	})

	s.Run("delete missing donor is 404", func() {
		s.mockService.EXPECT().Delete(gomock.Any(), d.ID).Return(dErrors.New(dErrors.CodeNotFound, "Donor not found"))
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(
			testutil.NewRequest(s.T(), http.MethodDelete, path), s.staff, "staff"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("malformed id is 400", func() {
		code, _ := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/donors/42"))
		s.Equal(http.StatusBadRequest, code)
	})
}
