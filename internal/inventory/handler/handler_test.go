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

	"lifeflow/internal/inventory/handler/mocks"
	"lifeflow/internal/inventory/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/testutil"
)

type InventoryHandlerSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	mockService *mocks.MockService
	router      chi.Router
	staff       id.UserID
}

func TestInventoryHandlerSuite(t *testing.T) {
	suite.Run(t, new(InventoryHandlerSuite))
}

func (s *InventoryHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.mockService, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
	s.staff = id.NewUserID()
}

func (s *InventoryHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *InventoryHandlerSuite) do(req *http.Request, role string) (int, []byte) {
	rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, role))
	return rr.Code, rr.Body.Bytes()
}

func (s *InventoryHandlerSuite) unit() *models.Unit {
	now := time.Now()
	u, err := models.NewUnit(id.OPositive, models.ComponentWholeBlood, "", now.AddDate(0, 0, -1), time.Time{}, now)
	s.Require().NoError(err)
	return u
}

func (s *InventoryHandlerSuite) TestList() {
	s.Run("passes filters and paging to the service", func() {
		s.mockService.EXPECT().ListAvailable(gomock.Any(),
			models.ListFilter{BloodType: id.ONegative, Location: models.LocationSatellite1},
			id.Page{Page: 2, Limit: 5},
		).Return([]*models.Unit{s.unit()}, id.Pagination{Page: 2, Limit: 5, Total: 6, Pages: 2}, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, "/inventory?bloodType=o-&location=satellite_1&page=2&limit=5")
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "staff"))
		s.Equal(http.StatusOK, rr.Code)

		resp := testutil.UnmarshalResponse[struct {
			Items []struct {
				BloodType           string `json:"bloodType"`
				DaysUntilExpiration int    `json:"daysUntilExpiration"`
				IsSafe              bool   `json:"isSafe"`
			} `json:"items"`
			Pagination id.Pagination `json:"pagination"`
		}](s.T(), rr)
		s.Require().Len(resp.Items, 1)
		s.Equal("O+", resp.Items[0].BloodType)
		s.Equal(34, resp.Items[0].DaysUntilExpiration)
		s.True(resp.Items[0].IsSafe)
		s.Equal(6, resp.Pagination.Total)
	})
}

func (s *InventoryHandlerSuite) TestAdd() {
	s.Run("returns 201 with created units", func() {
		s.mockService.EXPECT().AddUnits(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, req *models.AddUnitsRequest) ([]*models.Unit, error) {
				s.Equal("O+", req.BloodType)
				s.Equal(2, req.Units)
				s.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), req.DonationDate.Time)
				return []*models.Unit{s.unit(), s.unit()}, nil
			})

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/inventory",
			`{"bloodType":"O+","units":2,"donationDate":"2024-01-01"}`)
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "staff"))
		s.Equal(http.StatusCreated, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "message", "Blood inventory added successfully")
	})

	s.Run("surfaces validation messages", func() {
		s.mockService.EXPECT().AddUnits(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "Please provide a valid blood type"))

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/inventory", `{"bloodType":"X"}`)
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "staff"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed body is a bad request", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/inventory", `{"bloodType":`)
		code, _ := s.do(req, "staff")
		s.Equal(http.StatusBadRequest, code)
	})
}

func (s *InventoryHandlerSuite) TestTransitions() {
	u := s.unit()
	requestID := id.NewRequestID()

	s.Run("reserve", func() {
		s.mockService.EXPECT().Reserve(gomock.Any(), u.ID, requestID).Return(u, nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/inventory/"+u.ID.String()+"/reserve",
			map[string]string{"requestId": requestID.String()})
		code, _ := s.do(req, "staff")
		s.Equal(http.StatusOK, code)
	})

	s.Run("issue with invalid request id", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/inventory/"+u.ID.String()+"/issue",
			map[string]string{"requestId": "nope"})
		code, _ := s.do(req, "staff")
		s.Equal(http.StatusBadRequest, code)
	})

	s.Run("return requires a reason", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/inventory/"+u.ID.String()+"/return",
			map[string]string{"reason": "  "})
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "staff"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("invalid transition maps to 400", func() {
		s.mockService.EXPECT().Return(gomock.Any(), u.ID, "unused").
			Return(nil, dErrors.New(dErrors.CodeValidation, "Cannot return unit with status available"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/inventory/"+u.ID.String()+"/return",
			map[string]string{"reason": "unused"})
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "staff"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("discard", func() {
		s.mockService.EXPECT().Discard(gomock.Any(), u.ID, "contaminated").Return(u, nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/inventory/"+u.ID.String()+"/discard",
			map[string]string{"reason": "contaminated"})
		code, _ := s.do(req, "staff")
		s.Equal(http.StatusOK, code)
	})

	s.Run("unknown unit is 404", func() {
		missing := id.NewUnitID()
		s.mockService.EXPECT().Get(gomock.Any(), missing).Return(nil, dErrors.New(dErrors.CodeNotFound, "Blood unit not found"))
		req := testutil.NewRequest(s.T(), http.MethodGet, "/inventory/"+missing.String())
		code, _ := s.do(req, "staff")
		s.Equal(http.StatusNotFound, code)
	})

	s.Run("malformed unit id is 400", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/inventory/not-a-uuid")
		code, _ := s.do(req, "staff")
		s.Equal(http.StatusBadRequest, code)
	})
}

func (s *InventoryHandlerSuite) TestExpireRequiresAdmin() {
	s.Run("staff is forbidden", func() {
		req := testutil.NewRequest(s.T(), http.MethodPost, "/inventory/expire")
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "staff"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("admin runs the sweep", func() {
		s.mockService.EXPECT().ExpireOverdue(gomock.Any()).Return(4, nil)
		req := testutil.NewRequest(s.T(), http.MethodPost, "/inventory/expire")
		rr := testutil.DoRequest(s.router, testutil.WithPrincipal(req, s.staff, "admin"))
		s.Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "expired", float64(4))
	})
}

func (s *InventoryHandlerSuite) TestSummaryAndExpiring() {
	s.mockService.EXPECT().Summary(gomock.Any()).Return([]models.TypeSummary{{BloodType: id.APositive, TotalUnits: 3}}, nil)
	code, _ := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/inventory/summary"), "staff")
	s.Equal(http.StatusOK, code)

	s.mockService.EXPECT().ExpiringSoon(gomock.Any(), 3).Return([]*models.Unit{}, nil)
	code, body := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/inventory/expiring?days=3"), "staff")
	s.Equal(http.StatusOK, code)
	s.JSONEq(`[]`, string(body))
}
