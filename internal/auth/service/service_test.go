package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore,TokenRevocationList,TokenIssuer,PasswordHasher,DonorEnroller,OwnershipCounter,ActivityRecorder

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
	"lifeflow/internal/auth/models"
	"lifeflow/internal/auth/service/mocks"
	"lifeflow/internal/platform/metrics"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/platform/tx"
	"lifeflow/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	mockUsers     *mocks.MockUserStore
	mockTRL       *mocks.MockTokenRevocationList
	mockTokens    *mocks.MockTokenIssuer
	mockHasher    *mocks.MockPasswordHasher
	mockDonors    *mocks.MockDonorEnroller
	mockActivity  *mocks.MockActivityRecorder
	donorCounter  *mocks.MockOwnershipCounter
	requestCounts *mocks.MockOwnershipCounter
	metrics       *metrics.Metrics
	service       *Service
	ctx           context.Context
	now           time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockUsers = mocks.NewMockUserStore(s.ctrl)
	s.mockTRL = mocks.NewMockTokenRevocationList(s.ctrl)
	s.mockTokens = mocks.NewMockTokenIssuer(s.ctrl)
	s.mockHasher = mocks.NewMockPasswordHasher(s.ctrl)
	s.mockDonors = mocks.NewMockDonorEnroller(s.ctrl)
	s.mockActivity = mocks.NewMockActivityRecorder(s.ctrl)
	s.donorCounter = mocks.NewMockOwnershipCounter(s.ctrl)
	s.requestCounts = mocks.NewMockOwnershipCounter(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.mockUsers, s.mockTRL, s.mockTokens, s.mockHasher, tx.NewLockRunner(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithActivityRecorder(s.mockActivity),
		WithDonorEnroller(s.mockDonors),
		WithProfileCounters(s.donorCounter, s.requestCounts),
	)
	s.now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) user(role models.Role) *models.User {
	u, err := models.NewUser("Jane", "Doe", "jane@example.com", role, s.now.AddDate(0, 0, -10))
	s.Require().NoError(err)
	u.PasswordHash = "hashed"
	return u
}

// expectExecute runs the service's callbacks against u the way a store would.
func (s *ServiceSuite) expectExecute(u *models.User) {
	s.expectExecuteCall(u)
}

func (s *ServiceSuite) expectExecuteCall(u *models.User) *gomock.Call {
	return s.mockUsers.EXPECT().Execute(gomock.Any(), u.ID, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
			if err := validate(u); err != nil {
				return nil, err
			}
			mutate(u)
			return u, nil
		})
}

func (s *ServiceSuite) registerRequest() *models.RegisterRequest {
	return &models.RegisterRequest{
		FirstName:       "Alice",
		LastName:        "Smith",
		Email:           "Alice@Example.com ",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}
}

func (s *ServiceSuite) TestRegister() {
	s.Run("mismatched confirmation is rejected before any write", func() {
		req := s.registerRequest()
		req.ConfirmPassword = "other"
		_, err := s.service.Register(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("Passwords do not match", dErrors.MessageOf(err))
	})

	s.Run("short first name", func() {
		req := s.registerRequest()
		req.FirstName = "A"
		_, err := s.service.Register(s.ctx, req)
		s.Equal("First name must be at least 2 characters", dErrors.MessageOf(err))
	})

	s.Run("existing email conflicts", func() {
		s.mockHasher.EXPECT().Hash("secret1").Return("hashed", nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "alice@example.com").Return(s.user(models.RoleStaff), nil)

		_, err := s.service.Register(s.ctx, s.registerRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("User already exists with this email", dErrors.MessageOf(err))
	})

	s.Run("creates a staff user and issues a token", func() {
		s.mockHasher.EXPECT().Hash("secret1").Return("hashed", nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "alice@example.com").Return(nil, sentinel.ErrNotFound)
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
			s.Equal(models.RoleStaff, u.Role)
			s.Equal("hashed", u.PasswordHash)
			return nil
		})
		s.mockTokens.EXPECT().GenerateAccessToken(gomock.Any(), "alice@example.com", "staff", 24*time.Hour).Return("tok", nil)
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e activity.Entry) {
			s.Equal(activity.ActionLogin, e.Action)
			s.Equal("User registered", e.Description)
		})

		res, err := s.service.Register(s.ctx, s.registerRequest())
		s.Require().NoError(err)
		s.Equal("tok", res.Token)
		s.Equal("alice@example.com", res.User.Email)
		s.Equal(1.0, promtestutil.ToFloat64(s.metrics.UsersRegistered))
	})

	s.Run("blood type enrolls a donor inside the unit of work", func() {
		req := s.registerRequest()
		req.BloodType = "b+"
		s.mockHasher.EXPECT().Hash("secret1").Return("hashed", nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "alice@example.com").Return(nil, sentinel.ErrNotFound)
		gomock.InOrder(
			s.mockDonors.EXPECT().ReserveDonorID(gomock.Any()).Return("2403010007", nil),
			s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
			s.mockDonors.EXPECT().EnrollUser(gomock.Any(), gomock.Any(), "2403010007").DoAndReturn(func(_ context.Context, u *models.User, _ string) error {
				s.Equal(id.BPositive, u.BloodType)
				return nil
			}),
		)
		s.mockTokens.EXPECT().GenerateAccessToken(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("tok", nil)
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any())

		_, err := s.service.Register(s.ctx, req)
		s.Require().NoError(err)
	})

	s.Run("enrollment failure fails registration", func() {
		req := s.registerRequest()
		req.BloodType = "O-"
		s.mockHasher.EXPECT().Hash("secret1").Return("hashed", nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.mockDonors.EXPECT().ReserveDonorID(gomock.Any()).Return("2403010008", nil)
		s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.mockDonors.EXPECT().EnrollUser(gomock.Any(), gomock.Any(), "2403010008").Return(errors.New("donor store down"))

		_, err := s.service.Register(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("no donor id means no user is written", func() {
		req := s.registerRequest()
		req.BloodType = "O-"
		s.mockHasher.EXPECT().Hash("secret1").Return("hashed", nil)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.mockDonors.EXPECT().ReserveDonorID(gomock.Any()).
			Return("", dErrors.Wrap(errors.New("redis: connection refused"), dErrors.CodeUnavailable, "failed to allocate donor id"))

		_, err := s.service.Register(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *ServiceSuite) TestLogin() {
	req := func() *models.LoginRequest {
		return &models.LoginRequest{Email: "jane@example.com", Password: "secret1"}
	}

	s.Run("unknown email is unauthorized without an activity entry", func() {
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "jane@example.com").Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Login(s.ctx, req())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("Invalid email or password", dErrors.MessageOf(err))
	})

	s.Run("wrong password", func() {
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(s.user(models.RoleStaff), nil)
		s.mockHasher.EXPECT().Verify("secret1", "hashed").Return(dErrors.New(dErrors.CodeInvalidInput, "invalid secret"))
		_, err := s.service.Login(s.ctx, req())
		s.Equal("Invalid email or password", dErrors.MessageOf(err))
	})

	s.Run("deactivated account", func() {
		u := s.user(models.RoleStaff)
		u.IsActive = false
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(u, nil)
		s.mockHasher.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(nil)
		_, err := s.service.Login(s.ctx, req())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Contains(dErrors.MessageOf(err), "Account is deactivated")
	})

	s.Run("donor identity without a credential cannot log in", func() {
		u := s.user(models.RoleDonor)
		u.PasswordHash = ""
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(u, nil)
		_, err := s.service.Login(s.ctx, req())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("success stamps last login and records activity", func() {
		u := s.user(models.RoleAdmin)
		s.mockUsers.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(u, nil)
		s.mockHasher.EXPECT().Verify("secret1", "hashed").Return(nil)
		s.expectExecute(u)
		s.mockTokens.EXPECT().GenerateAccessToken(u.ID, u.Email, "admin", 24*time.Hour).Return("tok", nil)
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e activity.Entry) {
			s.Equal(u.ID, e.UserID)
			s.Equal("User Jane Doe logged in", e.Description)
		})

		res, err := s.service.Login(s.ctx, req())
		s.Require().NoError(err)
		s.Equal("tok", res.Token)
		s.Require().NotNil(res.User.LastLogin)
		s.Equal(s.now, *res.User.LastLogin)
	})
}

func (s *ServiceSuite) TestLogout() {
	userID := id.NewUserID()

	s.Run("revokes the token for its remaining lifetime", func() {
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any())
		s.mockTRL.EXPECT().RevokeToken(gomock.Any(), "jti-1", 2*time.Hour).Return(nil)
		s.NoError(s.service.Logout(s.ctx, userID, "jti-1", s.now.Add(2*time.Hour)))
	})

	s.Run("already expired token is not stored", func() {
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any())
		s.NoError(s.service.Logout(s.ctx, userID, "jti-2", s.now.Add(-time.Minute)))
	})

	s.Run("revocation failure is unavailable", func() {
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any())
		s.mockTRL.EXPECT().RevokeToken(gomock.Any(), "jti-3", gomock.Any()).Return(errors.New("redis down"))
		err := s.service.Logout(s.ctx, userID, "jti-3", s.now.Add(time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *ServiceSuite) TestProfile() {
	u := s.user(models.RoleStaff)

	s.Run("includes ownership stats", func() {
		s.mockUsers.EXPECT().FindByID(gomock.Any(), u.ID).Return(u, nil)
		s.donorCounter.EXPECT().CountByUser(gomock.Any(), u.ID).Return(1, nil)
		s.requestCounts.EXPECT().CountByUser(gomock.Any(), u.ID).Return(4, nil)
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, e activity.Entry) {
			s.Equal(activity.ActionViewProfile, e.Action)
		})

		p, err := s.service.Profile(s.ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(models.ProfileStats{TotalDonors: 1, TotalRequests: 4, DaysActive: 10}, p.Stats)
	})

	s.Run("missing user", func() {
		s.mockUsers.EXPECT().FindByID(gomock.Any(), u.ID).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Profile(s.ctx, u.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestUpdateProfile() {
	u := s.user(models.RoleStaff)
	name := "Janet"
	phone := "5551234567"
	role := "admin"

	s.Run("applies whitelisted fields only", func() {
		s.expectExecute(u)
		s.mockDonors.EXPECT().SyncIdentity(gomock.Any(), u).Return(nil)
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any())
		updated, err := s.service.UpdateProfile(s.ctx, u.ID, &models.ProfilePatch{FirstName: &name, Phone: &phone})
		s.Require().NoError(err)
		s.Equal("Janet", updated.FirstName)
		s.Equal("5551234567", updated.Phone)
		s.Equal(models.RoleStaff, updated.Role)
	})

	s.Run("admin patch may change role", func() {
		s.expectExecute(u)
		updated, err := s.service.UpdateUser(s.ctx, u.ID, &models.AdminUserPatch{Role: &role})
		s.Require().NoError(err)
		s.Equal(models.RoleAdmin, updated.Role)
	})

	s.Run("invalid blood type", func() {
		bt := "Z+"
		_, err := s.service.UpdateProfile(s.ctx, u.ID, &models.ProfilePatch{BloodType: &bt})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestUpdateProfileSyncsDonor() {
	u := s.user(models.RoleDonor)
	u.BloodType = id.APositive

	s.Run("blood type change reaches the donor record", func() {
		bt := " o- "
		gomock.InOrder(
			s.expectExecuteCall(u),
			s.mockDonors.EXPECT().SyncIdentity(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, synced *models.User) error {
					s.Equal(u.ID, synced.ID)
					s.Equal(id.ONegative, synced.BloodType)
					return nil
				}),
		)
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any())

		updated, err := s.service.UpdateProfile(s.ctx, u.ID, &models.ProfilePatch{BloodType: &bt})
		s.Require().NoError(err)
		s.Equal(id.ONegative, updated.BloodType)
	})

	s.Run("a failed donor sync fails the update", func() {
		bt := "B+"
		s.expectExecute(u)
		s.mockDonors.EXPECT().SyncIdentity(gomock.Any(), u).
			Return(dErrors.New(dErrors.CodeInternal, "failed to update donor"))

		_, err := s.service.UpdateProfile(s.ctx, u.ID, &models.ProfilePatch{BloodType: &bt})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("fields the donor does not mirror skip the sync", func() {
		s.expectExecute(u)
		s.mockActivity.EXPECT().Record(gomock.Any(), gomock.Any())

		_, err := s.service.UpdateProfile(s.ctx, u.ID, &models.ProfilePatch{Preferences: &models.Preferences{Theme: "dark"}})
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestChangePassword() {
	s.Run("wrong current password", func() {
		u := s.user(models.RoleStaff)
		s.mockHasher.EXPECT().Hash("newpass").Return("new-hash", nil)
		s.mockHasher.EXPECT().Verify("bad", "hashed").Return(dErrors.New(dErrors.CodeInvalidInput, "invalid secret"))
		s.expectExecute(u)

		err := s.service.ChangePassword(s.ctx, u.ID, &models.ChangePasswordRequest{CurrentPassword: "bad", NewPassword: "newpass"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal("Current password is incorrect", dErrors.MessageOf(err))
		s.Equal("hashed", u.PasswordHash)
	})

	s.Run("stores the new hash", func() {
		u := s.user(models.RoleStaff)
		s.mockHasher.EXPECT().Hash("newpass").Return("new-hash", nil)
		s.mockHasher.EXPECT().Verify("secret1", "hashed").Return(nil)
		s.expectExecute(u)

		s.Require().NoError(s.service.ChangePassword(s.ctx, u.ID, &models.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "newpass"}))
		s.Equal("new-hash", u.PasswordHash)
	})

	s.Run("new password too short", func() {
		err := s.service.ChangePassword(s.ctx, id.NewUserID(), &models.ChangePasswordRequest{CurrentPassword: "x", NewPassword: "123"})
		s.Equal("New password must be at least 6 characters", dErrors.MessageOf(err))
	})
}

func (s *ServiceSuite) TestActivities() {
	userID := id.NewUserID()

	s.Run("staff see their own entries", func() {
		s.mockActivity.EXPECT().ListByUser(gomock.Any(), userID, id.Page{Page: 1, Limit: 20}).Return([]activity.Entry{{}}, 1, nil)
		list, err := s.service.Activities(s.ctx, userID, models.RoleStaff, id.Page{})
		s.Require().NoError(err)
		s.Len(list.Items, 1)
		s.Equal(1, list.Pagination.Pages)
	})

	s.Run("admins see everything", func() {
		s.mockActivity.EXPECT().ListAll(gomock.Any(), id.Page{Page: 2, Limit: 5}).Return(nil, 7, nil)
		list, err := s.service.Activities(s.ctx, userID, models.RoleAdmin, id.Page{Page: 2, Limit: 5})
		s.Require().NoError(err)
		s.NotNil(list.Items)
		s.Equal(2, list.Pagination.Pages)
	})
}

func (s *ServiceSuite) TestUpdateRole() {
	s.Run("unknown user", func() {
		missing := id.NewUserID()
		s.mockUsers.EXPECT().Execute(gomock.Any(), missing, gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.UpdateRole(s.ctx, missing, &models.UpdateRoleRequest{Role: "donor"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid role", func() {
		_, err := s.service.UpdateRole(s.ctx, id.NewUserID(), &models.UpdateRoleRequest{Role: "root"})
		s.Equal("Valid role is required", dErrors.MessageOf(err))
	})
}

func (s *ServiceSuite) TestSeedAccounts() {
	existing := s.user(models.RoleAdmin)
	s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "admin@lifeflow.com").Return(existing, nil)
	s.mockUsers.EXPECT().FindByEmail(gomock.Any(), "staff@lifeflow.com").Return(nil, sentinel.ErrNotFound)
	s.mockHasher.EXPECT().Hash("staff123").Return("staff-hash", nil)
	s.mockUsers.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
		s.Equal(models.RoleStaff, u.Role)
		s.Equal("staff-hash", u.PasswordHash)
		return nil
	})

	n, err := s.service.SeedAccounts(s.ctx, DemoAccounts)
	s.Require().NoError(err)
	s.Equal(1, n)
}
