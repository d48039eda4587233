package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	activity "lifeflow/internal/activity/models"
	"lifeflow/internal/auth/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/requestcontext"
)

var errUserExists = dErrors.New(dErrors.CodeConflict, "User already exists with this email")

// Register creates a staff account and, when a blood type is supplied, the
// linked donor record in the same unit of work.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (_ *models.AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Register")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	user, err := models.NewUser(req.FirstName, req.LastName, req.Email, models.RoleStaff, now)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	user.Phone = req.Phone
	user.BloodType = id.BloodType(req.BloodType)

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, passOrWrap(err, "failed to hash password")
	}
	user.PasswordHash = hash

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.FindByEmail(ctx, user.Email); err == nil {
			return errUserExists
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		enroll := user.BloodType != "" && s.donors != nil
		var donorID string
		if enroll {
			var err error
			if donorID, err = s.donors.ReserveDonorID(ctx); err != nil {
				return err
			}
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return errUserExists
			}
			return err
		}
		if enroll {
			return s.donors.EnrollUser(ctx, user, donorID)
		}
		return nil
	})
	if err != nil {
		return nil, passOrWrap(err, "Registration failed. Please try again.")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user_id", user.ID.String()))
	s.metrics.IncrementUsersRegistered()
	s.record(ctx, activity.NewEntry(user.ID, activity.ActionLogin, "User registered", activity.EntityUser, user.ID.String()))
	s.logger.InfoContext(ctx, "user registered",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", user.ID.String(),
		"donor_enrolled", user.BloodType != "",
	)
	return &models.AuthResult{Message: "User registered successfully", Token: token, User: user}, nil
}

var errInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "Invalid email or password")

// Login verifies credentials. Failed attempts are not written to the
// activity log.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (_ *models.AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Login")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.loginFailed(ctx, "unknown_email")
			return nil, errInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Login failed. Please try again.")
	}
	if user.PasswordHash == "" {
		s.loginFailed(ctx, "no_credential")
		return nil, errInvalidCredentials
	}
	if err := s.hasher.Verify(req.Password, user.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			s.loginFailed(ctx, "bad_password")
			return nil, errInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Login failed. Please try again.")
	}
	if !user.IsActive {
		s.loginFailed(ctx, "inactive")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Account is deactivated. Contact administrator.")
	}

	now := requestcontext.Now(ctx)
	user, err = s.users.Execute(ctx, user.ID,
		func(*models.User) error { return nil },
		func(u *models.User) { u.ApplyLogin(now) },
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "Login failed. Please try again.")
	}
	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementLogin("success")
	s.record(ctx, activity.NewEntry(user.ID, activity.ActionLogin,
		"User "+user.FullName()+" logged in", activity.EntityUser, user.ID.String()))
	return &models.AuthResult{Message: "Login successful", Token: token, User: user}, nil
}

func (s *Service) loginFailed(ctx context.Context, reason string) {
	s.metrics.IncrementLogin("failure")
	s.logger.WarnContext(ctx, "login failed",
		"request_id", requestcontext.RequestID(ctx),
		"reason", reason,
	)
}

// Logout records the logout and revokes the presented token until it would
// have expired.
func (s *Service) Logout(ctx context.Context, userID id.UserID, jti string, expiresAt time.Time) error {
	s.record(ctx, activity.NewEntry(userID, activity.ActionLogout, "User logged out", activity.EntityUser, userID.String()))
	if jti == "" || s.trl == nil {
		return nil
	}
	ttl := expiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return nil
	}
	if err := s.trl.RevokeToken(ctx, jti, ttl); err != nil {
		s.logger.ErrorContext(ctx, "failed to add token to revocation list",
			"request_id", requestcontext.RequestID(ctx),
			"jti", jti,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "Failed to revoke token")
	}
	return nil
}

// IsTokenRevoked backs the token middleware's revocation check.
func (s *Service) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if s.trl == nil {
		return false, nil
	}
	return s.trl.IsRevoked(ctx, jti)
}
