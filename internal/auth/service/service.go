package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	activity "lifeflow/internal/activity/models"
	"lifeflow/internal/auth/models"
	"lifeflow/internal/platform/metrics"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/tx"
)

var tracer = otel.Tracer("auth")

// UserStore persists identities.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter, page id.Page) ([]*models.User, int, error)
	Execute(ctx context.Context, userID id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error)
}

// TokenRevocationList remembers logged-out token IDs until they expire.
type TokenRevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, email string, role string, expiresIn time.Duration) (string, error)
}

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hash string) error
}

// DonorEnroller creates and maintains the donor record linked to a user.
// Enrollment runs inside the registration unit of work with the display id
// reserved before the user is written. SyncIdentity runs inside the profile
// update unit of work.
type DonorEnroller interface {
	ReserveDonorID(ctx context.Context) (string, error)
	EnrollUser(ctx context.Context, user *models.User, displayID string) error
	SyncIdentity(ctx context.Context, user *models.User) error
}

// OwnershipCounter counts records attributed to a user.
type OwnershipCounter interface {
	CountByUser(ctx context.Context, userID id.UserID) (int, error)
}

// ActivityRecorder appends and reads the activity log.
type ActivityRecorder interface {
	Record(ctx context.Context, entry activity.Entry)
	ListByUser(ctx context.Context, userID id.UserID, page id.Page) ([]activity.Entry, int, error)
	ListAll(ctx context.Context, page id.Page) ([]activity.Entry, int, error)
}

const (
	defaultUserLimit     = 10
	defaultActivityLimit = 20
)

// Service owns registration, login and profile management.
type Service struct {
	users    UserStore
	trl      TokenRevocationList
	tokens   TokenIssuer
	hasher   PasswordHasher
	tx       tx.Runner
	donors   DonorEnroller
	activity ActivityRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	TokenTTL time.Duration

	donorCounter   OwnershipCounter
	requestCounter OwnershipCounter
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

func WithDonorEnroller(d DonorEnroller) Option {
	return func(s *Service) {
		s.donors = d
	}
}

// WithProfileCounters supplies the counts shown on a user's profile.
func WithProfileCounters(donors, requests OwnershipCounter) Option {
	return func(s *Service) {
		s.donorCounter = donors
		s.requestCounter = requests
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.TokenTTL = ttl
		}
	}
}

func New(users UserStore, trl TokenRevocationList, tokens TokenIssuer, hasher PasswordHasher, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		users:    users,
		trl:      trl,
		tokens:   tokens,
		hasher:   hasher,
		tx:       runner,
		logger:   slog.Default(),
		TokenTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) record(ctx context.Context, entry activity.Entry) {
	if s.activity != nil {
		s.activity.Record(ctx, entry)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// passOrWrap keeps domain errors and wraps anything else as internal.
func passOrWrap(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) issueToken(user *models.User) (string, error) {
	token, err := s.tokens.GenerateAccessToken(user.ID, user.Email, string(user.Role), s.TokenTTL)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	return token, nil
}
