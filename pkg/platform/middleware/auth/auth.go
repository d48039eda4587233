package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	id "lifeflow/pkg/domain"
	"lifeflow/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// TokenRevocationChecker reports whether a token id was revoked at logout.
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// Claims represents the claims we expect from the token validator.
type Claims struct {
	UserID    string
	Email     string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a bearer token (401) and requests whose
// token is invalid, expired or revoked (403). On success the caller is placed
// in the context as a requestcontext.Principal.
func RequireAuth(validator TokenValidator, revocationChecker TokenRevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Access token required")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "forbidden access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Invalid or expired token")
				return
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "forbidden access - malformed subject",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Invalid or expired token")
				return
			}

			if revocationChecker != nil && claims.JTI != "" {
				revoked, err := revocationChecker.IsTokenRevoked(ctx, claims.JTI)
				if err != nil {
					logger.ErrorContext(ctx, "failed to check token revocation",
						"error", err,
						"request_id", requestID,
					)
					writeJSONError(w, http.StatusServiceUnavailable, "unavailable", "Failed to validate token")
					return
				}
				if revoked {
					logger.WarnContext(ctx, "forbidden access - token revoked",
						"jti", claims.JTI,
						"request_id", requestID,
					)
					writeJSONError(w, http.StatusForbidden, "forbidden", "Invalid or expired token")
					return
				}
			}

			ctx = requestcontext.WithPrincipal(ctx, requestcontext.Principal{
				UserID:    userID,
				Email:     claims.Email,
				Role:      claims.Role,
				TokenID:   claims.JTI,
				ExpiresAt: claims.ExpiresAt,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
