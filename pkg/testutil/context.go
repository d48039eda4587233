package testutil

import (
	"net/http"
	"time"

	id "lifeflow/pkg/domain"
	"lifeflow/pkg/requestcontext"
)

// WithPrincipal attaches the caller the auth middleware would have resolved,
// for handlers mounted without it.
func WithPrincipal(req *http.Request, userID id.UserID, role string) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), requestcontext.Principal{
		UserID:    userID,
		Email:     role + "@lifeflow.test",
		Role:      role,
		TokenID:   "test-jti",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	return req.WithContext(ctx)
}
