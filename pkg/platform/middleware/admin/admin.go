package admin

import (
	"log/slog"
	"net/http"
	"slices"

	"lifeflow/pkg/requestcontext"
)

// RequireRole lets the request through only when the authenticated role is one
// of roles. It must run after auth.RequireAuth.
func RequireRole(logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	message := "Insufficient permissions"
	if len(roles) == 1 && roles[0] == "admin" {
		message = "Admin access required"
	}
	body := []byte(`{"error":"forbidden","error_description":"` + message + `"}`)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := requestcontext.Role(ctx)
			if !slices.Contains(roles, role) {
				logger.WarnContext(ctx, "role check failed",
					"role", role,
					"required", roles,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write(body)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
