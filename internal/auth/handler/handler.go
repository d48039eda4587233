package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"lifeflow/internal/auth/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/httputil"
	adminmw "lifeflow/pkg/platform/middleware/admin"
	"lifeflow/pkg/requestcontext"
)

// Service defines the identity operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResult, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResult, error)
	Logout(ctx context.Context, userID id.UserID, jti string, expiresAt time.Time) error
	Profile(ctx context.Context, userID id.UserID) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID id.UserID, patch *models.ProfilePatch) (*models.User, error)
	ChangePassword(ctx context.Context, userID id.UserID, req *models.ChangePasswordRequest) error
	Activities(ctx context.Context, userID id.UserID, role models.Role, page id.Page) (*models.ActivityList, error)
	ListUsers(ctx context.Context, filter models.UserFilter, page id.Page) (*models.UserList, error)
	UpdateUser(ctx context.Context, userID id.UserID, patch *models.AdminUserPatch) (*models.User, error)
	UpdateRole(ctx context.Context, userID id.UserID, req *models.UpdateRoleRequest) (*models.User, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the routes reachable without a token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
}

// Register mounts the token-protected routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/auth/profile", h.HandleProfile)
	r.Put("/auth/profile", h.HandleUpdateProfile)
	r.Put("/auth/change-password", h.HandleChangePassword)
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/auth/activities", h.HandleActivities)
	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireRole(h.logger, string(models.RoleAdmin)))
		r.Get("/auth/users", h.HandleListUsers)
		r.Put("/auth/users/{id}", h.HandleUpdateUser)
		r.Put("/auth/users/{id}/role", h.HandleUpdateRole)
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid register request", err)
		return
	}
	res, err := h.service.Register(ctx, &req)
	if err != nil {
		h.fail(ctx, w, "registration failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid login request", err)
		return
	}
	res, err := h.service.Login(ctx, &req)
	if err != nil {
		h.fail(ctx, w, "login failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.service.Profile(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to load profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var patch models.ProfilePatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		h.fail(ctx, w, "invalid profile update", err)
		return
	}
	user, err := h.service.UpdateProfile(ctx, requestcontext.UserID(ctx), &patch)
	if err != nil {
		h.fail(ctx, w, "failed to update profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.UserResponse{Message: "Profile updated successfully", User: user})
}

func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.ChangePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid change password request", err)
		return
	}
	if err := h.service.ChangePassword(ctx, requestcontext.UserID(ctx), &req); err != nil {
		h.fail(ctx, w, "failed to change password", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.MessageResponse{Message: "Password changed successfully"})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := requestcontext.PrincipalFrom(ctx)
	if err := h.service.Logout(ctx, p.UserID, p.TokenID, p.ExpiresAt); err != nil {
		h.fail(ctx, w, "logout failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.MessageResponse{Message: "Logged out successfully"})
}

func pageFrom(r *http.Request, defaultLimit int) id.Page {
	return id.Page{Page: httputil.QueryInt(r, "page", 1), Limit: httputil.QueryInt(r, "limit", defaultLimit)}
}

func (h *Handler) HandleActivities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.service.Activities(ctx, requestcontext.UserID(ctx), models.Role(requestcontext.Role(ctx)), pageFrom(r, 20))
	if err != nil {
		h.fail(ctx, w, "failed to load activities", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := models.UserFilter{
		Role:   models.Role(strings.ToLower(strings.TrimSpace(q.Get("role")))),
		Search: q.Get("search"),
	}
	list, err := h.service.ListUsers(ctx, filter, pageFrom(r, 10))
	if err != nil {
		h.fail(ctx, w, "failed to list users", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func userIDParam(r *http.Request) (id.UserID, error) {
	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeBadRequest, "Invalid user id")
	}
	return userID, nil
}

func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		h.fail(ctx, w, "invalid user id", err)
		return
	}
	var patch models.AdminUserPatch
	if err := httputil.DecodeJSON(r, &patch); err != nil {
		h.fail(ctx, w, "invalid user update", err)
		return
	}
	user, err := h.service.UpdateUser(ctx, userID, &patch)
	if err != nil {
		h.fail(ctx, w, "failed to update user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.UserResponse{Message: "User updated successfully", User: user})
}

func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		h.fail(ctx, w, "invalid user id", err)
		return
	}
	var req models.UpdateRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid role update", err)
		return
	}
	user, err := h.service.UpdateRole(ctx, userID, &req)
	if err != nil {
		h.fail(ctx, w, "failed to update user role", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.UserResponse{Message: "User role updated successfully", User: user})
}
