package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lifeflow/internal/inventory/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/httputil"
	adminmw "lifeflow/pkg/platform/middleware/admin"
	"lifeflow/pkg/requestcontext"
	"lifeflow/pkg/validation"
)

// Service defines the inventory operations exposed over HTTP.
type Service interface {
	AddUnits(ctx context.Context, req *models.AddUnitsRequest) ([]*models.Unit, error)
	Get(ctx context.Context, unitID id.UnitID) (*models.Unit, error)
	ListAvailable(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Unit, id.Pagination, error)
	Summary(ctx context.Context) ([]models.TypeSummary, error)
	ExpiringSoon(ctx context.Context, days int) ([]*models.Unit, error)
	Reserve(ctx context.Context, unitID id.UnitID, requestID id.RequestID) (*models.Unit, error)
	Issue(ctx context.Context, unitID id.UnitID, requestID id.RequestID) (*models.Unit, error)
	Return(ctx context.Context, unitID id.UnitID, reason string) (*models.Unit, error)
	Discard(ctx context.Context, unitID id.UnitID, reason string) (*models.Unit, error)
	ExpireOverdue(ctx context.Context) (int, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the inventory routes. Callers place it behind the auth
// middleware.
func (h *Handler) Register(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleAdd)
		r.Get("/summary", h.HandleSummary)
		r.Get("/expiring", h.HandleExpiring)
		r.With(adminmw.RequireRole(h.logger, "admin")).Post("/expire", h.HandleExpire)
		r.Get("/{id}", h.HandleGet)
		r.Post("/{id}/reserve", h.HandleReserve)
		r.Post("/{id}/issue", h.HandleIssue)
		r.Post("/{id}/return", h.HandleReturn)
		r.Post("/{id}/discard", h.HandleDiscard)
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

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := models.ListFilter{
		BloodType: id.BloodType(strings.ToUpper(strings.TrimSpace(q.Get("bloodType")))),
		Location:  models.Location(q.Get("location")),
	}
	page := id.Page{Page: httputil.QueryInt(r, "page", 1), Limit: httputil.QueryInt(r, "limit", 10)}

	units, pagination, err := h.service.ListAvailable(ctx, filter, page)
	if err != nil {
		h.fail(ctx, w, "failed to list inventory", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.UnitList{
		Items:      models.NewUnitViews(units, requestcontext.Now(ctx)),
		Pagination: pagination,
	})
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.AddUnitsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid add inventory request", err)
		return
	}
	units, err := h.service.AddUnits(ctx, &req)
	if err != nil {
		h.fail(ctx, w, "failed to add inventory", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.AddUnitsResponse{
		Message: "Blood inventory added successfully",
		Units:   models.NewUnitViews(units, requestcontext.Now(ctx)),
	})
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.service.Summary(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to summarize inventory", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleExpiring(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	units, err := h.service.ExpiringSoon(ctx, httputil.QueryInt(r, "days", 7))
	if err != nil {
		h.fail(ctx, w, "failed to list expiring inventory", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewUnitViews(units, requestcontext.Now(ctx)))
}

func (h *Handler) HandleExpire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.service.ExpireOverdue(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to expire inventory", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ExpireResult{Expired: n})
}

func unitIDParam(r *http.Request) (id.UnitID, error) {
	unitID, err := id.ParseUnitID(chi.URLParam(r, "id"))
	if err != nil {
		return id.UnitID{}, dErrors.New(dErrors.CodeBadRequest, "Invalid blood unit id")
	}
	return unitID, nil
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unitID, err := unitIDParam(r)
	if err != nil {
		h.fail(ctx, w, "invalid blood unit id", err)
		return
	}
	u, err := h.service.Get(ctx, unitID)
	if err != nil {
		h.fail(ctx, w, "failed to load blood unit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewUnitView(u, requestcontext.Now(ctx)))
}

// decodeTarget reads the unit id path parameter and a validated body.
func decodeTarget[T any](r *http.Request) (id.UnitID, *T, error) {
	unitID, err := unitIDParam(r)
	if err != nil {
		return id.UnitID{}, nil, err
	}
	body := new(T)
	if err := httputil.DecodeJSON(r, body); err != nil {
		return id.UnitID{}, nil, err
	}
	if err := validation.Struct(body); err != nil {
		return id.UnitID{}, nil, err
	}
	return unitID, body, nil
}

func parseRequestID(raw string) (id.RequestID, error) {
	requestID, err := id.ParseRequestID(raw)
	if err != nil {
		return id.RequestID{}, dErrors.New(dErrors.CodeValidation, "Invalid request id")
	}
	return requestID, nil
}

func (h *Handler) writeUnit(ctx context.Context, w http.ResponseWriter, u *models.Unit) {
	httputil.WriteJSON(w, http.StatusOK, models.NewUnitView(u, requestcontext.Now(ctx)))
}

func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unitID, body, err := decodeTarget[models.ReserveRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid reserve request", err)
		return
	}
	requestID, err := parseRequestID(body.RequestID)
	if err != nil {
		h.fail(ctx, w, "invalid reserve request", err)
		return
	}
	u, err := h.service.Reserve(ctx, unitID, requestID)
	if err != nil {
		h.fail(ctx, w, "failed to reserve blood unit", err)
		return
	}
	h.writeUnit(ctx, w, u)
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unitID, body, err := decodeTarget[models.IssueRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid issue request", err)
		return
	}
	requestID, err := parseRequestID(body.RequestID)
	if err != nil {
		h.fail(ctx, w, "invalid issue request", err)
		return
	}
	u, err := h.service.Issue(ctx, unitID, requestID)
	if err != nil {
		h.fail(ctx, w, "failed to issue blood unit", err)
		return
	}
	h.writeUnit(ctx, w, u)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unitID, body, err := decodeTarget[models.ReasonRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid return request", err)
		return
	}
	u, err := h.service.Return(ctx, unitID, strings.TrimSpace(body.Reason))
	if err != nil {
		h.fail(ctx, w, "failed to return blood unit", err)
		return
	}
	h.writeUnit(ctx, w, u)
}

func (h *Handler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unitID, body, err := decodeTarget[models.ReasonRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid discard request", err)
		return
	}
	u, err := h.service.Discard(ctx, unitID, strings.TrimSpace(body.Reason))
	if err != nil {
		h.fail(ctx, w, "failed to discard blood unit", err)
		return
	}
	h.writeUnit(ctx, w, u)
}
