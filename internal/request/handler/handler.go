package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lifeflow/internal/request/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/httputil"
	"lifeflow/pkg/requestcontext"
)

// Service defines the request operations exposed over HTTP.
type Service interface {
	List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Request, id.Pagination, error)
	Urgent(ctx context.Context) ([]*models.Request, error)
	Get(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	Create(ctx context.Context, req *models.CreateRequestRequest) (*models.Request, error)
	Update(ctx context.Context, requestID id.RequestID, patch *models.UpdateRequestRequest) (*models.Request, error)
	UpdateStatus(ctx context.Context, requestID id.RequestID, req *models.StatusRequest) (*models.Request, error)
	AssignUnits(ctx context.Context, requestID id.RequestID, req *models.AssignRequest) (*models.Request, error)
	Cancel(ctx context.Context, requestID id.RequestID, req *models.CancelRequest) (*models.Request, error)
	Delete(ctx context.Context, requestID id.RequestID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/requests", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/urgent", h.HandleUrgent)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Put("/{id}/status", h.HandleStatus)
		r.Post("/{id}/assign", h.HandleAssign)
		r.Post("/{id}/cancel", h.HandleCancel)
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

func requestIDParam(r *http.Request) (id.RequestID, error) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		return id.RequestID{}, dErrors.New(dErrors.CodeBadRequest, "Invalid request id")
	}
	return requestID, nil
}

func decodeTarget[T any](r *http.Request) (id.RequestID, *T, error) {
	requestID, err := requestIDParam(r)
	if err != nil {
		return id.RequestID{}, nil, err
	}
	body := new(T)
	if err := httputil.DecodeJSON(r, body); err != nil {
		return id.RequestID{}, nil, err
	}
	return requestID, body, nil
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, msg string, req *models.Request) {
	httputil.WriteJSON(w, status, models.RequestResponse{
		Message: msg,
		Request: models.NewRequestView(req, requestcontext.Now(r.Context())),
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := models.ListFilter{
		Status:    models.Status(strings.TrimSpace(q.Get("status"))),
		Priority:  models.Priority(strings.TrimSpace(q.Get("priority"))),
		BloodType: id.BloodType(strings.ToUpper(strings.TrimSpace(q.Get("bloodType")))),
		Search:    strings.TrimSpace(q.Get("search")),
	}
	page := id.Page{Page: httputil.QueryInt(r, "page", 1), Limit: httputil.QueryInt(r, "limit", 10)}

	requests, pagination, err := h.service.List(ctx, filter, page)
	if err != nil {
		h.fail(ctx, w, "failed to list requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.RequestList{
		Items:      models.NewRequestViews(requests, requestcontext.Now(ctx)),
		Pagination: pagination,
	})
}

func (h *Handler) HandleUrgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requests, err := h.service.Urgent(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to list urgent requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewRequestViews(requests, requestcontext.Now(ctx)))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDParam(r)
	if err != nil {
		h.fail(ctx, w, "invalid request id", err)
		return
	}
	req, err := h.service.Get(ctx, requestID)
	if err != nil {
		h.fail(ctx, w, "failed to load request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewRequestView(req, requestcontext.Now(ctx)))
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body models.CreateRequestRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.fail(ctx, w, "invalid create request payload", err)
		return
	}
	req, err := h.service.Create(ctx, &body)
	if err != nil {
		h.fail(ctx, w, "failed to create request", err)
		return
	}
	h.respond(w, r, http.StatusCreated, "Request created successfully", req)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, patch, err := decodeTarget[models.UpdateRequestRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid update request payload", err)
		return
	}
	req, err := h.service.Update(ctx, requestID, patch)
	if err != nil {
		h.fail(ctx, w, "failed to update request", err)
		return
	}
	h.respond(w, r, http.StatusOK, "Request updated successfully", req)
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, body, err := decodeTarget[models.StatusRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid status payload", err)
		return
	}
	req, err := h.service.UpdateStatus(ctx, requestID, body)
	if err != nil {
		h.fail(ctx, w, "failed to update request status", err)
		return
	}
	h.respond(w, r, http.StatusOK, "Request status updated successfully", req)
}

func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, body, err := decodeTarget[models.AssignRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid assign payload", err)
		return
	}
	req, err := h.service.AssignUnits(ctx, requestID, body)
	if err != nil {
		h.fail(ctx, w, "failed to assign units", err)
		return
	}
	h.respond(w, r, http.StatusOK, "Units assigned successfully", req)
}

// HandleCancel accepts an empty body.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDParam(r)
	if err != nil {
		h.fail(ctx, w, "invalid request id", err)
		return
	}
	var body models.CancelRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &body); err != nil {
			h.fail(ctx, w, "invalid cancel payload", err)
			return
		}
	}
	req, err := h.service.Cancel(ctx, requestID, &body)
	if err != nil {
		h.fail(ctx, w, "failed to cancel request", err)
		return
	}
	h.respond(w, r, http.StatusOK, "Request cancelled successfully", req)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := requestIDParam(r)
	if err != nil {
		h.fail(ctx, w, "invalid request id", err)
		return
	}
	if err := h.service.Delete(ctx, requestID); err != nil {
		h.fail(ctx, w, "failed to delete request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.MessageResponse{Message: "Request deleted successfully"})
}
