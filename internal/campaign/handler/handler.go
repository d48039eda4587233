package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lifeflow/internal/campaign/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/httputil"
	"lifeflow/pkg/requestcontext"
)

// Service defines the campaign operations exposed over HTTP.
type Service interface {
	List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Campaign, id.Pagination, error)
	Active(ctx context.Context) ([]*models.Campaign, error)
	Stats(ctx context.Context) ([]models.StatusStats, error)
	Get(ctx context.Context, campaignID id.CampaignID) (*models.Campaign, error)
	Create(ctx context.Context, req *models.CreateCampaignRequest) (*models.Campaign, error)
	UpdateStatus(ctx context.Context, campaignID id.CampaignID, req *models.StatusRequest) (*models.Campaign, error)
	AddDonation(ctx context.Context, campaignID id.CampaignID, req *models.DonationRequest) (*models.Campaign, error)
	AddFeedback(ctx context.Context, campaignID id.CampaignID, req *models.FeedbackRequest) (*models.Campaign, error)
	Complete(ctx context.Context, campaignID id.CampaignID) (*models.Campaign, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/active", h.HandleActive)
		r.Get("/stats", h.HandleStats)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}/status", h.HandleStatus)
		r.Post("/{id}/donations", h.HandleDonation)
		r.Post("/{id}/feedback", h.HandleFeedback)
		r.Post("/{id}/complete", h.HandleComplete)
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

func campaignIDParam(r *http.Request) (id.CampaignID, error) {
	campaignID, err := id.ParseCampaignID(chi.URLParam(r, "id"))
	if err != nil {
		return id.CampaignID{}, dErrors.New(dErrors.CodeBadRequest, "Invalid campaign id")
	}
	return campaignID, nil
}

func decodeTarget[T any](r *http.Request) (id.CampaignID, *T, error) {
	campaignID, err := campaignIDParam(r)
	if err != nil {
		return id.CampaignID{}, nil, err
	}
	body := new(T)
	if err := httputil.DecodeJSON(r, body); err != nil {
		return id.CampaignID{}, nil, err
	}
	return campaignID, body, nil
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, msg string, c *models.Campaign) {
	httputil.WriteJSON(w, status, models.CampaignResponse{
		Message:  msg,
		Campaign: models.NewCampaignView(c, requestcontext.Now(r.Context())),
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	filter := models.ListFilter{
		Status: models.Status(strings.TrimSpace(query.Get("status"))),
		City:   strings.TrimSpace(query.Get("city")),
	}
	page := id.Page{Page: httputil.QueryInt(r, "page", 1), Limit: httputil.QueryInt(r, "limit", 10)}

	campaigns, pagination, err := h.service.List(ctx, filter, page)
	if err != nil {
		h.fail(ctx, w, "failed to list campaigns", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.CampaignList{
		Items:      models.NewCampaignViews(campaigns, requestcontext.Now(ctx)),
		Pagination: pagination,
	})
}

func (h *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaigns, err := h.service.Active(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to list active campaigns", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewCampaignViews(campaigns, requestcontext.Now(ctx)))
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to load campaign stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, err := campaignIDParam(r)
	if err != nil {
		h.fail(ctx, w, "invalid campaign id", err)
		return
	}
	c, err := h.service.Get(ctx, campaignID)
	if err != nil {
		h.fail(ctx, w, "failed to load campaign", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewCampaignView(c, requestcontext.Now(ctx)))
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body models.CreateCampaignRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		h.fail(ctx, w, "invalid create campaign payload", err)
		return
	}
	c, err := h.service.Create(ctx, &body)
	if err != nil {
		h.fail(ctx, w, "failed to create campaign", err)
		return
	}
	h.respond(w, r, http.StatusCreated, "Campaign created successfully", c)
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, body, err := decodeTarget[models.StatusRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid campaign status payload", err)
		return
	}
	c, err := h.service.UpdateStatus(ctx, campaignID, body)
	if err != nil {
		h.fail(ctx, w, "failed to update campaign status", err)
		return
	}
	h.respond(w, r, http.StatusOK, "Campaign status updated successfully", c)
}

func (h *Handler) HandleDonation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, body, err := decodeTarget[models.DonationRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid campaign donation payload", err)
		return
	}
	c, err := h.service.AddDonation(ctx, campaignID, body)
	if err != nil {
		h.fail(ctx, w, "failed to record campaign donation", err)
		return
	}
	h.respond(w, r, http.StatusOK, "Donation added successfully", c)
}

func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, body, err := decodeTarget[models.FeedbackRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid feedback payload", err)
		return
	}
	c, err := h.service.AddFeedback(ctx, campaignID, body)
	if err != nil {
		h.fail(ctx, w, "failed to record feedback", err)
		return
	}
	h.respond(w, r, http.StatusOK, "Feedback added successfully", c)
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	campaignID, err := campaignIDParam(r)
	if err != nil {
		h.fail(ctx, w, "invalid campaign id", err)
		return
	}
	c, err := h.service.Complete(ctx, campaignID)
	if err != nil {
		h.fail(ctx, w, "failed to complete campaign", err)
		return
	}
	h.respond(w, r, http.StatusOK, "Campaign completed successfully", c)
}
