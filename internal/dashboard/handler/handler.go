package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifeflow/internal/dashboard/models"
	"lifeflow/pkg/platform/httputil"
	"lifeflow/pkg/requestcontext"
)

// DegradedHeader flags responses built from the demonstration dataset.
const DegradedHeader = "X-Degraded"

type Service interface {
	Stats(ctx context.Context) (*models.Stats, error)
	RecentActivity(ctx context.Context) (*models.RecentActivity, error)
	BloodDistribution(ctx context.Context) (*models.Distribution, error)
	DonationTrends(ctx context.Context, months int) (*models.Trends, error)
	Reports(ctx context.Context) (*models.Report, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/stats", h.HandleStats)
		r.Get("/activity", h.HandleActivity)
		r.Get("/blood-distribution", h.HandleDistribution)
		r.Get("/donation-trends", h.HandleTrends)
	})
	r.Get("/reports", h.HandleReports)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to aggregate dashboard stats", err)
		return
	}
	if stats.Degraded {
		w.Header().Set(DegradedHeader, "true")
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	feed, err := h.service.RecentActivity(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to load recent activity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feed)
}

func (h *Handler) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dist, err := h.service.BloodDistribution(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to load blood distribution", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dist)
}

func (h *Handler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trends, err := h.service.DonationTrends(ctx, httputil.QueryInt(r, "months", 0))
	if err != nil {
		h.fail(ctx, w, "failed to load donation trends", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trends)
}

func (h *Handler) HandleReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.service.Reports(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to build reports", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ReportResponse{Reports: *report})
}
