package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lifeflow/internal/donor/models"
	id "lifeflow/pkg/domain"
	dErrors "lifeflow/pkg/domain-errors"
	"lifeflow/pkg/platform/httputil"
	"lifeflow/pkg/requestcontext"
)

// Service defines the donor operations exposed over HTTP.
type Service interface {
	List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Donor, id.Pagination, error)
	Get(ctx context.Context, donorID id.DonorID) (*models.DonorView, error)
	Create(ctx context.Context, req *models.CreateDonorRequest) (*models.DonorView, error)
	Update(ctx context.Context, donorID id.DonorID, patch *models.UpdateDonorRequest) (*models.DonorView, error)
	UpdateEligibility(ctx context.Context, donorID id.DonorID, req *models.EligibilityRequest) (*models.DonorView, error)
	Delete(ctx context.Context, donorID id.DonorID) error
	RecordDonation(ctx context.Context, donorID id.DonorID, req *models.RecordDonationRequest) (*models.DonorView, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the donor routes behind the caller's auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Route("/donors", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/stats", h.HandleStats)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Put("/{id}/eligibility", h.HandleEligibility)
		r.Post("/{id}/donations", h.HandleRecordDonation)
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

func donorIDParam(r *http.Request) (id.DonorID, error) {
	donorID, err := id.ParseDonorID(chi.URLParam(r, "id"))
	if err != nil {
		return id.DonorID{}, dErrors.New(dErrors.CodeBadRequest, "Invalid donor id")
	}
	return donorID, nil
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := models.ListFilter{
		BloodType:   id.BloodType(strings.ToUpper(strings.TrimSpace(q.Get("bloodType")))),
		Eligibility: models.EligibilityStatus(strings.TrimSpace(q.Get("eligibilityStatus"))),
		Search:      strings.TrimSpace(q.Get("search")),
	}
	page := id.Page{Page: httputil.QueryInt(r, "page", 1), Limit: httputil.QueryInt(r, "limit", 10)}

	donors, pagination, err := h.service.List(ctx, filter, page)
	if err != nil {
		h.fail(ctx, w, "failed to list donors", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.DonorList{
		Items:      models.NewDonorViews(donors, requestcontext.Now(ctx)),
		Pagination: pagination,
	})
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to load donor stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, err := donorIDParam(r)
	if err != nil {
		h.fail(ctx, w, "invalid donor id", err)
		return
	}
	v, err := h.service.Get(ctx, donorID)
	if err != nil {
		h.fail(ctx, w, "failed to load donor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateDonorRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(ctx, w, "invalid create donor request", err)
		return
	}
	v, err := h.service.Create(ctx, &req)
	if err != nil {
		h.fail(ctx, w, "failed to create donor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.DonorResponse{Message: "Donor created successfully", Donor: *v})
}

// decodeTarget reads the donor id path parameter and the body.
func decodeTarget[T any](r *http.Request) (id.DonorID, *T, error) {
	donorID, err := donorIDParam(r)
	if err != nil {
		return id.DonorID{}, nil, err
	}
	body := new(T)
	if err := httputil.DecodeJSON(r, body); err != nil {
		return id.DonorID{}, nil, err
	}
	return donorID, body, nil
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, patch, err := decodeTarget[models.UpdateDonorRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid update donor request", err)
		return
	}
	v, err := h.service.Update(ctx, donorID, patch)
	if err != nil {
		h.fail(ctx, w, "failed to update donor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.DonorResponse{Message: "Donor updated successfully", Donor: *v})
}

func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, req, err := decodeTarget[models.EligibilityRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid eligibility request", err)
		return
	}
	v, err := h.service.UpdateEligibility(ctx, donorID, req)
	if err != nil {
		h.fail(ctx, w, "failed to update donor eligibility", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.DonorResponse{Message: "Donor eligibility updated successfully", Donor: *v})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, err := donorIDParam(r)
	if err != nil {
		h.fail(ctx, w, "invalid donor id", err)
		return
	}
	if err := h.service.Delete(ctx, donorID); err != nil {
		h.fail(ctx, w, "failed to delete donor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.MessageResponse{Message: "Donor deleted successfully"})
}

func (h *Handler) HandleRecordDonation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, req, err := decodeTarget[models.RecordDonationRequest](r)
	if err != nil {
		h.fail(ctx, w, "invalid donation request", err)
		return
	}
	v, err := h.service.RecordDonation(ctx, donorID, req)
	if err != nil {
		h.fail(ctx, w, "failed to record donation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.DonorResponse{Message: "Donation recorded successfully", Donor: *v})
}
