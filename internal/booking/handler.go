package booking

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atlas-journeys/atlas-journeys/internal/availability"
	"github.com/atlas-journeys/atlas-journeys/internal/platform/httpx"
	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

// Handler exposes the booking lifecycle over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/cancel", h.cancel)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		availability.RespondError(w, fmt.Errorf("%w: invalid payload", shared.ErrValidation))
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		if _, err := uuid.Parse(key); err != nil {
			availability.RespondError(w, fmt.Errorf("%w: Idempotency-Key must be a UUID", shared.ErrValidation))
			return
		}
	}
	b, err := h.service.Create(r.Context(), input, key)
	if err != nil {
		availability.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		availability.RespondError(w, err)
		return
	}
	requesterID, _ := strconv.ParseInt(r.URL.Query().Get("requester_id"), 10, 64)
	view, err := h.service.Get(r.Context(), id, requesterID)
	if err != nil {
		availability.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, _ := strconv.ParseInt(q.Get("user_id"), 10, 64)
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	f := ListFilter{
		Role:    Role(q.Get("role")),
		UserID:  userID,
		Status:  Status(q.Get("status")),
		Page:    page,
		PerPage: perPage,
	}
	items, pagination, err := h.service.List(r.Context(), f)
	if err != nil {
		availability.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Booking{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": pagination})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		availability.RespondError(w, err)
		return
	}
	var input ConfirmInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		availability.RespondError(w, fmt.Errorf("%w: invalid payload", shared.ErrValidation))
		return
	}
	b, err := h.service.Confirm(r.Context(), id, input)
	if err != nil {
		availability.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		availability.RespondError(w, err)
		return
	}
	var input RejectInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		availability.RespondError(w, fmt.Errorf("%w: invalid payload", shared.ErrValidation))
		return
	}
	b, err := h.service.Reject(r.Context(), id, input)
	if err != nil {
		availability.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		availability.RespondError(w, err)
		return
	}
	var input CancelInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		availability.RespondError(w, fmt.Errorf("%w: invalid payload", shared.ErrValidation))
		return
	}
	b, err := h.service.Cancel(r.Context(), id, input)
	if err != nil {
		availability.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid booking id", shared.ErrValidation)
	}
	return id, nil
}
