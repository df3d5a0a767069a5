package catalog

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-journeys/atlas-journeys/internal/platform/httpx"
	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

// Handler exposes unit registration and lookup over HTTP.
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
	r.Post("/", h.register)
	r.Get("/", h.listByOwner)
	r.Get("/{id}", h.get)
	r.Post("/{id}/deactivate", h.deactivate)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var input UnitInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid payload", shared.ErrValidation))
		return
	}
	unit, err := h.service.Register(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, unit)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid unit id", shared.ErrValidation))
		return
	}
	unit, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

func (h *Handler) listByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, err := strconv.ParseInt(r.URL.Query().Get("owner_id"), 10, 64)
	if err != nil || ownerID <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: owner_id required", shared.ErrValidation))
		return
	}
	units, err := h.service.ListByOwner(r.Context(), ownerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if units == nil {
		units = []Unit{}
	}
	httpx.JSON(w, http.StatusOK, units)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid unit id", shared.ErrValidation))
		return
	}
	var req struct {
		OwnerID int64 `json:"owner_id"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid payload", shared.ErrValidation))
		return
	}
	if err := h.service.Deactivate(r.Context(), req.OwnerID, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
