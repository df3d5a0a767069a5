package availability

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atlas-journeys/atlas-journeys/internal/platform/httpx"
	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

// ConflictProblem extends the problem document with the committed range the
// request collided with.
type ConflictProblem struct {
	httpx.ProblemDetail
	ConflictingRange DateRange `json:"conflicting_range"`
	Source           string    `json:"source"`
}

// RespondError writes a taxonomy error, attaching the conflicting range
// when the error carries one.
func RespondError(w http.ResponseWriter, err error) {
	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		httpx.JSON(w, http.StatusConflict, ConflictProblem{
			ProblemDetail: httpx.ProblemDetail{
				Title:  "Conflict",
				Status: http.StatusConflict,
				Detail: conflictErr.Error(),
			},
			ConflictingRange: conflictErr.Conflict.Range,
			Source:           conflictErr.Conflict.Source,
		})
		return
	}
	httpx.RespondError(w, err)
}

// Handler exposes availability queries and blackout management.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountUnitRoutes registers the per-unit routes.
func (h *Handler) MountUnitRoutes(r chi.Router) {
	r.Get("/{id}/availability", h.check)
	r.Get("/{id}/calendar", h.calendar)
	r.Post("/{id}/blackouts", h.addBlackout)
	r.Get("/{id}/blackouts", h.listBlackouts)
}

// MountBlackoutRoutes registers the blackout routes.
func (h *Handler) MountBlackoutRoutes(r chi.Router) {
	r.Delete("/{id}", h.removeBlackout)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	unitID, rng, err := unitAndRange(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	err = h.service.Check(r.Context(), unitID, rng)
	var conflictErr *ConflictError
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, map[string]any{"available": true})
	case errors.As(err, &conflictErr):
		httpx.JSON(w, http.StatusOK, map[string]any{
			"available":         false,
			"conflicting_range": conflictErr.Conflict.Range,
			"source":            conflictErr.Conflict.Source,
		})
	default:
		h.logger.Error("availability check failed", slog.Int64("unit_id", unitID), slog.Any("error", err))
		RespondError(w, err)
	}
}

func (h *Handler) calendar(w http.ResponseWriter, r *http.Request) {
	unitID, rng, err := unitAndRange(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	window, err := h.service.GetWindow(r.Context(), unitID, rng)
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, window)
}

func (h *Handler) addBlackout(w http.ResponseWriter, r *http.Request) {
	unitID, err := idParam(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req struct {
		OwnerID int64  `json:"owner_id"`
		Start   string `json:"start"`
		End     string `json:"end"`
		Reason  string `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		RespondError(w, fmt.Errorf("%w: invalid payload", shared.ErrValidation))
		return
	}
	rng, err := ParseDateRange(req.Start, req.End)
	if err != nil {
		RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	b, err := h.service.AddBlackout(r.Context(), req.OwnerID, unitID, rng, req.Reason)
	if err != nil {
		RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) listBlackouts(w http.ResponseWriter, r *http.Request) {
	unitID, err := idParam(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	blackouts, err := h.service.ListBlackouts(r.Context(), unitID)
	if err != nil {
		RespondError(w, err)
		return
	}
	if blackouts == nil {
		blackouts = []BlackoutRange{}
	}
	httpx.JSON(w, http.StatusOK, blackouts)
}

func (h *Handler) removeBlackout(w http.ResponseWriter, r *http.Request) {
	blackoutID, err := idParam(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	actorID, _ := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err := h.service.RemoveBlackout(r.Context(), actorID, blackoutID); err != nil {
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", shared.ErrValidation, name)
	}
	return id, nil
}

func unitAndRange(r *http.Request) (int64, DateRange, error) {
	unitID, err := idParam(r, "id")
	if err != nil {
		return 0, DateRange{}, err
	}
	rng, err := ParseDateRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		return 0, DateRange{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return unitID, rng, nil
}
