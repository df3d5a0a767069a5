package httpx

import (
	"errors"
	"net/http"

	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

// RespondError maps taxonomy errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	detail := shared.UserSafeMessage(err)
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", detail)
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", detail)
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", detail)
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", detail)
	case errors.Is(err, shared.ErrState):
		Problem(w, http.StatusUnprocessableEntity, "Invalid State", detail)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
