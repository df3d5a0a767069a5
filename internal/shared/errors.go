package shared

import "errors"

// Engine-wide error taxonomy. Domain packages wrap these sentinels so
// callers can classify failures with errors.Is regardless of which
// component raised them.
var (
	// ErrValidation indicates malformed input (date ordering, guest count,
	// duration bounds). Never retried, surfaced directly to the caller.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced unit, booking, or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller is neither the booking's renter nor owner.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a date overlap, or that a competing confirmation
	// already won.
	ErrConflict = errors.New("conflict")
	// ErrState indicates an illegal lifecycle transition was attempted.
	ErrState = errors.New("invalid state transition")
)

// UserSafeMessage returns a message safe to surface to end users. Wrapped
// taxonomy errors keep their full chain text; anything else is masked.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrState):
		return err.Error()
	default:
		return "internal error"
	}
}
