package booking

import (
	"github.com/atlas-journeys/atlas-journeys/internal/identity"
)

// CreateInput carries a booking request. Dates use YYYY-MM-DD.
type CreateInput struct {
	UnitID          int64  `json:"unit_id" validate:"required,gt=0"`
	RenterID        int64  `json:"renter_id" validate:"required,gt=0"`
	CheckIn         string `json:"check_in" validate:"required"`
	CheckOut        string `json:"check_out" validate:"required"`
	Guests          int    `json:"guests" validate:"required,gt=0"`
	SpecialRequests string `json:"special_requests" validate:"max=1000"`
}

// ConfirmInput carries the owner's acceptance.
type ConfirmInput struct {
	OwnerID       int64  `json:"owner_id" validate:"required,gt=0"`
	OwnerResponse string `json:"owner_response" validate:"max=1000"`
}

// RejectInput carries the owner's refusal.
type RejectInput struct {
	OwnerID int64  `json:"owner_id" validate:"required,gt=0"`
	Reason  string `json:"reason" validate:"max=1000"`
}

// CancelInput carries a cancellation from either party.
type CancelInput struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"max=1000"`
}

// View is a booking enriched with display data for the read path.
type View struct {
	Booking
	UnitName string            `json:"unit_name,omitempty"`
	Renter   *identity.Profile `json:"renter,omitempty"`
	Owner    *identity.Profile `json:"owner,omitempty"`
}
