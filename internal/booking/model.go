package booking

import (
	"time"

	"github.com/atlas-journeys/atlas-journeys/internal/availability"
	"github.com/atlas-journeys/atlas-journeys/internal/pricing"
)

// Status is the lifecycle state of a booking.
type Status string

// Lifecycle states. A pending booking is a hold: it reserves priority but
// does not occupy the availability ledger until confirmed.
const (
	StatusPending           Status = "pending"
	StatusConfirmed         Status = "confirmed"
	StatusRejected          Status = "rejected"
	StatusExpired           Status = "expired"
	StatusCancelledByRenter Status = "cancelled_by_renter"
	StatusCancelledByOwner  Status = "cancelled_by_owner"
	StatusCompleted         Status = "completed"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusExpired, StatusCancelledByRenter, StatusCancelledByOwner},
	StatusConfirmed: {StatusCancelledByRenter, StatusCancelledByOwner, StatusCompleted},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves the state.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// PaymentStatus tracks the provider-side outcome. It never gates a
// lifecycle transition.
type PaymentStatus string

// Payment states.
const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentCharged  PaymentStatus = "charged"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Booking is a reservation request for a unit. Pricing is snapshotted at
// creation; terminal records are immutable.
type Booking struct {
	ID              int64                  `json:"id"`
	Reference       string                 `json:"reference"`
	UnitID          int64                  `json:"unit_id"`
	RenterID        int64                  `json:"renter_id"`
	OwnerID         int64                  `json:"owner_id"`
	Range           availability.DateRange `json:"range"`
	Guests          int                    `json:"guests"`
	SpecialRequests string                 `json:"special_requests,omitempty"`
	Status          Status                 `json:"status"`
	Pricing         pricing.Breakdown      `json:"pricing"`
	Currency        string                 `json:"currency"`
	PaymentStatus   PaymentStatus          `json:"payment_status"`
	TransactionRef  string                 `json:"transaction_ref,omitempty"`
	OwnerResponse   string                 `json:"owner_response,omitempty"`
	RejectReason    string                 `json:"reject_reason,omitempty"`
	CancelReason    string                 `json:"cancel_reason,omitempty"`
	CancellationFee float64                `json:"cancellation_fee"`
	RefundAmount    float64                `json:"refund_amount"`
	RequestedAt     time.Time              `json:"requested_at"`
	ExpiresAt       time.Time              `json:"expires_at"`
	ConfirmedAt     *time.Time             `json:"confirmed_at,omitempty"`
	RejectedAt      *time.Time             `json:"rejected_at,omitempty"`
	CancelledAt     *time.Time             `json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Role of a caller relative to a booking.
type Role string

// Caller roles.
const (
	RoleRenter Role = "renter"
	RoleOwner  Role = "owner"
)

// RoleOf returns the caller's role on this booking, or "" for strangers.
func (b *Booking) RoleOf(userID int64) Role {
	switch userID {
	case b.RenterID:
		return RoleRenter
	case b.OwnerID:
		return RoleOwner
	default:
		return ""
	}
}
