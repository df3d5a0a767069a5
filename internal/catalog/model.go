package catalog

import "time"

// Unit is a rentable listing. Pricing fields are snapshotted into bookings at
// creation time, so edits here never rewrite an existing breakdown.
type Unit struct {
	ID              int64     `json:"id"`
	OwnerID         int64     `json:"owner_id"`
	Name            string    `json:"name"`
	Location        string    `json:"location"`
	Capacity        int       `json:"capacity"`
	NightlyPrice    float64   `json:"nightly_price"`
	CleaningFee     float64   `json:"cleaning_fee"`
	SecurityDeposit float64   `json:"security_deposit"`
	Currency        string    `json:"currency"`
	Active          bool      `json:"active"`
	RequestedCount  int64     `json:"requested_count"`
	ConfirmedCount  int64     `json:"confirmed_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UnitInput carries fields accepted when registering a unit.
type UnitInput struct {
	OwnerID         int64   `json:"owner_id" validate:"required,gt=0"`
	Name            string  `json:"name" validate:"required,max=200"`
	Location        string  `json:"location" validate:"max=200"`
	Capacity        int     `json:"capacity" validate:"required,gt=0"`
	NightlyPrice    float64 `json:"nightly_price" validate:"required,gt=0"`
	CleaningFee     float64 `json:"cleaning_fee" validate:"gte=0"`
	SecurityDeposit float64 `json:"security_deposit" validate:"gte=0"`
	Currency        string  `json:"currency" validate:"required,len=3"`
}
