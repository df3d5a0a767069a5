// Package pricing computes booking price breakdowns. The calculator is a pure
// function: it is invoked at creation and re-invoked at confirmation so drift
// between the stored breakdown and current unit pricing can be detected.
package pricing

import "math"

// ServiceFeePercent is the platform service fee applied to the subtotal.
const ServiceFeePercent = 0.10

// Long-stay discounts on the nightly subtotal.
const (
	WeeklyDiscountPercent  = 0.05
	WeeklyDiscountNights   = 7
	MonthlyDiscountPercent = 0.10
	MonthlyDiscountNights  = 28
)

// Breakdown is the derived price of a stay.
type Breakdown struct {
	Subtotal        float64 `json:"subtotal"`
	CleaningFee     float64 `json:"cleaning_fee"`
	ServiceFee      float64 `json:"service_fee"`
	Discount        float64 `json:"discount"`
	Total           float64 `json:"total"`
	SecurityDeposit float64 `json:"security_deposit"`
}

// Calculate derives the breakdown for a stay of the given number of nights.
// subtotal = nightlyPrice * nights, serviceFee = 10% of subtotal, discount is
// the long-stay rate on the subtotal, and every derived amount is rounded
// half-up to two decimals. total = subtotal + cleaningFee + serviceFee - discount.
func Calculate(nightlyPrice, cleaningFee, securityDeposit float64, nights int) Breakdown {
	subtotal := Round2(nightlyPrice * float64(nights))
	serviceFee := Round2(subtotal * ServiceFeePercent)
	discount := 0.0
	switch {
	case nights >= MonthlyDiscountNights:
		discount = Round2(subtotal * MonthlyDiscountPercent)
	case nights >= WeeklyDiscountNights:
		discount = Round2(subtotal * WeeklyDiscountPercent)
	}
	total := Round2(subtotal + cleaningFee + serviceFee - discount)
	return Breakdown{
		Subtotal:        subtotal,
		CleaningFee:     cleaningFee,
		ServiceFee:      serviceFee,
		Discount:        discount,
		Total:           total,
		SecurityDeposit: securityDeposit,
	}
}

// Round2 rounds half-up to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
