// Package availability is the ledger of committed date ranges per unit. Only
// confirmed bookings and owner blackouts occupy the ledger; pending holds are
// soft and validated again at confirmation.
package availability

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for stay dates.
const DateLayout = "2006-01-02"

// DateRange is a half-open interval [Start, End) of whole days in UTC.
// Check-out day is excluded, so back-to-back stays never collide.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange normalises both dates to midnight UTC.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: truncateDay(start), End: truncateDay(end)}
}

// ParseDateRange parses two YYYY-MM-DD strings.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.ParseInLocation(DateLayout, start, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q", start)
	}
	e, err := time.ParseInLocation(DateLayout, end, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q", end)
	}
	return DateRange{Start: s, End: e}, nil
}

// Nights returns the stay length in nights.
func (r DateRange) Nights() int {
	return int(r.End.Sub(r.Start) / (24 * time.Hour))
}

// Overlaps reports whether two half-open ranges intersect. Ranges that only
// touch at a boundary do not overlap.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.Start.Before(o.End) && r.End.After(o.Start)
}

// Valid reports whether the range covers at least one night.
func (r DateRange) Valid() bool {
	return r.End.After(r.Start)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Conflict describes the committed entry a requested range collided with.
type Conflict struct {
	Range  DateRange `json:"range"`
	Source string    `json:"source"`
}

// Conflict sources.
const (
	SourceBooking  = "booking"
	SourceBlackout = "blackout"
)

// CommittedRange is a ledger entry held by a confirmed booking.
type CommittedRange struct {
	ID        int64     `json:"id"`
	UnitID    int64     `json:"unit_id"`
	BookingID int64     `json:"booking_id"`
	Range     DateRange `json:"range"`
	CreatedAt time.Time `json:"created_at"`
}

// BlackoutRange is an owner-declared closure of a unit.
type BlackoutRange struct {
	ID        int64     `json:"id"`
	UnitID    int64     `json:"unit_id"`
	Range     DateRange `json:"range"`
	Reason    string    `json:"reason"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
