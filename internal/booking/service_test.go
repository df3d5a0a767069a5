package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atlas-journeys/atlas-journeys/internal/availability"
	"github.com/atlas-journeys/atlas-journeys/internal/catalog"
	"github.com/atlas-journeys/atlas-journeys/internal/identity"
	"github.com/atlas-journeys/atlas-journeys/internal/payment"
	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

type memStore struct {
	mu         sync.Mutex
	bookings   map[int64]*Booking
	committed  map[int64]availability.CommittedRange
	units      map[int64]*catalog.Unit
	nextID     int64
	seq        int64
	failExpire map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		bookings:   map[int64]*Booking{},
		committed:  map[int64]availability.CommittedRange{},
		units:      map[int64]*catalog.Unit{},
		nextID:     1,
		failExpire: map[int64]bool{},
	}
}

type memTx struct{ s *memStore }

func (t *memTx) Bookings() TxRepository            { return t.s }
func (t *memTx) Ledger() availability.TxRepository { return t.s }
func (t *memTx) Units() catalog.TxRepository       { return t.s }

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, &memTx{s: m})
}

func (m *memStore) CreateBooking(_ context.Context, b *Booking) (*Booking, error) {
	m.seq++
	b.ID = m.nextID
	m.nextID++
	b.Reference = fmt.Sprintf("AJ-%d-%d", b.ExpiresAt.Year(), m.seq)
	b.RequestedAt = time.Now()
	b.UpdatedAt = b.RequestedAt
	cp := *b
	m.bookings[b.ID] = &cp
	return b, nil
}

func (m *memStore) GetBookingForUpdate(_ context.Context, id int64) (*Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", id, shared.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) UpdateBooking(_ context.Context, b *Booking, expected Status) (bool, error) {
	stored, ok := m.bookings[b.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	cp := *b
	cp.UpdatedAt = time.Now()
	m.bookings[b.ID] = &cp
	return true, nil
}

func (m *memStore) FindConflict(_ context.Context, unitID int64, rng availability.DateRange, excludeBookingID int64) (*availability.Conflict, error) {
	for bookingID, c := range m.committed {
		if c.UnitID == unitID && bookingID != excludeBookingID && c.Range.Overlaps(rng) {
			return &availability.Conflict{Range: c.Range, Source: availability.SourceBooking}, nil
		}
	}
	return nil, nil
}

func (m *memStore) Reserve(_ context.Context, unitID, bookingID int64, rng availability.DateRange) error {
	m.committed[bookingID] = availability.CommittedRange{UnitID: unitID, BookingID: bookingID, Range: rng}
	return nil
}

func (m *memStore) Release(_ context.Context, bookingID int64) error {
	delete(m.committed, bookingID)
	return nil
}

func (m *memStore) GetUnit(_ context.Context, id int64) (*catalog.Unit, error) {
	u, ok := m.units[id]
	if !ok {
		return nil, fmt.Errorf("catalog: unit %d: %w", id, shared.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUnitForUpdate(ctx context.Context, id int64) (*catalog.Unit, error) {
	return m.GetUnit(ctx, id)
}

func (m *memStore) IncrementRequested(_ context.Context, id int64) error {
	m.units[id].RequestedCount++
	return nil
}

func (m *memStore) IncrementConfirmed(_ context.Context, id int64) error {
	m.units[id].ConfirmedCount++
	return nil
}

func (m *memStore) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetBookingForUpdate(ctx, id)
}

func (m *memStore) ListBookings(_ context.Context, f ListFilter) ([]Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		who := b.RenterID
		if f.Role == RoleOwner {
			who = b.OwnerID
		}
		if who != f.UserID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *memStore) SetPaymentResult(_ context.Context, id int64, status PaymentStatus, transactionRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return fmt.Errorf("booking %d: %w", id, shared.ErrNotFound)
	}
	b.PaymentStatus = status
	b.TransactionRef = transactionRef
	return nil
}

func (m *memStore) ListExpiryCandidates(_ context.Context, now time.Time, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, b := range m.bookings {
		if b.Status == StatusPending && b.ExpiresAt.Before(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) ListCompletionCandidates(_ context.Context, today time.Time, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, b := range m.bookings {
		if b.Status == StatusConfirmed && b.Range.End.Before(today) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) ExpireBooking(_ context.Context, id int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failExpire[id] {
		return false, errors.New("storage unavailable")
	}
	b, ok := m.bookings[id]
	if !ok || b.Status != StatusPending || !b.ExpiresAt.Before(now) {
		return false, nil
	}
	b.Status = StatusExpired
	return true, nil
}

func (m *memStore) CompleteBooking(_ context.Context, id int64, today, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != StatusConfirmed || !b.Range.End.Before(today) {
		return false, nil
	}
	b.Status = StatusCompleted
	b.CompletedAt = &now
	return true, nil
}

type fakeProfiles struct{}

func (fakeProfiles) GetProfile(_ context.Context, id int64) (*identity.Profile, error) {
	return &identity.Profile{ID: id, DisplayName: fmt.Sprintf("user-%d", id)}, nil
}

type fakePayments struct {
	mu      sync.Mutex
	fail    bool
	charges []payment.ChargeRequest
	refunds []float64
}

func (f *fakePayments) Charge(_ context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("provider down")
	}
	f.charges = append(f.charges, req)
	return &payment.ChargeResult{TransactionRef: fmt.Sprintf("tx-%d", len(f.charges)), Status: "captured"}, nil
}

func (f *fakePayments) Refund(_ context.Context, transactionRef string, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, amount)
	return nil
}

type memIdem struct {
	keys map[string]bool
}

func newMemIdem() *memIdem { return &memIdem{keys: map[string]bool{}} }

func (m *memIdem) CheckAndInsert(_ context.Context, key, _ string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memIdem) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

const (
	ownerID  = int64(7)
	renterID = int64(3)
	unitID   = int64(1)
)

var baseTime = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memStore, *fakePayments) {
	t.Helper()
	store := newMemStore()
	store.units[unitID] = &catalog.Unit{
		ID: unitID, OwnerID: ownerID, Name: "Harbor Loft", Capacity: 4,
		NightlyPrice: 1000, CleaningFee: 200, Currency: "EUR", Active: true,
	}
	payments := &fakePayments{}
	svc := NewService(store, store, fakeProfiles{}, payments, nil, nil, nil, DefaultConfig(), nil)
	svc.now = func() time.Time { return baseTime }
	return svc, store, payments
}

func createInput(checkIn, checkOut string) CreateInput {
	return CreateInput{UnitID: unitID, RenterID: renterID, CheckIn: checkIn, CheckOut: checkOut, Guests: 2}
}

func TestCreatePendingHold(t *testing.T) {
	svc, store, _ := newTestService(t)
	b, err := svc.Create(context.Background(), createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)
	require.Equal(t, StatusPending, b.Status)
	require.Equal(t, "AJ-2026-1", b.Reference)
	require.Equal(t, baseTime.Add(48*time.Hour), b.ExpiresAt)
	require.InDelta(t, 3000.0, b.Pricing.Subtotal, 0.001)
	require.InDelta(t, 300.0, b.Pricing.ServiceFee, 0.001)
	require.InDelta(t, 3500.0, b.Pricing.Total, 0.001)
	require.Equal(t, PaymentUnpaid, b.PaymentStatus)
	require.EqualValues(t, 1, store.units[unitID].RequestedCount)
	// A pending hold does not occupy the ledger.
	require.Empty(t, store.committed)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, createInput("2026-09-13", "2026-09-10"), "")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, createInput("2026-09-10", "2026-09-10"), "")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, createInput("2026-08-20", "2026-08-25"), "")
	require.ErrorIs(t, err, shared.ErrValidation)

	tooLong := createInput("2026-09-10", "2026-12-25")
	_, err = svc.Create(ctx, tooLong, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	crowded := createInput("2026-09-10", "2026-09-13")
	crowded.Guests = 9
	_, err = svc.Create(ctx, crowded, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	selfBooking := createInput("2026-09-10", "2026-09-13")
	selfBooking.RenterID = ownerID
	_, err = svc.Create(ctx, selfBooking, "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateUnknownUnit(t *testing.T) {
	svc, _, _ := newTestService(t)
	input := createInput("2026-09-10", "2026-09-13")
	input.UnitID = 404
	_, err := svc.Create(context.Background(), input, "")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateAllowsOverlappingPendingHolds(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-15"), "")
	require.NoError(t, err)
	second := createInput("2026-09-12", "2026-09-17")
	second.RenterID = 4
	_, err = svc.Create(ctx, second, "")
	require.NoError(t, err)
}

func TestCreateRejectsCommittedOverlap(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-15"), "")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, b.ID, ConfirmInput{OwnerID: ownerID})
	require.NoError(t, err)

	overlap := createInput("2026-09-12", "2026-09-17")
	overlap.RenterID = 4
	_, err = svc.Create(ctx, overlap, "")
	require.ErrorIs(t, err, shared.ErrConflict)
	var conflictErr *availability.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, b.Range, conflictErr.Conflict.Range)

	// Boundary dates touch but do not overlap.
	adjacent := createInput("2026-09-15", "2026-09-18")
	adjacent.RenterID = 4
	_, err = svc.Create(ctx, adjacent, "")
	require.NoError(t, err)
}

func TestCreateReplayedIdempotencyKeyRejected(t *testing.T) {
	svc, store, _ := newTestService(t)
	idem := newMemIdem()
	svc.idem = idem
	ctx := context.Background()

	key := "9f2c3c1e-0b58-4b6f-9a1d-2f4a9c8d7e6b"
	b, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), key)
	require.NoError(t, err)
	require.Equal(t, StatusPending, b.Status)

	_, err = svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), key)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, store.bookings, 1)
}

func TestCreateFailureReleasesIdempotencyKey(t *testing.T) {
	svc, store, _ := newTestService(t)
	idem := newMemIdem()
	svc.idem = idem
	ctx := context.Background()

	b, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-15"), "")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, b.ID, ConfirmInput{OwnerID: ownerID})
	require.NoError(t, err)

	key := "2d1a5c44-7e52-4a0f-8f35-6bfae2ce0452"
	overlap := createInput("2026-09-12", "2026-09-17")
	overlap.RenterID = 4
	_, err = svc.Create(ctx, overlap, key)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, store.bookings, 1)
	// The key is released so a retry with corrected dates can reuse it.
	require.False(t, idem.keys[key])
}

func TestConfirm(t *testing.T) {
	svc, store, payments := newTestService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)

	got, err := svc.Confirm(ctx, b.ID, ConfirmInput{OwnerID: ownerID, OwnerResponse: "welcome"})
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, got.Status)
	require.NotNil(t, got.ConfirmedAt)
	require.Equal(t, "welcome", got.OwnerResponse)
	require.Contains(t, store.committed, b.ID)
	require.EqualValues(t, 1, store.units[unitID].ConfirmedCount)

	require.Len(t, payments.charges, 1)
	require.InDelta(t, 3500.0, payments.charges[0].Amount, 0.001)
	require.Equal(t, PaymentCharged, got.PaymentStatus)
}

func TestConfirmRequiresOwner(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, b.ID, ConfirmInput{OwnerID: renterID})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestConfirmExpiredHoldTransitionsToExpired(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)

	svc.now = func() time.Time { return baseTime.Add(49 * time.Hour) }
	_, err = svc.Confirm(ctx, b.ID, ConfirmInput{OwnerID: ownerID})
	require.ErrorIs(t, err, shared.ErrState)
	require.Equal(t, StatusExpired, store.bookings[b.ID].Status)
	require.Empty(t, store.committed)
}

func TestConfirmTerminalStateFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)
	_, err = svc.Reject(ctx, b.ID, RejectInput{OwnerID: ownerID, Reason: "dates blocked"})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, b.ID, ConfirmInput{OwnerID: ownerID})
	require.ErrorIs(t, err, shared.ErrState)
}

func TestFirstConfirmationWins(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b1, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-15"), "")
	require.NoError(t, err)
	second := createInput("2026-09-12", "2026-09-17")
	second.RenterID = 4
	b2, err := svc.Create(ctx, second, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, id := range []int64{b1.ID, b2.ID} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, results[i] = svc.Confirm(ctx, id, ConfirmInput{OwnerID: ownerID})
		}(i, id)
	}
	wg.Wait()

	var won, lost int
	for _, err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, shared.ErrConflict):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, 1, lost)
}

func TestCancelPendingHasNoFee(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, createInput("2026-09-03", "2026-09-06"), "")
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, b.ID, CancelInput{UserID: renterID, Reason: "change of plans"})
	require.NoError(t, err)
	require.Equal(t, StatusCancelledByRenter, got.Status)
	require.InDelta(t, 0.0, got.CancellationFee, 0.001)
	require.InDelta(t, got.Pricing.Total, got.RefundAmount, 0.001)
}

func TestCancelConfirmedNearCheckinChargesFee(t *testing.T) {
	svc, store, payments := newTestService(t)
	ctx := context.Background()
	// Check-in three days from "now".
	b, err := svc.Create(ctx, createInput("2026-09-04", "2026-09-07"), "")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, b.ID, ConfirmInput{OwnerID: ownerID})
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, b.ID, CancelInput{UserID: renterID, Reason: "emergency"})
	require.NoError(t, err)
	require.Equal(t, StatusCancelledByRenter, got.Status)
	require.InDelta(t, 700.0, got.CancellationFee, 0.001)
	require.InDelta(t, 2800.0, got.RefundAmount, 0.001)
	require.NotContains(t, store.committed, b.ID)
	require.Len(t, payments.refunds, 1)
	require.InDelta(t, 2800.0, payments.refunds[0], 0.001)
	require.Equal(t, PaymentRefunded, store.bookings[b.ID].PaymentStatus)
}

func TestCancelConfirmedFarFromCheckinNoFee(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	// Check-in thirty days out.
	b, err := svc.Create(ctx, createInput("2026-10-01", "2026-10-04"), "")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, b.ID, ConfirmInput{OwnerID: ownerID})
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, b.ID, CancelInput{UserID: ownerID, Reason: "maintenance"})
	require.NoError(t, err)
	require.Equal(t, StatusCancelledByOwner, got.Status)
	require.InDelta(t, 0.0, got.CancellationFee, 0.001)
	require.InDelta(t, got.Pricing.Total, got.RefundAmount, 0.001)
}

func TestCancelAuthorization(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, b.ID, CancelInput{UserID: 999, Reason: "nope"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCancelTerminalStateFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, b.ID, CancelInput{UserID: renterID, Reason: "first"})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, b.ID, CancelInput{UserID: renterID, Reason: "again"})
	require.ErrorIs(t, err, shared.ErrState)
}

func TestGetAuthorization(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)

	view, err := svc.Get(ctx, b.ID, renterID)
	require.NoError(t, err)
	require.Equal(t, "Harbor Loft", view.UnitName)
	require.Equal(t, "user-3", view.Renter.DisplayName)

	_, err = svc.Get(ctx, b.ID, ownerID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, b.ID, 999)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestListFiltersByRoleAndStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b1, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)
	other := createInput("2026-09-20", "2026-09-23")
	other.RenterID = 4
	_, err = svc.Create(ctx, other, "")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, b1.ID, ConfirmInput{OwnerID: ownerID})
	require.NoError(t, err)

	mine, _, err := svc.List(ctx, ListFilter{Role: RoleRenter, UserID: renterID})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	confirmed, _, err := svc.List(ctx, ListFilter{Role: RoleOwner, UserID: ownerID, Status: StatusConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	require.Equal(t, b1.ID, confirmed[0].ID)

	all, page, err := svc.List(ctx, ListFilter{Role: RoleOwner, UserID: ownerID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 2, page.Total)

	_, _, err = svc.List(ctx, ListFilter{Role: "admin", UserID: ownerID})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSweepExpiredIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)

	svc.now = func() time.Time { return baseTime.Add(48*time.Hour + time.Minute) }
	swept, err := svc.SweepExpired(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 1, swept)

	swept, err = svc.SweepExpired(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 0, swept)
}

func TestSweepExpiredSkipsFailures(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	b1, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)
	second := createInput("2026-09-20", "2026-09-23")
	second.RenterID = 4
	b2, err := svc.Create(ctx, second, "")
	require.NoError(t, err)
	store.failExpire[b1.ID] = true

	svc.now = func() time.Time { return baseTime.Add(49 * time.Hour) }
	swept, err := svc.SweepExpired(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 1, swept)
	require.Equal(t, StatusExpired, store.bookings[b2.ID].Status)
	require.Equal(t, StatusPending, store.bookings[b1.ID].Status)
}

func TestSweepCompleted(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, createInput("2026-09-03", "2026-09-05"), "")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, b.ID, ConfirmInput{OwnerID: ownerID})
	require.NoError(t, err)

	// Past checkout.
	svc.now = func() time.Time { return time.Date(2026, 9, 6, 8, 0, 0, 0, time.UTC) }
	swept, err := svc.SweepCompleted(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 1, swept)
	require.Equal(t, StatusCompleted, store.bookings[b.ID].Status)
	require.NotNil(t, store.bookings[b.ID].CompletedAt)

	swept, err = svc.SweepCompleted(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 0, swept)
}

func TestPaymentFailureDoesNotBlockConfirmation(t *testing.T) {
	svc, store, payments := newTestService(t)
	payments.fail = true
	ctx := context.Background()
	b, err := svc.Create(ctx, createInput("2026-09-10", "2026-09-13"), "")
	require.NoError(t, err)

	got, err := svc.Confirm(ctx, b.ID, ConfirmInput{OwnerID: ownerID})
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, got.Status)
	require.Equal(t, PaymentFailed, store.bookings[b.ID].PaymentStatus)
}
