package availability

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

type memLedger struct {
	committed []CommittedRange
	blackouts map[int64]*BlackoutRange
	nextID    int64
	queries   int
}

func newMemLedger() *memLedger {
	return &memLedger{blackouts: map[int64]*BlackoutRange{}, nextID: 1}
}

func (m *memLedger) FindConflict(_ context.Context, unitID int64, rng DateRange, excludeBookingID int64) (*Conflict, error) {
	for _, c := range m.committed {
		if c.UnitID == unitID && c.BookingID != excludeBookingID && c.Range.Overlaps(rng) {
			return &Conflict{Range: c.Range, Source: SourceBooking}, nil
		}
	}
	for _, b := range m.blackouts {
		if b.UnitID == unitID && b.Range.Overlaps(rng) {
			return &Conflict{Range: b.Range, Source: SourceBlackout}, nil
		}
	}
	return nil, nil
}

func (m *memLedger) ListCommitted(_ context.Context, unitID int64, window DateRange) ([]CommittedRange, error) {
	m.queries++
	var out []CommittedRange
	for _, c := range m.committed {
		if c.UnitID == unitID && c.Range.Overlaps(window) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memLedger) CreateBlackout(_ context.Context, b BlackoutRange) (*BlackoutRange, error) {
	b.ID = m.nextID
	b.CreatedAt = time.Now()
	m.nextID++
	m.blackouts[b.ID] = &b
	cp := b
	return &cp, nil
}

func (m *memLedger) GetBlackout(_ context.Context, id int64) (*BlackoutRange, error) {
	b, ok := m.blackouts[id]
	if !ok {
		return nil, fmt.Errorf("availability: blackout %d: %w", id, shared.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (m *memLedger) ListBlackouts(_ context.Context, unitID int64) ([]BlackoutRange, error) {
	var out []BlackoutRange
	for _, b := range m.blackouts {
		if b.UnitID == unitID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memLedger) DeleteBlackout(_ context.Context, id int64) error {
	if _, ok := m.blackouts[id]; !ok {
		return fmt.Errorf("availability: blackout %d: %w", id, shared.ErrNotFound)
	}
	delete(m.blackouts, id)
	return nil
}

type memUnits struct {
	units map[int64]*UnitInfo
}

func (m *memUnits) GetUnitInfo(_ context.Context, id int64) (*UnitInfo, error) {
	u, ok := m.units[id]
	if !ok {
		return nil, fmt.Errorf("catalog: unit %d: %w", id, shared.ErrNotFound)
	}
	return u, nil
}

func newTestService(t *testing.T, ledger *memLedger) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	units := &memUnits{units: map[int64]*UnitInfo{
		1: {ID: 1, OwnerID: 7, Active: true},
	}}
	return NewService(ledger, units, NewCache(client, time.Minute), nil)
}

func TestCheckReportsConflictRange(t *testing.T) {
	ledger := newMemLedger()
	ledger.committed = append(ledger.committed, CommittedRange{UnitID: 1, BookingID: 42, Range: rng("2026-09-10", "2026-09-15")})
	svc := newTestService(t, ledger)

	err := svc.Check(context.Background(), 1, rng("2026-09-12", "2026-09-18"))
	require.ErrorIs(t, err, shared.ErrConflict)
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, rng("2026-09-10", "2026-09-15"), conflictErr.Conflict.Range)
	require.Equal(t, SourceBooking, conflictErr.Conflict.Source)
}

func TestCheckAllowsBackToBackStays(t *testing.T) {
	ledger := newMemLedger()
	ledger.committed = append(ledger.committed, CommittedRange{UnitID: 1, BookingID: 42, Range: rng("2026-09-10", "2026-09-15")})
	svc := newTestService(t, ledger)

	require.NoError(t, svc.Check(context.Background(), 1, rng("2026-09-15", "2026-09-20")))
	require.NoError(t, svc.Check(context.Background(), 1, rng("2026-09-05", "2026-09-10")))
}

func TestCheckRejectsInvertedRange(t *testing.T) {
	svc := newTestService(t, newMemLedger())
	err := svc.Check(context.Background(), 1, rng("2026-09-15", "2026-09-10"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetWindowCachesUntilBump(t *testing.T) {
	ledger := newMemLedger()
	ledger.committed = append(ledger.committed, CommittedRange{UnitID: 1, BookingID: 42, Range: rng("2026-09-10", "2026-09-15")})
	svc := newTestService(t, ledger)
	window := rng("2026-09-01", "2026-09-30")

	w, err := svc.GetWindow(context.Background(), 1, window)
	require.NoError(t, err)
	require.Len(t, w.Booked, 1)
	require.Equal(t, 1, ledger.queries)

	// Second read is served from cache.
	_, err = svc.GetWindow(context.Background(), 1, window)
	require.NoError(t, err)
	require.Equal(t, 1, ledger.queries)

	require.NoError(t, svc.InvalidateCache(context.Background()))
	_, err = svc.GetWindow(context.Background(), 1, window)
	require.NoError(t, err)
	require.Equal(t, 2, ledger.queries)
}

func TestAddBlackoutRequiresOwner(t *testing.T) {
	svc := newTestService(t, newMemLedger())
	_, err := svc.AddBlackout(context.Background(), 99, 1, rng("2026-10-01", "2026-10-05"), "repairs")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestAddBlackoutRejectsCommittedOverlap(t *testing.T) {
	ledger := newMemLedger()
	ledger.committed = append(ledger.committed, CommittedRange{UnitID: 1, BookingID: 42, Range: rng("2026-10-03", "2026-10-08")})
	svc := newTestService(t, ledger)

	_, err := svc.AddBlackout(context.Background(), 7, 1, rng("2026-10-01", "2026-10-05"), "repairs")
	require.ErrorIs(t, err, shared.ErrConflict)
}

// blockingLedger parks the first committed-range query until released so a
// test can hold an in-flight window lookup open.
type blockingLedger struct {
	*memLedger
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingLedger) ListCommitted(ctx context.Context, unitID int64, window DateRange) ([]CommittedRange, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.memLedger.ListCommitted(ctx, unitID, window)
}

func TestGetWindowFlightSurvivesCallerCancel(t *testing.T) {
	ledger := &blockingLedger{
		memLedger: newMemLedger(),
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	units := &memUnits{units: map[int64]*UnitInfo{1: {ID: 1, OwnerID: 7, Active: true}}}
	svc := NewService(ledger, units, NewCache(client, time.Minute), nil)
	window := rng("2026-09-01", "2026-09-30")

	ctx1, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.GetWindow(ctx1, 1, window)
		first <- err
	}()
	<-ledger.started

	second := make(chan error, 1)
	go func() {
		_, err := svc.GetWindow(context.Background(), 1, window)
		second <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	close(ledger.release)
	require.NoError(t, <-second)
}

func TestBlackoutMutationsSurviveCacheBumpFailure(t *testing.T) {
	ledger := newMemLedger()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	units := &memUnits{units: map[int64]*UnitInfo{1: {ID: 1, OwnerID: 7, Active: true}}}
	svc := NewService(ledger, units, NewCache(client, time.Minute), nil)

	mr.Close()
	b, err := svc.AddBlackout(context.Background(), 7, 1, rng("2026-10-01", "2026-10-05"), "repairs")
	require.NoError(t, err)
	require.NotNil(t, b)

	require.NoError(t, svc.RemoveBlackout(context.Background(), 7, b.ID))
	_, err = ledger.GetBlackout(context.Background(), b.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRemoveBlackout(t *testing.T) {
	ledger := newMemLedger()
	svc := newTestService(t, ledger)
	b, err := svc.AddBlackout(context.Background(), 7, 1, rng("2026-10-01", "2026-10-05"), "repairs")
	require.NoError(t, err)

	err = svc.RemoveBlackout(context.Background(), 99, b.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	require.NoError(t, svc.RemoveBlackout(context.Background(), 7, b.ID))
	_, err = ledger.GetBlackout(context.Background(), b.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
