package availability

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

// UnitInfo is the slice of a unit the service needs for authorization.
type UnitInfo struct {
	ID      int64
	OwnerID int64
	Active  bool
}

// UnitSource resolves units for blackout authorization.
type UnitSource interface {
	GetUnitInfo(ctx context.Context, id int64) (*UnitInfo, error)
}

// Store abstracts ledger persistence for the service.
type Store interface {
	FindConflict(ctx context.Context, unitID int64, rng DateRange, excludeBookingID int64) (*Conflict, error)
	ListCommitted(ctx context.Context, unitID int64, window DateRange) ([]CommittedRange, error)
	CreateBlackout(ctx context.Context, b BlackoutRange) (*BlackoutRange, error)
	GetBlackout(ctx context.Context, id int64) (*BlackoutRange, error)
	ListBlackouts(ctx context.Context, unitID int64) ([]BlackoutRange, error)
	DeleteBlackout(ctx context.Context, id int64) error
}

// Window is the read-model returned for an availability query.
type Window struct {
	UnitID    int64       `json:"unit_id"`
	Window    DateRange   `json:"window"`
	Booked    []DateRange `json:"booked"`
	Blackouts []DateRange `json:"blackouts"`
}

// Service answers availability queries and manages owner blackouts.
type Service struct {
	store  Store
	units  UnitSource
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs the service.
func NewService(store Store, units UnitSource, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, units: units, cache: cache, logger: logger}
}

// Check returns nil when the range is free and a *ConflictError when an
// entry occupies it. This is the advisory read path; the authoritative check
// re-runs inside the confirmation transaction.
func (s *Service) Check(ctx context.Context, unitID int64, rng DateRange) error {
	if !rng.Valid() {
		return fmt.Errorf("%w: end date must be after start date", shared.ErrValidation)
	}
	conflict, err := s.store.FindConflict(ctx, unitID, rng, 0)
	if err != nil {
		return err
	}
	if conflict != nil {
		return &ConflictError{UnitID: unitID, Conflict: *conflict}
	}
	return nil
}

// GetWindow returns booked and blacked-out ranges overlapping the window.
// Identical concurrent lookups collapse through singleflight and results are
// cached until the next ledger change bumps the version.
func (s *Service) GetWindow(ctx context.Context, unitID int64, window DateRange) (*Window, error) {
	if !window.Valid() {
		return nil, fmt.Errorf("%w: end date must be after start date", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, keyWindow(unitID, window))
	if err != nil {
		return nil, err
	}
	// The flight outlives the initiating request; a detached context keeps
	// one cancelled caller from failing every collapsed follower.
	flightCtx := context.WithoutCancel(ctx)
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		var w Window
		err := s.cache.FetchJSON(flightCtx, key, &w, func(ctx context.Context) (interface{}, error) {
			return s.buildWindow(ctx, unitID, window)
		})
		if err != nil {
			return nil, err
		}
		return &w, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Window), nil
	}
}

func (s *Service) buildWindow(ctx context.Context, unitID int64, window DateRange) (*Window, error) {
	committed, err := s.store.ListCommitted(ctx, unitID, window)
	if err != nil {
		return nil, err
	}
	blackouts, err := s.store.ListBlackouts(ctx, unitID)
	if err != nil {
		return nil, err
	}
	w := &Window{UnitID: unitID, Window: window, Booked: []DateRange{}, Blackouts: []DateRange{}}
	for _, c := range committed {
		w.Booked = append(w.Booked, c.Range)
	}
	for _, b := range blackouts {
		if b.Range.Overlaps(window) {
			w.Blackouts = append(w.Blackouts, b.Range)
		}
	}
	return w, nil
}

// AddBlackout closes a range for new confirmations. Only the unit owner may
// add one, and it cannot overlap an already committed entry.
func (s *Service) AddBlackout(ctx context.Context, actorID, unitID int64, rng DateRange, reason string) (*BlackoutRange, error) {
	if !rng.Valid() {
		return nil, fmt.Errorf("%w: end date must be after start date", shared.ErrValidation)
	}
	unit, err := s.units.GetUnitInfo(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if unit.OwnerID != actorID {
		return nil, fmt.Errorf("%w: only the owner can black out unit %d", shared.ErrForbidden, unitID)
	}
	conflict, err := s.store.FindConflict(ctx, unitID, rng, 0)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, &ConflictError{UnitID: unitID, Conflict: *conflict}
	}
	created, err := s.store.CreateBlackout(ctx, BlackoutRange{UnitID: unitID, Range: rng, Reason: reason, CreatedBy: actorID})
	if err != nil {
		return nil, err
	}
	s.bumpCache(ctx)
	return created, nil
}

// ListBlackouts returns a unit's blackouts.
func (s *Service) ListBlackouts(ctx context.Context, unitID int64) ([]BlackoutRange, error) {
	return s.store.ListBlackouts(ctx, unitID)
}

// RemoveBlackout deletes a blackout after checking ownership.
func (s *Service) RemoveBlackout(ctx context.Context, actorID, blackoutID int64) error {
	b, err := s.store.GetBlackout(ctx, blackoutID)
	if err != nil {
		return err
	}
	unit, err := s.units.GetUnitInfo(ctx, b.UnitID)
	if err != nil {
		return err
	}
	if unit.OwnerID != actorID {
		return fmt.Errorf("%w: only the owner can remove blackout %d", shared.ErrForbidden, blackoutID)
	}
	if err := s.store.DeleteBlackout(ctx, blackoutID); err != nil {
		return err
	}
	s.bumpCache(ctx)
	return nil
}

// bumpCache invalidates the availability cache after a blackout mutation. The
// write has already committed, so a bump failure only delays invalidation
// until the TTL and must not fail the request.
func (s *Service) bumpCache(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("availability cache bump failed", slog.Any("error", err))
	}
}

// InvalidateCache bumps the availability cache version. The booking service
// calls it after any transition that touches the ledger.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
