// Package catalog manages rentable units and the pricing attributes that
// feed booking breakdowns.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"

	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

// UnitReader is the subset the booking service needs outside a transaction.
type UnitReader interface {
	GetUnit(ctx context.Context, id int64) (*Unit, error)
}

// Store abstracts persistence for the service.
type Store interface {
	UnitReader
	ListUnitsByOwner(ctx context.Context, ownerID int64) ([]Unit, error)
	CreateUnit(ctx context.Context, input UnitInput) (*Unit, error)
	SetUnitActive(ctx context.Context, id int64, active bool) error
}

// Service exposes unit registration and lookup.
type Service struct {
	store    Store
	validate *validator.Validate
}

// NewService constructs the service.
func NewService(store Store) *Service {
	return &Service{store: store, validate: validator.New()}
}

// Register validates and stores a new unit.
func (s *Service) Register(ctx context.Context, input UnitInput) (*Unit, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	code := strings.ToUpper(input.Currency)
	if _, err := currency.ParseISO(code); err != nil {
		return nil, fmt.Errorf("%w: unknown currency %q", shared.ErrValidation, input.Currency)
	}
	input.Currency = code
	return s.store.CreateUnit(ctx, input)
}

// Get returns a unit by id.
func (s *Service) Get(ctx context.Context, id int64) (*Unit, error) {
	return s.store.GetUnit(ctx, id)
}

// ListByOwner returns the owner's units.
func (s *Service) ListByOwner(ctx context.Context, ownerID int64) ([]Unit, error) {
	return s.store.ListUnitsByOwner(ctx, ownerID)
}

// Deactivate hides a unit from new bookings. Only the owner may do it.
func (s *Service) Deactivate(ctx context.Context, actorID, unitID int64) error {
	unit, err := s.store.GetUnit(ctx, unitID)
	if err != nil {
		return err
	}
	if unit.OwnerID != actorID {
		return fmt.Errorf("%w: only the owner can deactivate unit %d", shared.ErrForbidden, unitID)
	}
	return s.store.SetUnitActive(ctx, unitID, false)
}
