package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

const unitColumns = `id, owner_id, name, location, capacity, nightly_price, cleaning_fee, security_deposit, currency, active, requested_count, confirmed_count, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for units.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetUnit loads a unit by id.
func (r *Repository) GetUnit(ctx context.Context, id int64) (*Unit, error) {
	return scanUnit(r.pool.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id=$1`, id), id)
}

// ListUnitsByOwner returns all units registered by an owner.
func (r *Repository) ListUnitsByOwner(ctx context.Context, ownerID int64) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+unitColumns+` FROM units WHERE owner_id=$1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.OwnerID, &u.Name, &u.Location, &u.Capacity, &u.NightlyPrice, &u.CleaningFee, &u.SecurityDeposit, &u.Currency, &u.Active, &u.RequestedCount, &u.ConfirmedCount, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return units, nil
}

// CreateUnit inserts a unit and returns it with generated fields populated.
func (r *Repository) CreateUnit(ctx context.Context, input UnitInput) (*Unit, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO units (owner_id, name, location, capacity, nightly_price, cleaning_fee, security_deposit, currency, active, requested_count, confirmed_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, 0, 0, NOW(), NOW()) RETURNING id`,
		input.OwnerID, input.Name, input.Location, input.Capacity, input.NightlyPrice, input.CleaningFee, input.SecurityDeposit, input.Currency).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.GetUnit(ctx, id)
}

// SetUnitActive flips the active flag.
func (r *Repository) SetUnitActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE units SET active=$1, updated_at=NOW() WHERE id=$2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("catalog: unit %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// TxRepository exposes the unit operations that run inside a booking
// transaction. GetUnitForUpdate locks the unit row so competing confirmations
// for the same unit serialize on it.
type TxRepository interface {
	GetUnitForUpdate(ctx context.Context, id int64) (*Unit, error)
	IncrementRequested(ctx context.Context, id int64) error
	IncrementConfirmed(ctx context.Context, id int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

func (t *txRepo) GetUnitForUpdate(ctx context.Context, id int64) (*Unit, error) {
	return scanUnit(t.tx.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id=$1 FOR UPDATE`, id), id)
}

func (t *txRepo) IncrementRequested(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE units SET requested_count=requested_count+1, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (t *txRepo) IncrementConfirmed(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE units SET confirmed_count=confirmed_count+1, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func scanUnit(row pgx.Row, id int64) (*Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.OwnerID, &u.Name, &u.Location, &u.Capacity, &u.NightlyPrice, &u.CleaningFee, &u.SecurityDeposit, &u.Currency, &u.Active, &u.RequestedCount, &u.ConfirmedCount, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("catalog: unit %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
