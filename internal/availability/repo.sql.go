package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

// The conflict probe treats ranges as half-open: an existing entry collides
// only when existing.start < requested.end AND existing.end > requested.start.
const conflictQuery = `
SELECT start_date, end_date, source FROM (
    SELECT start_date, end_date, 'booking' AS source
      FROM committed_ranges
     WHERE unit_id = $1 AND start_date < $3 AND end_date > $2 AND ($4 = 0 OR booking_id <> $4)
    UNION ALL
    SELECT start_date, end_date, 'blackout' AS source
      FROM blackout_ranges
     WHERE unit_id = $1 AND start_date < $3 AND end_date > $2
) conflicts
ORDER BY start_date
LIMIT 1`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func findConflict(ctx context.Context, q querier, unitID int64, r DateRange, excludeBookingID int64) (*Conflict, error) {
	var c Conflict
	err := q.QueryRow(ctx, conflictQuery, unitID, r.Start, r.End, excludeBookingID).
		Scan(&c.Range.Start, &c.Range.End, &c.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindConflict returns the first committed entry overlapping the range, or
// nil when the range is free. excludeBookingID ignores that booking's own
// entry so a confirmed booking does not conflict with itself; pass 0 to
// check against everything.
func (r *Repository) FindConflict(ctx context.Context, unitID int64, rng DateRange, excludeBookingID int64) (*Conflict, error) {
	return findConflict(ctx, r.pool, unitID, rng, excludeBookingID)
}

// ListCommitted returns ledger entries for a unit overlapping the window.
func (r *Repository) ListCommitted(ctx context.Context, unitID int64, window DateRange) ([]CommittedRange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, unit_id, booking_id, start_date, end_date, created_at FROM committed_ranges
WHERE unit_id=$1 AND start_date < $3 AND end_date > $2 ORDER BY start_date`, unitID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CommittedRange
	for rows.Next() {
		var cr CommittedRange
		if err := rows.Scan(&cr.ID, &cr.UnitID, &cr.BookingID, &cr.Range.Start, &cr.Range.End, &cr.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateBlackout inserts an owner blackout.
func (r *Repository) CreateBlackout(ctx context.Context, b BlackoutRange) (*BlackoutRange, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO blackout_ranges (unit_id, start_date, end_date, reason, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id, created_at`, b.UnitID, b.Range.Start, b.Range.End, b.Reason, b.CreatedBy).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBlackout loads a blackout by id.
func (r *Repository) GetBlackout(ctx context.Context, id int64) (*BlackoutRange, error) {
	var b BlackoutRange
	err := r.pool.QueryRow(ctx, `SELECT id, unit_id, start_date, end_date, reason, created_by, created_at FROM blackout_ranges WHERE id=$1`, id).
		Scan(&b.ID, &b.UnitID, &b.Range.Start, &b.Range.End, &b.Reason, &b.CreatedBy, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("availability: blackout %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBlackouts returns all blackouts for a unit.
func (r *Repository) ListBlackouts(ctx context.Context, unitID int64) ([]BlackoutRange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, unit_id, start_date, end_date, reason, created_by, created_at FROM blackout_ranges WHERE unit_id=$1 ORDER BY start_date`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BlackoutRange
	for rows.Next() {
		var b BlackoutRange
		if err := rows.Scan(&b.ID, &b.UnitID, &b.Range.Start, &b.Range.End, &b.Reason, &b.CreatedBy, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBlackout removes a blackout.
func (r *Repository) DeleteBlackout(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blackout_ranges WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("availability: blackout %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// TxRepository exposes the ledger operations that run inside a booking
// transaction.
type TxRepository interface {
	FindConflict(ctx context.Context, unitID int64, rng DateRange, excludeBookingID int64) (*Conflict, error)
	Reserve(ctx context.Context, unitID, bookingID int64, rng DateRange) error
	Release(ctx context.Context, bookingID int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

func (t *txRepo) FindConflict(ctx context.Context, unitID int64, rng DateRange, excludeBookingID int64) (*Conflict, error) {
	return findConflict(ctx, t.tx, unitID, rng, excludeBookingID)
}

func (t *txRepo) Reserve(ctx context.Context, unitID, bookingID int64, rng DateRange) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO committed_ranges (unit_id, booking_id, start_date, end_date, created_at)
VALUES ($1, $2, $3, $4, NOW())`, unitID, bookingID, rng.Start, rng.End)
	return err
}

func (t *txRepo) Release(ctx context.Context, bookingID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM committed_ranges WHERE booking_id=$1`, bookingID)
	return err
}
