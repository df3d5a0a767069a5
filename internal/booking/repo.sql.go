package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-journeys/atlas-journeys/internal/availability"
	"github.com/atlas-journeys/atlas-journeys/internal/catalog"
	"github.com/atlas-journeys/atlas-journeys/internal/platform/db"
	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

const bookingColumns = `id, reference, unit_id, renter_id, owner_id, start_date, end_date, guests, special_requests,
status, subtotal, cleaning_fee, service_fee, discount, total, security_deposit, currency,
payment_status, transaction_ref, owner_response, reject_reason, cancel_reason, cancellation_fee, refund_amount,
requested_at, expires_at, confirmed_at, rejected_at, cancelled_at, completed_at, updated_at`

// ListFilter narrows a booking listing.
type ListFilter struct {
	Role    Role
	UserID  int64
	Status  Status
	Page    int
	PerPage int
}

// TxRepository exposes booking operations inside a lifecycle transaction.
type TxRepository interface {
	CreateBooking(ctx context.Context, b *Booking) (*Booking, error)
	GetBookingForUpdate(ctx context.Context, id int64) (*Booking, error)
	// UpdateBooking writes all mutable columns when the stored status still
	// equals expected, reporting whether a row changed.
	UpdateBooking(ctx context.Context, b *Booking, expected Status) (bool, error)
}

// Tx bundles the repositories sharing one lifecycle transaction, so the
// status write and any ledger or counter update commit together.
type Tx interface {
	Bookings() TxRepository
	Ledger() availability.TxRepository
	Units() catalog.TxRepository
}

// Store abstracts persistence for the lifecycle service.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	GetBooking(ctx context.Context, id int64) (*Booking, error)
	ListBookings(ctx context.Context, f ListFilter) ([]Booking, int, error)
	// SetPaymentResult records the provider outcome after commit; payment
	// never gates a lifecycle transition.
	SetPaymentResult(ctx context.Context, id int64, status PaymentStatus, transactionRef string) error
	// Sweeper support: candidates plus per-row conditional transitions.
	ListExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]int64, error)
	ListCompletionCandidates(ctx context.Context, today time.Time, limit int) ([]int64, error)
	ExpireBooking(ctx context.Context, id int64, now time.Time) (bool, error)
	CompleteBooking(ctx context.Context, id int64, today, now time.Time) (bool, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txBundle struct {
	tx pgx.Tx
}

func (t *txBundle) Bookings() TxRepository            { return &txRepo{tx: t.tx} }
func (t *txBundle) Ledger() availability.TxRepository { return availability.NewTxRepository(t.tx) }
func (t *txBundle) Units() catalog.TxRepository       { return catalog.NewTxRepository(t.tx) }

// WithTx runs fn inside one repeatable-read transaction shared by the
// booking, ledger, and unit repositories.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txBundle{tx: tx})
	})
}

// GetBooking loads a booking by id.
func (r *Repository) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id), id)
}

// ListBookings returns a page of bookings for a renter or owner.
func (r *Repository) ListBookings(ctx context.Context, f ListFilter) ([]Booking, int, error) {
	who := "renter_id"
	if f.Role == RoleOwner {
		who = "owner_id"
	}
	where := fmt.Sprintf(`WHERE %s=$1 AND ($2='' OR status=$2)`, who)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bookings `+where, f.UserID, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	rows, err := r.pool.Query(ctx, `SELECT `+bookingColumns+` FROM bookings `+where+` ORDER BY requested_at DESC LIMIT $3 OFFSET $4`,
		f.UserID, string(f.Status), f.PerPage, (f.Page-1)*f.PerPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Booking
	for rows.Next() {
		b, err := scanBookingRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// SetPaymentResult stores the provider-side outcome for a booking.
func (r *Repository) SetPaymentResult(ctx context.Context, id int64, status PaymentStatus, transactionRef string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE bookings SET payment_status=$2, transaction_ref=$3, updated_at=NOW() WHERE id=$1`, id, string(status), transactionRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ListExpiryCandidates returns ids of pending bookings whose hold has lapsed.
func (r *Repository) ListExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	return r.listIDs(ctx, `SELECT id FROM bookings WHERE status='pending' AND expires_at < $1 ORDER BY id LIMIT $2`, now, limit)
}

// ListCompletionCandidates returns ids of confirmed bookings past checkout.
func (r *Repository) ListCompletionCandidates(ctx context.Context, today time.Time, limit int) ([]int64, error) {
	return r.listIDs(ctx, `SELECT id FROM bookings WHERE status='confirmed' AND end_date < $1 ORDER BY id LIMIT $2`, today, limit)
}

func (r *Repository) listIDs(ctx context.Context, query string, cutoff time.Time, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ExpireBooking conditionally transitions one lapsed pending hold. The
// status and expiry predicates make concurrent sweeps and racing user
// transitions safe: the row updates at most once.
func (r *Repository) ExpireBooking(ctx context.Context, id int64, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE bookings SET status='expired', updated_at=$2 WHERE id=$1 AND status='pending' AND expires_at < $2`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteBooking conditionally transitions one confirmed booking past
// checkout, stamping completed_at.
func (r *Repository) CompleteBooking(ctx context.Context, id int64, today, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE bookings SET status='completed', completed_at=$3, updated_at=$3 WHERE id=$1 AND status='confirmed' AND end_date < $2`, id, today, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type txRepo struct {
	tx pgx.Tx
}

// CreateBooking inserts a pending booking. The human-readable reference is
// formatted from an atomic sequence at insert time, never from a row count.
func (t *txRepo) CreateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO bookings (reference, unit_id, renter_id, owner_id, start_date, end_date, guests, special_requests,
status, subtotal, cleaning_fee, service_fee, discount, total, security_deposit, currency,
payment_status, transaction_ref, owner_response, reject_reason, cancel_reason, cancellation_fee, refund_amount,
requested_at, expires_at, updated_at)
VALUES ('AJ-' || to_char(NOW(), 'YYYY') || '-' || nextval('booking_reference_seq'),
$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, '', '', '', '', 0, 0, NOW(), $17, NOW())
RETURNING id, reference, requested_at, updated_at`,
		b.UnitID, b.RenterID, b.OwnerID, b.Range.Start, b.Range.End, b.Guests, b.SpecialRequests,
		string(b.Status), b.Pricing.Subtotal, b.Pricing.CleaningFee, b.Pricing.ServiceFee, b.Pricing.Discount,
		b.Pricing.Total, b.Pricing.SecurityDeposit, b.Currency, string(b.PaymentStatus), b.ExpiresAt).
		Scan(&b.ID, &b.Reference, &b.RequestedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBookingForUpdate loads and row-locks a booking.
func (t *txRepo) GetBookingForUpdate(ctx context.Context, id int64) (*Booking, error) {
	return scanBooking(t.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, id), id)
}

// UpdateBooking writes mutable columns guarded by the expected status.
func (t *txRepo) UpdateBooking(ctx context.Context, b *Booking, expected Status) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE bookings SET status=$2, payment_status=$3, transaction_ref=$4, owner_response=$5,
reject_reason=$6, cancel_reason=$7, cancellation_fee=$8, refund_amount=$9,
confirmed_at=$10, rejected_at=$11, cancelled_at=$12, completed_at=$13, updated_at=NOW()
WHERE id=$1 AND status=$14`,
		b.ID, string(b.Status), string(b.PaymentStatus), b.TransactionRef, b.OwnerResponse,
		b.RejectReason, b.CancelReason, b.CancellationFee, b.RefundAmount,
		b.ConfirmedAt, b.RejectedAt, b.CancelledAt, b.CompletedAt, string(expected))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanBooking(row pgx.Row, id int64) (*Booking, error) {
	b, err := scanBookingRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, shared.ErrNotFound)
	}
	return b, err
}

func scanBookingRow(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.Reference, &b.UnitID, &b.RenterID, &b.OwnerID, &b.Range.Start, &b.Range.End, &b.Guests, &b.SpecialRequests,
		&b.Status, &b.Pricing.Subtotal, &b.Pricing.CleaningFee, &b.Pricing.ServiceFee, &b.Pricing.Discount, &b.Pricing.Total, &b.Pricing.SecurityDeposit, &b.Currency,
		&b.PaymentStatus, &b.TransactionRef, &b.OwnerResponse, &b.RejectReason, &b.CancelReason, &b.CancellationFee, &b.RefundAmount,
		&b.RequestedAt, &b.ExpiresAt, &b.ConfirmedAt, &b.RejectedAt, &b.CancelledAt, &b.CompletedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
