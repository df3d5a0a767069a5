// Package booking owns the reservation lifecycle state machine. Pending
// holds are soft: overlapping holds may coexist and the ledger is only
// consulted for committed entries. Confirmation re-validates availability
// inside the transaction, so the first confirmation wins and later ones
// observe a conflict. This is deliberate policy, not a missing check.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atlas-journeys/atlas-journeys/internal/availability"
	"github.com/atlas-journeys/atlas-journeys/internal/catalog"
	"github.com/atlas-journeys/atlas-journeys/internal/identity"
	"github.com/atlas-journeys/atlas-journeys/internal/payment"
	"github.com/atlas-journeys/atlas-journeys/internal/pricing"
	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

// CancellationFeePercent applies when a confirmed booking is cancelled
// close to check-in.
const CancellationFeePercent = 0.20

// CancellationFeeWindowDays is the close-to-check-in threshold.
const CancellationFeeWindowDays = 7

// Config bounds the lifecycle.
type Config struct {
	HoldTTL     time.Duration
	MinStayDays int
	MaxStayDays int
}

// DefaultConfig returns production lifecycle bounds.
func DefaultConfig() Config {
	return Config{HoldTTL: 48 * time.Hour, MinStayDays: 1, MaxStayDays: 90}
}

// Auditor records lifecycle transitions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyGuard deduplicates retried create requests.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// CacheInvalidator is notified whenever the ledger changes.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// TransitionObserver counts lifecycle transitions for monitoring.
type TransitionObserver interface {
	ObserveTransition(status string)
}

// Service is the booking lifecycle manager.
type Service struct {
	store    Store
	units    catalog.UnitReader
	profiles identity.Reader
	payments payment.Charger
	audit    Auditor
	idem     IdempotencyGuard
	ledger   CacheInvalidator
	cfg      Config
	logger   *slog.Logger
	validate *validator.Validate
	observer TransitionObserver
	now      func() time.Time
}

// NewService constructs the lifecycle manager. payments, audit, idem, and
// ledger may be nil in tests; the service degrades to skipping them.
func NewService(store Store, units catalog.UnitReader, profiles identity.Reader, payments payment.Charger,
	audit Auditor, idem IdempotencyGuard, ledger CacheInvalidator, cfg Config, logger *slog.Logger) *Service {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 48 * time.Hour
	}
	if cfg.MinStayDays <= 0 {
		cfg.MinStayDays = 1
	}
	if cfg.MaxStayDays <= 0 {
		cfg.MaxStayDays = 90
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		units:    units,
		profiles: profiles,
		payments: payments,
		audit:    audit,
		idem:     idem,
		ledger:   ledger,
		cfg:      cfg,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// SetTransitionObserver attaches an optional metrics sink for transitions.
func (s *Service) SetTransitionObserver(o TransitionObserver) {
	s.observer = o
}

func (s *Service) observeTransition(status Status) {
	if s.observer != nil {
		s.observer.ObserveTransition(string(status))
	}
}

// Create validates a request and persists a pending hold. Overlap against
// committed entries is checked, but overlapping pending holds are allowed.
func (s *Service) Create(ctx context.Context, input CreateInput, idempotencyKey string) (*Booking, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	rng, err := availability.ParseDateRange(input.CheckIn, input.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if !rng.Valid() {
		return nil, fmt.Errorf("%w: check-out must be after check-in", shared.ErrValidation)
	}
	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	if rng.Start.Before(today) {
		return nil, fmt.Errorf("%w: check-in date is in the past", shared.ErrValidation)
	}
	nights := rng.Nights()
	if nights < s.cfg.MinStayDays || nights > s.cfg.MaxStayDays {
		return nil, fmt.Errorf("%w: stay length %d nights outside [%d, %d]", shared.ErrValidation, nights, s.cfg.MinStayDays, s.cfg.MaxStayDays)
	}

	unit, err := s.units.GetUnit(ctx, input.UnitID)
	if err != nil {
		return nil, err
	}
	if !unit.Active {
		return nil, fmt.Errorf("%w: unit %d is not accepting bookings", shared.ErrValidation, unit.ID)
	}
	if input.Guests > unit.Capacity {
		return nil, fmt.Errorf("%w: %d guests exceeds capacity %d", shared.ErrValidation, input.Guests, unit.Capacity)
	}
	if input.RenterID == unit.OwnerID {
		return nil, fmt.Errorf("%w: owners cannot book their own unit", shared.ErrValidation)
	}

	if idempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idempotencyKey, "booking.create"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, fmt.Errorf("%w: request already processed", shared.ErrConflict)
			}
			return nil, err
		}
	}

	b := &Booking{
		UnitID:          unit.ID,
		RenterID:        input.RenterID,
		OwnerID:         unit.OwnerID,
		Range:           rng,
		Guests:          input.Guests,
		SpecialRequests: input.SpecialRequests,
		Status:          StatusPending,
		Pricing:         pricing.Calculate(unit.NightlyPrice, unit.CleaningFee, unit.SecurityDeposit, nights),
		Currency:        unit.Currency,
		PaymentStatus:   PaymentUnpaid,
		ExpiresAt:       now.Add(s.cfg.HoldTTL),
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		conflict, err := tx.Ledger().FindConflict(ctx, unit.ID, rng, 0)
		if err != nil {
			return err
		}
		if conflict != nil {
			return &availability.ConflictError{UnitID: unit.ID, Conflict: *conflict}
		}
		if _, err := tx.Bookings().CreateBooking(ctx, b); err != nil {
			return err
		}
		return tx.Units().IncrementRequested(ctx, unit.ID)
	})
	if err != nil {
		if idempotencyKey != "" && s.idem != nil {
			_ = s.idem.Delete(ctx, idempotencyKey)
		}
		return nil, err
	}

	s.observeTransition(StatusPending)
	s.recordAudit(ctx, input.RenterID, "booking.create", b, map[string]any{"range": rng.String(), "total": b.Pricing.Total})
	return b, nil
}

// Confirm accepts a pending hold. It locks the unit row so competing
// confirmations for the same unit serialize, then re-checks the ledger
// excluding this booking; exactly one of two overlapping holds can win.
func (s *Service) Confirm(ctx context.Context, bookingID int64, input ConfirmInput) (*Booking, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	now := s.now().UTC()
	var confirmed *Booking
	var lapsedAt time.Time
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Bookings().GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.RoleOf(input.OwnerID) != RoleOwner {
			return fmt.Errorf("%w: only the owner can confirm booking %d", shared.ErrForbidden, bookingID)
		}
		if b.Status != StatusPending {
			return fmt.Errorf("%w: cannot confirm booking in status %q", shared.ErrState, b.Status)
		}
		if now.After(b.ExpiresAt) {
			// Lazy expiry: the transition must commit even though the
			// confirmation itself fails, so return nil here and surface
			// the state error after the transaction.
			b.Status = StatusExpired
			if _, err := tx.Bookings().UpdateBooking(ctx, b, StatusPending); err != nil {
				return err
			}
			lapsedAt = b.ExpiresAt
			return nil
		}

		unit, err := tx.Units().GetUnitForUpdate(ctx, b.UnitID)
		if err != nil {
			return err
		}
		conflict, err := tx.Ledger().FindConflict(ctx, b.UnitID, b.Range, b.ID)
		if err != nil {
			return err
		}
		if conflict != nil {
			return &availability.ConflictError{UnitID: b.UnitID, Conflict: *conflict}
		}

		current := pricing.Calculate(unit.NightlyPrice, unit.CleaningFee, unit.SecurityDeposit, b.Range.Nights())
		if current.Total != b.Pricing.Total {
			s.logger.Warn("price drift between hold and confirmation",
				slog.Int64("booking_id", b.ID),
				slog.Float64("held_total", b.Pricing.Total),
				slog.Float64("current_total", current.Total))
		}

		b.Status = StatusConfirmed
		b.OwnerResponse = input.OwnerResponse
		b.ConfirmedAt = &now
		ok, err := tx.Bookings().UpdateBooking(ctx, b, StatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: booking %d changed concurrently", shared.ErrState, b.ID)
		}
		if err := tx.Ledger().Reserve(ctx, b.UnitID, b.ID, b.Range); err != nil {
			return err
		}
		if err := tx.Units().IncrementConfirmed(ctx, b.UnitID); err != nil {
			return err
		}
		confirmed = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !lapsedAt.IsZero() {
		s.observeTransition(StatusExpired)
		return nil, fmt.Errorf("%w: hold expired at %s", shared.ErrState, lapsedAt.Format(time.RFC3339))
	}

	s.observeTransition(StatusConfirmed)
	s.invalidateLedgerCache(ctx)
	s.chargePayment(ctx, confirmed)
	s.recordAudit(ctx, input.OwnerID, "booking.confirm", confirmed, map[string]any{"range": confirmed.Range.String()})
	return confirmed, nil
}

// Reject refuses a pending hold.
func (s *Service) Reject(ctx context.Context, bookingID int64, input RejectInput) (*Booking, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	now := s.now().UTC()
	var rejected *Booking
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Bookings().GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.RoleOf(input.OwnerID) != RoleOwner {
			return fmt.Errorf("%w: only the owner can reject booking %d", shared.ErrForbidden, bookingID)
		}
		if b.Status != StatusPending {
			return fmt.Errorf("%w: cannot reject booking in status %q", shared.ErrState, b.Status)
		}
		b.Status = StatusRejected
		b.RejectReason = input.Reason
		b.RejectedAt = &now
		ok, err := tx.Bookings().UpdateBooking(ctx, b, StatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: booking %d changed concurrently", shared.ErrState, b.ID)
		}
		rejected = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.observeTransition(StatusRejected)
	s.recordAudit(ctx, input.OwnerID, "booking.reject", rejected, map[string]any{"reason": input.Reason})
	return rejected, nil
}

// Cancel ends a pending or confirmed booking. A confirmed booking cancelled
// within the fee window forfeits 20% of the total; the fee applies whether
// or not the charge settled, and the refund is the remainder.
func (s *Service) Cancel(ctx context.Context, bookingID int64, input CancelInput) (*Booking, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	var cancelled *Booking
	var wasConfirmed bool
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Bookings().GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		role := b.RoleOf(input.UserID)
		if role == "" {
			return fmt.Errorf("%w: user %d is neither renter nor owner of booking %d", shared.ErrForbidden, input.UserID, bookingID)
		}
		if b.Status != StatusPending && b.Status != StatusConfirmed {
			return fmt.Errorf("%w: cannot cancel booking in status %q", shared.ErrState, b.Status)
		}
		prior := b.Status
		wasConfirmed = prior == StatusConfirmed

		fee := 0.0
		if wasConfirmed {
			daysUntilCheckin := int(b.Range.Start.Sub(today).Hours() / 24)
			if daysUntilCheckin < CancellationFeeWindowDays {
				fee = pricing.Round2(b.Pricing.Total * CancellationFeePercent)
			}
		}
		b.CancellationFee = fee
		b.RefundAmount = pricing.Round2(b.Pricing.Total - fee)
		b.CancelReason = input.Reason
		b.CancelledAt = &now
		if role == RoleOwner {
			b.Status = StatusCancelledByOwner
		} else {
			b.Status = StatusCancelledByRenter
		}
		ok, err := tx.Bookings().UpdateBooking(ctx, b, prior)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: booking %d changed concurrently", shared.ErrState, b.ID)
		}
		if wasConfirmed {
			if err := tx.Ledger().Release(ctx, b.ID); err != nil {
				return err
			}
		}
		cancelled = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if wasConfirmed {
		s.invalidateLedgerCache(ctx)
		s.refundPayment(ctx, cancelled)
	}
	s.observeTransition(cancelled.Status)
	s.recordAudit(ctx, input.UserID, "booking.cancel", cancelled, map[string]any{
		"reason": input.Reason, "fee": cancelled.CancellationFee, "refund": cancelled.RefundAmount,
	})
	return cancelled, nil
}

// Get returns the booking view for its renter or owner.
func (s *Service) Get(ctx context.Context, bookingID, requesterID int64) (*View, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.RoleOf(requesterID) == "" {
		return nil, fmt.Errorf("%w: user %d cannot view booking %d", shared.ErrForbidden, requesterID, bookingID)
	}
	view := &View{Booking: *b}
	if unit, err := s.units.GetUnit(ctx, b.UnitID); err == nil {
		view.UnitName = unit.Name
	}
	if s.profiles != nil {
		if renter, err := s.profiles.GetProfile(ctx, b.RenterID); err == nil {
			view.Renter = renter
		}
		if owner, err := s.profiles.GetProfile(ctx, b.OwnerID); err == nil {
			view.Owner = owner
		}
	}
	return view, nil
}

// List returns a page of the user's bookings as renter or owner.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Booking, shared.Pagination, error) {
	if f.Role != RoleRenter && f.Role != RoleOwner {
		return nil, shared.Pagination{}, fmt.Errorf("%w: role must be renter or owner", shared.ErrValidation)
	}
	if f.UserID <= 0 {
		return nil, shared.Pagination{}, fmt.Errorf("%w: user_id required", shared.ErrValidation)
	}
	if f.Status != "" && !validStatus(f.Status) {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, f.Status)
	}
	items, total, err := s.store.ListBookings(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(f.Page, f.PerPage, total), nil
}

// SweepExpired transitions lapsed pending holds to expired. Each row is a
// conditional update, so re-running the sweep or racing a user transition
// applies nothing twice. Failures are logged and skipped.
func (s *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()
	ids, err := s.store.ListExpiryCandidates(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, id := range ids {
		ok, err := s.store.ExpireBooking(ctx, id, now)
		if err != nil {
			s.logger.Error("expire sweep failed for booking", slog.Int64("booking_id", id), slog.Any("error", err))
			continue
		}
		if ok {
			swept++
			s.observeTransition(StatusExpired)
			s.recordAudit(ctx, 0, "booking.expire", &Booking{ID: id}, nil)
		}
	}
	return swept, nil
}

// SweepCompleted transitions confirmed bookings past checkout to completed.
func (s *Service) SweepCompleted(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	ids, err := s.store.ListCompletionCandidates(ctx, today, limit)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, id := range ids {
		ok, err := s.store.CompleteBooking(ctx, id, today, now)
		if err != nil {
			s.logger.Error("completion sweep failed for booking", slog.Int64("booking_id", id), slog.Any("error", err))
			continue
		}
		if ok {
			swept++
			s.observeTransition(StatusCompleted)
			s.recordAudit(ctx, 0, "booking.complete", &Booking{ID: id}, nil)
		}
	}
	return swept, nil
}

func (s *Service) chargePayment(ctx context.Context, b *Booking) {
	if s.payments == nil {
		return
	}
	result, err := s.payments.Charge(ctx, payment.ChargeRequest{
		BookingRef: b.Reference,
		PayerID:    b.RenterID,
		Amount:     b.Pricing.Total,
		Currency:   b.Currency,
	})
	if err != nil {
		s.logger.Warn("payment charge failed, booking stays confirmed",
			slog.Int64("booking_id", b.ID), slog.Any("error", err))
		_ = s.store.SetPaymentResult(ctx, b.ID, PaymentFailed, "")
		b.PaymentStatus = PaymentFailed
		return
	}
	if err := s.store.SetPaymentResult(ctx, b.ID, PaymentCharged, result.TransactionRef); err != nil {
		s.logger.Error("recording payment result failed", slog.Int64("booking_id", b.ID), slog.Any("error", err))
		return
	}
	b.PaymentStatus = PaymentCharged
	b.TransactionRef = result.TransactionRef
}

func (s *Service) refundPayment(ctx context.Context, b *Booking) {
	if s.payments == nil || b.PaymentStatus != PaymentCharged || b.TransactionRef == "" {
		return
	}
	if err := s.payments.Refund(ctx, b.TransactionRef, b.RefundAmount); err != nil {
		s.logger.Warn("payment refund failed, needs reconciliation",
			slog.Int64("booking_id", b.ID), slog.Any("error", err))
		return
	}
	if err := s.store.SetPaymentResult(ctx, b.ID, PaymentRefunded, b.TransactionRef); err != nil {
		s.logger.Error("recording refund result failed", slog.Int64("booking_id", b.ID), slog.Any("error", err))
		return
	}
	b.PaymentStatus = PaymentRefunded
}

func (s *Service) invalidateLedgerCache(ctx context.Context) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.InvalidateCache(ctx); err != nil {
		s.logger.Warn("availability cache invalidation failed", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, b *Booking, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "booking",
		EntityID: fmt.Sprintf("%d", b.ID),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func validStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusExpired,
		StatusCancelledByRenter, StatusCancelledByOwner, StatusCompleted:
		return true
	}
	return false
}
