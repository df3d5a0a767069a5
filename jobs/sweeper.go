package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/atlas-journeys/atlas-journeys/internal/booking"
	jobmetrics "github.com/atlas-journeys/atlas-journeys/internal/jobs"
)

// Lifecycle is the transition surface the sweeper consumes. Both sweeps are
// idempotent: each row is a conditional update, so overlapping runs never
// double-apply a transition.
type Lifecycle interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
	SweepCompleted(ctx context.Context, limit int) (int, error)
}

// Sweeper drives the periodic expiry and completion passes.
type Sweeper struct {
	lifecycle Lifecycle
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(lifecycle Lifecycle, metrics *jobmetrics.Metrics, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{lifecycle: lifecycle, metrics: metrics, logger: logger}
}

// HandleSweepExpire processes TaskSweepExpire tasks.
func (s *Sweeper) HandleSweepExpire(ctx context.Context, t *asynq.Task) error {
	limit, err := sweepLimit(t)
	if err != nil {
		return asynq.SkipRetry
	}
	tracker := s.metrics.Track("sweep_expire")
	swept, err := s.lifecycle.SweepExpired(ctx, limit)
	if err != nil {
		s.logger.Error("expiry sweep aborted", slog.Any("error", err))
		return tracker.End(err)
	}
	s.metrics.AddTransitions(string(booking.StatusExpired), swept)
	if swept > 0 {
		s.logger.Info("expiry sweep finished", slog.Int("expired", swept))
	}
	return tracker.End(nil)
}

// HandleSweepComplete processes TaskSweepComplete tasks.
func (s *Sweeper) HandleSweepComplete(ctx context.Context, t *asynq.Task) error {
	limit, err := sweepLimit(t)
	if err != nil {
		return asynq.SkipRetry
	}
	tracker := s.metrics.Track("sweep_complete")
	swept, err := s.lifecycle.SweepCompleted(ctx, limit)
	if err != nil {
		s.logger.Error("completion sweep aborted", slog.Any("error", err))
		return tracker.End(err)
	}
	s.metrics.AddTransitions(string(booking.StatusCompleted), swept)
	if swept > 0 {
		s.logger.Info("completion sweep finished", slog.Int("completed", swept))
	}
	return tracker.End(nil)
}

func sweepLimit(t *asynq.Task) (int, error) {
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return 0, err
	}
	if payload.Limit <= 0 {
		payload.Limit = DefaultSweepLimit
	}
	return payload.Limit, nil
}
