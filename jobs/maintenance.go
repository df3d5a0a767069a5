package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/atlas-journeys/atlas-journeys/internal/jobs"
	"github.com/atlas-journeys/atlas-journeys/internal/shared"
)

// TaskIdempotencyCleanup prunes idempotency keys past retention.
const TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"

// CleanupPayload carries the retention window.
type CleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask(payload CleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// MaintenanceJob prunes bookkeeping tables.
type MaintenanceJob struct {
	store   *shared.IdempotencyStore
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewMaintenanceJob constructs the job.
func NewMaintenanceJob(store *shared.IdempotencyStore, metrics *jobmetrics.Metrics, logger *slog.Logger) *MaintenanceJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceJob{store: store, metrics: metrics, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *MaintenanceJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		payload.Retention = 72 * time.Hour
	}
	tracker := j.metrics.Track("idempotency_cleanup")
	if err := j.store.Cleanup(ctx, payload.Retention); err != nil {
		j.logger.Error("idempotency cleanup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}
