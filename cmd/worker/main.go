package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/atlas-journeys/atlas-journeys/internal/app"
	"github.com/atlas-journeys/atlas-journeys/internal/booking"
	"github.com/atlas-journeys/atlas-journeys/internal/catalog"
	jobmetrics "github.com/atlas-journeys/atlas-journeys/internal/jobs"
	"github.com/atlas-journeys/atlas-journeys/internal/platform/db"
	"github.com/atlas-journeys/atlas-journeys/internal/shared"
	"github.com/atlas-journeys/atlas-journeys/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)

	bookingRepo := booking.NewRepository(pool)
	catalogRepo := catalog.NewRepository(pool)
	// The sweeper only moves bookings between statuses; it never touches
	// payments or the ledger, so those collaborators stay nil.
	lifecycle := booking.NewService(bookingRepo, catalogRepo, nil, nil,
		auditLogger, nil, nil,
		booking.Config{HoldTTL: cfg.HoldTTL, MinStayDays: cfg.MinStayDays, MaxStayDays: cfg.MaxStayDays}, logger)

	metrics := jobmetrics.NewMetrics(nil)
	sweeper := jobs.NewSweeper(lifecycle, metrics, logger)
	maintenance := jobs.NewMaintenanceJob(shared.NewIdempotencyStore(pool), metrics, logger)

	expireTask, err := jobs.NewSweepExpireTask(jobs.SweepPayload{Limit: jobs.DefaultSweepLimit})
	if err != nil {
		logger.Error("build expire task", slog.Any("error", err))
		os.Exit(1)
	}
	completeTask, err := jobs.NewSweepCompleteTask(jobs.SweepPayload{Limit: jobs.DefaultSweepLimit})
	if err != nil {
		logger.Error("build complete task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.CleanupPayload{Retention: cfg.IdempotencyRetention})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Sweeper:   sweeper,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskIdempotencyCleanup, Handler: maintenance.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SweepCron, Task: expireTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.SweepCron, Task: completeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
