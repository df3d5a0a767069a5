package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/atlas-journeys/atlas-journeys/internal/app"
	"github.com/atlas-journeys/atlas-journeys/internal/availability"
	"github.com/atlas-journeys/atlas-journeys/internal/booking"
	"github.com/atlas-journeys/atlas-journeys/internal/catalog"
	"github.com/atlas-journeys/atlas-journeys/internal/identity"
	"github.com/atlas-journeys/atlas-journeys/internal/observability"
	"github.com/atlas-journeys/atlas-journeys/internal/payment"
	"github.com/atlas-journeys/atlas-journeys/internal/platform/cache"
	"github.com/atlas-journeys/atlas-journeys/internal/platform/db"
	"github.com/atlas-journeys/atlas-journeys/internal/shared"
	"github.com/atlas-journeys/atlas-journeys/jobs"
)

// unitSource adapts the catalog repository for availability authorization.
type unitSource struct {
	repo *catalog.Repository
}

func (u unitSource) GetUnitInfo(ctx context.Context, id int64) (*availability.UnitInfo, error) {
	unit, err := u.repo.GetUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	return &availability.UnitInfo{ID: unit.ID, OwnerID: unit.OwnerID, Active: unit.Active}, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, availability caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	availabilityRepo := availability.NewRepository(pool)
	availabilityCache := availability.NewCache(redisClient, cfg.AvailabilityTTL)
	availabilityService := availability.NewService(availabilityRepo, unitSource{repo: catalogRepo}, availabilityCache, logger)
	availabilityHandler := availability.NewHandler(logger, availabilityService)

	paymentClient := payment.NewClient(cfg.PaymentURL)
	if err := paymentClient.Ping(ctx); err != nil {
		logger.Warn("payment provider ping", slog.Any("error", err))
	}

	identityRepo := identity.NewRepository(pool)

	bookingRepo := booking.NewRepository(pool)
	bookingService := booking.NewService(bookingRepo, catalogRepo, identityRepo, paymentClient,
		auditLogger, idempotencyStore, availabilityService,
		booking.Config{HoldTTL: cfg.HoldTTL, MinStayDays: cfg.MinStayDays, MaxStayDays: cfg.MaxStayDays}, logger)
	bookingService.SetTransitionObserver(metrics)
	bookingHandler := booking.NewHandler(logger, bookingService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		BookingHandler:      bookingHandler,
		AvailabilityHandler: availabilityHandler,
		CatalogHandler:      catalogHandler,
		JobHandler:          jobHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
