package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atlas-journeys/atlas-journeys/internal/availability"
	"github.com/atlas-journeys/atlas-journeys/internal/booking"
	"github.com/atlas-journeys/atlas-journeys/internal/catalog"
	"github.com/atlas-journeys/atlas-journeys/internal/observability"
	"github.com/atlas-journeys/atlas-journeys/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	BookingHandler      *booking.Handler
	AvailabilityHandler *availability.Handler
	CatalogHandler      *catalog.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with Atlas defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.BookingHandler != nil {
			r.Route("/bookings", params.BookingHandler.MountRoutes)
		}
		if params.CatalogHandler != nil {
			r.Route("/units", func(r chi.Router) {
				params.CatalogHandler.MountRoutes(r)
				if params.AvailabilityHandler != nil {
					params.AvailabilityHandler.MountUnitRoutes(r)
				}
			})
		}
		if params.AvailabilityHandler != nil {
			r.Route("/blackouts", params.AvailabilityHandler.MountBlackoutRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
