package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/api/handlers"
	mw "github.com/Harshitk-cp/kindred/internal/api/middleware"
	"github.com/Harshitk-cp/kindred/internal/buildconfig"
	"github.com/Harshitk-cp/kindred/internal/notify"
	"github.com/Harshitk-cp/kindred/internal/service"
)

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are what the HTTP surface is built from.
type Deps struct {
	Companion      *service.Companion
	Hub            *notify.Hub
	Store          Pinger
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *zap.Logger
}

// App holds the router and the counters behind /metrics.
type App struct {
	Router       *chi.Mux
	Companion    *service.Companion
	hub       *notify.Hub
	metrics   *mw.MetricsCollector
	startTime time.Time
}

func NewApp(d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	companionHandler := handlers.NewCompanionHandler(d.Companion)
	heartsHandler := handlers.NewHeartsHandler(d.Companion)
	memoryHandler := handlers.NewMemoryHandler(d.Companion, logger)
	eventsHandler := handlers.NewEventsHandler(d.Companion)
	routineHandler := handlers.NewRoutineHandler(d.Companion.Clock())

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Companion: d.Companion,
		hub:       d.Hub,
		metrics:   mw.NewMetricsCollector(),
		startTime: time.Now(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	if d.RateLimitRPS > 0 {
		r.Use(mw.RateLimit(d.RateLimitRPS, d.RateLimitBurst))
	}

	r.Get("/health", healthHandler(d.Store))
	r.Get("/metrics", app.metricsHandler())
	r.Get("/version", versionHandler)
	if d.Hub != nil {
		r.Method(http.MethodGet, "/ws", notify.WebsocketHandler(d.Hub, logger))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", companionHandler.Chat)
		r.Post("/like", companionHandler.Like)
		r.Post("/comment", companionHandler.Comment)
		r.Get("/gifts", companionHandler.Gifts)
		r.Post("/gifts/{id}", companionHandler.Gift)

		r.Route("/hearts", func(r chi.Router) {
			r.Get("/", heartsHandler.Get)
			r.Post("/collect", heartsHandler.Collect)
			r.Post("/spend", heartsHandler.Spend)
		})

		r.Route("/memory", func(r chi.Router) {
			r.Post("/diary", memoryHandler.Diary)
			r.Get("/recall", memoryHandler.Recall)
			r.Post("/churn", memoryHandler.Churn)
		})

		r.Get("/state", companionHandler.State)
		r.Get("/relationship", companionHandler.Relationship)
		r.Get("/relationship/tokens", companionHandler.Tokens)

		r.Get("/events", eventsHandler.List)
		r.Post("/events/force", eventsHandler.Force)
		r.Post("/events/{name}/force", eventsHandler.Force)

		r.Get("/routine", routineHandler.Get)
	})

	return app
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildconfig.VersionInfo())
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		hm := app.metrics.Snapshot()

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  hm.Requests,
			"error_count":    hm.Errors,
			"client_errors":  hm.ClientErrors,
			"server_errors":  hm.ServerErrors,
			"in_flight":      hm.InFlight,
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}
		if app.hub != nil {
			sent, dropped := app.hub.Stats()
			response["notifications"] = map[string]any{
				"subscribers": app.hub.Subscribers(),
				"sent":        sent,
				"dropped":     dropped,
			}
		}

		writeJSON(w, http.StatusOK, response)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
