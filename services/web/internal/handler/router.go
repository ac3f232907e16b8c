package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/vasapolrittideah/flowup/services/web/internal/config"
	"github.com/vasapolrittideah/flowup/services/web/internal/model"
	"github.com/vasapolrittideah/flowup/shared/interceptor"
	"github.com/vasapolrittideah/flowup/shared/utilities"
)

// AuthRoutes is the identity client as seen by the router.
type AuthRoutes interface {
	Login(w http.ResponseWriter, r *http.Request)
	Callback(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Session(r *http.Request) (*model.EnrichedSession, error)
}

// RouterConfig holds the optional parts of the router.
type RouterConfig struct {
	MetricsEnabled bool
	MetricsPath    string
	// MetricsGatherer defaults to the Prometheus default gatherer.
	MetricsGatherer prometheus.Gatherer
	HealthChecks    map[string]utilities.HealthCheck
}

// NewRouter mounts every route of the web service.
func NewRouter(
	authRoutes AuthRoutes,
	web *WebHandler,
	cfg RouterConfig,
	logger *zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(*logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/", web.Landing)
	r.Get("/healthz", utilities.HealthHandler(cfg.HealthChecks, 2*time.Second))

	if cfg.MetricsEnabled {
		gatherer := cfg.MetricsGatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Handle(cfg.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Get(config.LoginPath, authRoutes.Login)
	r.Get(config.CallbackPath, authRoutes.Callback)
	r.Get(config.LogoutPath, authRoutes.Logout)

	r.Group(func(r chi.Router) {
		r.Use(interceptor.RequireSession[*model.EnrichedSession](authRoutes.Session, interceptor.Options{
			LoginPath: config.LoginPath,
			APIPrefix: "/api/",
			Logger:    logger,
		}))

		r.Get("/d/workspaces", web.Workspaces)
		r.Get("/d/profiles", web.Profiles)
		r.Get("/api/token", web.Token)
	})

	return r
}
