// Package router assembles the HTTP surface: the rep-facing API, the
// public prospect endpoints, billing webhooks, and operational routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/signalhq/signal/internal/accounts"
	"github.com/signalhq/signal/internal/api/respond"
	"github.com/signalhq/signal/internal/billing"
	httpmiddleware "github.com/signalhq/signal/internal/http/middleware"
	"github.com/signalhq/signal/internal/insights"
	"github.com/signalhq/signal/internal/signals"
	"github.com/signalhq/signal/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	SignalsHandler  *signals.Handler
	BillingHandler  *billing.Handler
	InsightsHandler *insights.Handler
	SettingsHandler *accounts.Handler

	// SessionSecret signs hosted-identity tokens. Empty rejects every
	// rep-facing request; prospect endpoints stay open.
	SessionSecret string

	CORSAllowedOrigins []string
	MetricsHandler     http.Handler

	// Per-IP rate limit, mainly for the sessionless prospect endpoints.
	// Zero disables limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	requireSession := httpmiddleware.SessionJWT(cfg.SessionSecret)

	r.Route("/api", func(api chi.Router) {
		if cfg.SignalsHandler != nil {
			api.Mount("/signals", cfg.SignalsHandler.Routes(requireSession))
		}
		if cfg.BillingHandler != nil {
			api.Mount("/billing", cfg.BillingHandler.Routes(requireSession))
		}
		if cfg.InsightsHandler != nil {
			api.Mount("/insights", cfg.InsightsHandler.Routes(requireSession))
		}
		if cfg.SettingsHandler != nil {
			api.Mount("/settings", cfg.SettingsHandler.Routes(requireSession))
		}
	})

	return r
}
