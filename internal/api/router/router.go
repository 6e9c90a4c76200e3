package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/scoutlabs/pinecone-scout/internal/http/handlers"
	httpmiddleware "github.com/scoutlabs/pinecone-scout/internal/http/middleware"
	"github.com/scoutlabs/pinecone-scout/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Scout              *handlers.ScoutHandler
	AdminCatalog       *handlers.AdminCatalogHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints (root, health checks, metrics)
	r.Group(func(public chi.Router) {
		public.Get("/", cfg.Scout.Root)
		public.Get("/health", cfg.Scout.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		api.With(middleware.AllowContentType("application/json")).Group(func(body chi.Router) {
			body.Post("/recommend", cfg.Scout.Recommend)
			body.Post("/feedback", cfg.Scout.Feedback)
			body.Post("/predictive_suggest", cfg.Scout.PredictiveSuggest)
		})
		api.Get("/profile", cfg.Scout.Profile)
	})

	// Admin routes (protected by HS256 JWT with catalog:write scope)
	if cfg.AdminAuthSecret != "" && cfg.AdminCatalog != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, httpmiddleware.ScopeCatalogWrite))
			admin.Post("/catalog/items", cfg.AdminCatalog.ImportProducts)
			admin.Get("/feedback", cfg.AdminCatalog.ListFeedback)
		})
	}

	return r
}
