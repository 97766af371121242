package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/workforge/relay/internal/api/middleware"
	"github.com/workforge/relay/internal/auth"
	"github.com/workforge/relay/internal/handlers"
	"github.com/workforge/relay/internal/relay"
	"github.com/workforge/relay/internal/store"
	"github.com/workforge/relay/internal/ws"
)

// NewRouter creates and configures the HTTP router, including the
// websocket endpoint the relay runs over.
func NewRouter(logger zerolog.Logger, db store.DataStore, redisStore *store.RedisStore, rel *relay.Relay, gateway *ws.Gateway, resolver auth.Resolver) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024))

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	limiter := middleware.NewRateLimiter(redisStore.Client(), logger)
	r.Use(limiter.Middleware)

	// CORS - the dashboard is served from a separate origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(db, redisStore, rel)
	authmw := middleware.NewAuthMiddleware(resolver)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Realtime endpoint; authentication happens in-band at announce.
	r.Get("/ws", gateway.HandleWS)

	// Public routes (no auth required)
	r.Get("/api", h.Root)
	r.Get("/health", h.Health)
	r.Get("/presence", h.Presence)
	r.Get("/stats", h.Stats)
	r.Get("/calls/{id}/chat", h.GetChatHistory)
	r.Get("/calls/{id}/attendance", h.GetAttendance)

	// Authenticated routes (require bearer token)
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth)

		r.Post("/dm/{id}", h.SendDM)
		r.Get("/dm", h.GetDMs)
	})

	return r
}
