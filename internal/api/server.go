package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terra-clan/pathway-engine/internal/auth"
	"github.com/terra-clan/pathway-engine/internal/catalog"
	"github.com/terra-clan/pathway-engine/internal/config"
	"github.com/terra-clan/pathway-engine/internal/health"
	"github.com/terra-clan/pathway-engine/internal/observability"
	"github.com/terra-clan/pathway-engine/internal/tracker"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	manager        tracker.Manager
	catalog        *catalog.Catalog
	health         *health.Registry
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	manager tracker.Manager,
	cat *catalog.Catalog,
	registry *health.Registry,
	clients ClientStore,
	tokens auth.Config,
) *Server {
	s := &Server{
		config:         cfg,
		manager:        manager,
		catalog:        cat,
		health:         registry,
		authMiddleware: NewAuthMiddleware(clients, tokens),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	mw := s.authMiddleware
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Authenticate)

		// Live connections outlive any request timeout
		r.With(mw.RequireUserAccess, mw.RequirePermission("dashboard:read")).
			Get("/users/{userID}/live", s.handleLive)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Use(mw.RequireUserAccess)

				r.Route("/activities", func(r chi.Router) {
					r.With(mw.RequirePermission("activities:read")).Get("/", s.handleListActivities)
					r.With(mw.RequirePermission("activities:write")).Post("/", s.handleCreateActivity)
					r.With(mw.RequirePermission("activities:read")).Get("/{id}", s.handleGetActivity)
					r.With(mw.RequirePermission("activities:write")).Put("/{id}", s.handleUpdateActivity)
					r.With(mw.RequirePermission("activities:write")).Delete("/{id}", s.handleDeleteActivity)
				})

				r.Route("/tasks", func(r chi.Router) {
					r.With(mw.RequirePermission("tasks:read")).Get("/", s.handleListTasks)
					r.With(mw.RequirePermission("tasks:write")).Post("/", s.handleCreateTask)
					r.With(mw.RequirePermission("tasks:write")).Put("/{id}", s.handleUpdateTask)
					r.With(mw.RequirePermission("tasks:write")).Post("/{id}/complete", s.handleCompleteTask)
					r.With(mw.RequirePermission("tasks:write")).Delete("/{id}", s.handleDeleteTask)
				})

				r.Route("/events", func(r chi.Router) {
					r.With(mw.RequirePermission("events:read")).Get("/", s.handleListEvents)
					r.With(mw.RequirePermission("events:write")).Post("/", s.handleCreateEvent)
					r.With(mw.RequirePermission("events:write")).Delete("/{id}", s.handleDeleteEvent)
				})

				r.With(mw.RequirePermission("profile:read")).Get("/profile", s.handleGetProfile)
				r.With(mw.RequirePermission("profile:write")).Put("/profile", s.handleUpsertProfile)

				r.With(mw.RequirePermission("dashboard:read")).Get("/dashboard", s.handleDashboard)
				r.With(mw.RequirePermission("dashboard:read")).Get("/pathway", s.handlePathway)
			})

			// Catalog
			r.With(mw.RequirePermission("catalog:read")).Get("/specialties", s.handleListSpecialties)
			r.With(mw.RequirePermission("catalog:read")).Get("/specialties/{id}", s.handleGetSpecialty)
			r.With(mw.RequirePermission("catalog:read")).Get("/guidelines", s.handleListGuidelines)

			r.With(mw.RequirePermission("dashboard:read")).Post("/progress", s.handleProgress)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog and records request metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			elapsed := time.Since(start)

			var route string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			observability.RecordRequest(r.Method, route, ww.Status(), elapsed)

			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
