package api

import (
	"net/http"

	"github.com/dom/medtrack/internal/api/handlers"
	"github.com/dom/medtrack/internal/api/middleware"
	"github.com/dom/medtrack/internal/config"
	"github.com/dom/medtrack/internal/identity"
	"github.com/dom/medtrack/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func NewRouter(services *service.Services, resolver *identity.Resolver, cfg *config.Config, log zerolog.Logger) (http.Handler, error) {
	authRateLimit, err := middleware.NewIPRateLimiter(cfg.AuthRateLimit)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(middleware.NewSecure(middleware.SecureOptions(cfg.IsDevelopment())))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth, log)
	medicationHandler := handlers.NewMedicationHandler(services.Adherence, log)
	doseHandler := handlers.NewDoseHandler(services.Adherence, log)
	adminHandler := handlers.NewAdminHandler(services.Admin, log)
	requireAuth := middleware.Auth(services.Auth, resolver, log)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(authRateLimit)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/medications", func(r chi.Router) {
				r.Get("/", medicationHandler.List)
				r.Post("/", medicationHandler.Create)
				r.Get("/{id}", medicationHandler.Get)
				r.Patch("/{id}", medicationHandler.Update)
				r.Delete("/{id}", medicationHandler.Delete)
				r.Get("/{id}/doses", medicationHandler.ListDoses)
				r.Post("/{id}/doses", medicationHandler.RecordDose)
				r.Post("/{id}/doses/manual", medicationHandler.RecordManualDose)
			})

			r.Get("/history", doseHandler.History)
			r.Route("/doses", func(r chi.Router) {
				r.Get("/{id}", doseHandler.Get)
				r.Delete("/{id}", doseHandler.Delete)
			})

			// Admin routes; the admin service checks the role
			r.Route("/admin/users", func(r chi.Router) {
				r.Get("/", adminHandler.ListUsers)
				r.Post("/", adminHandler.CreateUser)
				r.Put("/{id}/role", adminHandler.SetRole)
				r.Delete("/{id}", adminHandler.DeleteUser)
			})
		})
	})

	return r, nil
}
