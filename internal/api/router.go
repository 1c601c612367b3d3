package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(middleware.Timeout(60 * time.Second))

	// The consumer is a browser page served from its own origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Get("/settings", apiHandler.PublicSettingsHandler)

		// Chat session routes
		r.Post("/sessions", apiHandler.CreateSessionHandler)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", apiHandler.GetSessionHandler)
			r.Post("/login", apiHandler.SessionLoginHandler)
			r.Post("/messages", apiHandler.PostMessageHandler)
			r.Get("/history", apiHandler.SessionHistoryHandler)
		})

		// Admin routes
		r.Post("/admin/login", apiHandler.AdminLoginHandler)
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.AdminAuthMiddleware)

			r.Get("/admin/settings", apiHandler.AdminSettingsHandler)
			r.Put("/admin/settings/{key}", apiHandler.AdminUpdateSettingHandler)
		})
	})

	return r
}
