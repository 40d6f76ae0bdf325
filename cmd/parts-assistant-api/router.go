// Package main provides the API router setup.
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/cmd/parts-assistant-api/handlers"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/cmd/parts-assistant-api/middleware"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/app"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, a *app.App, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Trace)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(a.Config.Server.AllowedOrigins))
	if requestTimeout > 0 {
		r.Use(chimiddleware.Timeout(requestTimeout))
	}

	chat := handlers.NewChatHandler(logger, a.Router)
	parts := handlers.NewCatalogHandler(logger, a.Store, a.FastLookup)
	admin := handlers.NewAdminHandler(logger, a)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Appliance Parts Assistant API","status":"running"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", chat.Chat)
		r.Get("/debug/conversation/{id}", chat.DebugConversation)

		r.Get("/health", admin.Health)
		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", admin.CacheStats)
			r.Post("/clear", admin.ClearCache)
		})

		r.Route("/search", func(r chi.Router) {
			r.Post("/parts", parts.SearchParts)
			r.Post("/repairs", parts.SearchRepairs)
		})
		r.Get("/part/{id}", parts.GetPart)
		r.Post("/compatibility", parts.Compatibility)
	})

	return r
}
