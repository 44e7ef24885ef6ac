/**
 * @description
 * This file sets up the HTTP router for the ledger-service using the Chi
 * router. It defines public API routes, which require a user JWT, and
 * internal routes, which require the shared internal API key.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: The HTTP router.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vendora/ledger-service/internal/config"
)

// NewRouter creates and configures the main router for the service.
func NewRouter(h *LedgerHandlers, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Core middleware stack.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint for orchestration probes.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	})

	// Public routes, authenticated with a user JWT.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWKSURL))

		r.Post("/transfers", h.TransferHandler)
		r.Get("/accounts/me", h.GetMyAccountHandler)
		r.Get("/accounts/me/receipts", h.ListMyReceiptsHandler)

		r.Post("/subscriptions", h.PurchaseSubscriptionHandler)
		r.Get("/subscriptions/current", h.CurrentSubscriptionHandler)

		r.Post("/presence/heartbeat", h.HeartbeatHandler)
		r.Delete("/presence", h.OfflineHandler)
		r.Get("/presence/online", h.OnlineHandler)
	})

	// Internal routes, called service-to-service with the shared key.
	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))

		r.Post("/accounts", h.ProvisionAccountHandler)
		r.Get("/accounts/{accountID}", h.GetAccountHandler)
		r.Post("/accounts/{accountID}/disable", h.DisableAccountHandler)

		r.Post("/gifts", h.GiftHandler)

		r.Post("/verifications", h.GrantVerificationHandler)
		r.Delete("/verifications/{accountID}", h.RevokeVerificationHandler)
	})

	return r
}

// allowedOrigins splits the configured comma-separated origin list, falling
// back to a permissive wildcard set for local development.
func allowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"https://*", "http://*"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"https://*", "http://*"}
	}
	return origins
}
