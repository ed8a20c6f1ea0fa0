// Package router wires the HTTP surface: public webhook routes for the
// WhatsApp providers and JWT-protected operator routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/karibuhq/karibu-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/karibuhq/karibu-ai-platform/internal/http/middleware"
	"github.com/karibuhq/karibu-ai-platform/internal/messaging"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	MessagingHandler   *messaging.Handler
	AdminBookings      *handlers.AdminBookingsHandler
	AdminConversations *handlers.AdminConversationsHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
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

	// Public endpoints: provider webhooks and health checks.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MessagingHandler != nil {
			public.Route("/webhooks", func(wh chi.Router) {
				wh.Post("/twilio/whatsapp", cfg.MessagingHandler.TwilioWebhook)
				wh.Get("/meta/whatsapp", cfg.MessagingHandler.MetaVerify)
				wh.Post("/meta/whatsapp", cfg.MessagingHandler.MetaWebhook)
			})
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Operator endpoints, JWT-protected. With no secret configured the
	// middleware rejects everything, so the routes stay mounted.
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		if cfg.AdminConversations != nil {
			admin.Get("/conversations/active", cfg.AdminConversations.ActiveConversations)
		}
		admin.Route("/orgs/{orgID}", func(org chi.Router) {
			if cfg.AdminBookings != nil {
				org.Get("/bookings", cfg.AdminBookings.ListBookings)
				org.Get("/bookings/{bookingID}", cfg.AdminBookings.GetBooking)
				org.Post("/bookings/{bookingID}/status", cfg.AdminBookings.UpdateBookingStatus)
			}
			if cfg.AdminConversations != nil {
				org.Get("/conversations", cfg.AdminConversations.ListConversations)
				org.Get("/conversations/{phone}", cfg.AdminConversations.GetTranscript)
				org.Delete("/conversations/{phone}", cfg.AdminConversations.EndConversation)
			}
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
