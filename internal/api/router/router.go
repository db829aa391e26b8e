// Package router assembles the HTTP surface: public provider webhooks and
// webchat, the JWT-protected merchant dashboard, and the platform admin API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tajirhq/tajir-ai-platform/internal/appointments"
	"github.com/tajirhq/tajir-ai-platform/internal/billing"
	"github.com/tajirhq/tajir-ai-platform/internal/catalog"
	"github.com/tajirhq/tajir-ai-platform/internal/channels/instagram"
	"github.com/tajirhq/tajir-ai-platform/internal/channels/messenger"
	"github.com/tajirhq/tajir-ai-platform/internal/channels/whatsapp"
	"github.com/tajirhq/tajir-ai-platform/internal/conversation"
	"github.com/tajirhq/tajir-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/tajirhq/tajir-ai-platform/internal/http/middleware"
	"github.com/tajirhq/tajir-ai-platform/internal/orders"
	"github.com/tajirhq/tajir-ai-platform/internal/shops"
	"github.com/tajirhq/tajir-ai-platform/internal/webchat"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// Config holds router configuration. Handlers left nil have their routes
// skipped so the API binary and tests wire only what they need.
type Config struct {
	Logger *logging.Logger

	ShopsHandler        *shops.Handler
	ConversationHandler *conversation.Handler
	OrdersHandler       *orders.Handler
	CatalogHandler      *catalog.Handler
	AppointmentsHandler *appointments.Handler
	StatsHandler        *handlers.StatsHandler
	BillingOverride     *billing.OverrideHandler
	BillingWebhook      *billing.WebhookHandler

	WhatsAppWebhook  *whatsapp.WebhookHandler
	InstagramWebhook *instagram.WebhookHandler
	MessengerWebhook *messenger.WebhookHandler

	WebchatHandler  *webchat.Handler
	RealtimeHandler http.Handler
	MetricsHandler  http.Handler

	AdminAuthSecret     string
	DashboardAuthSecret string
	CORSAllowedOrigins  []string

	// Rate limiting for the anonymous webchat surface. Zero disables it.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
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

	// Public endpoints (webhooks, webchat, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", handleHealth)

		if cfg.WhatsAppWebhook != nil {
			public.Get("/webhooks/whatsapp", cfg.WhatsAppWebhook.HandleVerification)
			public.Post("/webhooks/whatsapp", cfg.WhatsAppWebhook.HandleInbound)
		}
		if cfg.InstagramWebhook != nil {
			public.Get("/webhooks/instagram", cfg.InstagramWebhook.HandleVerification)
			public.Post("/webhooks/instagram", cfg.InstagramWebhook.HandleInbound)
		}
		if cfg.MessengerWebhook != nil {
			public.Get("/webhooks/messenger", cfg.MessengerWebhook.HandleVerification)
			public.Post("/webhooks/messenger", cfg.MessengerWebhook.HandleInbound)
		}
		if cfg.BillingWebhook != nil {
			public.Post("/webhooks/billing", cfg.BillingWebhook.Handle)
		}

		public.Get("/billing/plans", billing.PlansHandler)

		if cfg.WebchatHandler != nil {
			public.Route("/chat", func(chat chi.Router) {
				if cfg.RateLimitPerSecond > 0 {
					chat.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
				}
				chat.Get("/ws", cfg.WebchatHandler.HandleWebSocket)
				chat.Post("/message", cfg.WebchatHandler.HandleMessage)
				chat.Get("/history", cfg.WebchatHandler.HandleHistory)
				chat.Get("/widget.js", cfg.WebchatHandler.HandleWidgetJS)
			})
		}
		if cfg.RealtimeHandler != nil {
			public.Handle("/realtime/ws", cfg.RealtimeHandler)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Merchant dashboard, scoped to the shop id carried in the JWT.
	if cfg.DashboardAuthSecret != "" {
		r.Route("/dashboard", func(dash chi.Router) {
			dash.Use(httpmiddleware.DashboardJWT(cfg.DashboardAuthSecret))

			if cfg.ShopsHandler != nil {
				dash.Get("/shop", cfg.ShopsHandler.Profile)
				dash.Put("/shop", cfg.ShopsHandler.UpdateProfile)
			}
			if cfg.StatsHandler != nil {
				dash.Get("/stats", cfg.StatsHandler.GetStats)
			}
			if cfg.ConversationHandler != nil {
				dash.Route("/conversations", func(conv chi.Router) {
					conv.Get("/", cfg.ConversationHandler.List)
					conv.Get("/jobs/{jobID}", cfg.ConversationHandler.JobStatus)
					conv.Route("/{conversationID}", func(one chi.Router) {
						one.Get("/", cfg.ConversationHandler.Get)
						one.Post("/messages", cfg.ConversationHandler.SendMessage)
						one.Post("/pause", cfg.ConversationHandler.Pause)
						one.Post("/resume", cfg.ConversationHandler.Resume)
						one.Post("/archive", cfg.ConversationHandler.Archive)
					})
				})
			}
			if cfg.OrdersHandler != nil {
				dash.Route("/orders", func(ord chi.Router) {
					ord.Post("/", cfg.OrdersHandler.Create)
					ord.Get("/", cfg.OrdersHandler.List)
					ord.Get("/{orderID}", cfg.OrdersHandler.Get)
					ord.Put("/{orderID}/status", cfg.OrdersHandler.UpdateStatus)
				})
			}
			if cfg.CatalogHandler != nil {
				dash.Route("/products", func(prod chi.Router) {
					prod.Post("/", cfg.CatalogHandler.CreateProduct)
					prod.Get("/", cfg.CatalogHandler.ListProducts)
					prod.Put("/{productID}", cfg.CatalogHandler.UpdateProduct)
					prod.Delete("/{productID}", cfg.CatalogHandler.DeleteProduct)
				})
				dash.Route("/services", func(svc chi.Router) {
					svc.Post("/", cfg.CatalogHandler.CreateService)
					svc.Get("/", cfg.CatalogHandler.ListServices)
					svc.Put("/{serviceID}", cfg.CatalogHandler.UpdateService)
					svc.Delete("/{serviceID}", cfg.CatalogHandler.DeleteService)
				})
			}
			if cfg.AppointmentsHandler != nil {
				dash.Route("/appointments", func(appt chi.Router) {
					appt.Post("/", cfg.AppointmentsHandler.Create)
					appt.Get("/", cfg.AppointmentsHandler.List)
					appt.Get("/{appointmentID}", cfg.AppointmentsHandler.Get)
					appt.Put("/{appointmentID}/status", cfg.AppointmentsHandler.UpdateStatus)
					appt.Put("/{appointmentID}/schedule", cfg.AppointmentsHandler.Reschedule)
				})
			}
		})
	}

	// Platform admin: shop lifecycle, channel routing, billing overrides.
	if cfg.AdminAuthSecret != "" && cfg.ShopsHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			admin.Route("/shops", func(s chi.Router) {
				s.Post("/", cfg.ShopsHandler.Create)
				s.Get("/", cfg.ShopsHandler.List)
				s.Route("/{shopID}", func(one chi.Router) {
					one.Get("/", cfg.ShopsHandler.Get)
					one.Post("/suspend", cfg.ShopsHandler.Suspend)
					one.Post("/activate", cfg.ShopsHandler.Activate)
					one.Post("/channels", cfg.ShopsHandler.LinkChannel)
					one.Get("/channels", cfg.ShopsHandler.ListChannels)
					if cfg.BillingOverride != nil {
						one.Post("/billing", cfg.BillingOverride.Handle)
					}
				})
			})
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
