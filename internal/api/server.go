package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/memoria-app/backend/internal/api/handlers"
	"github.com/memoria-app/backend/internal/api/middleware"
	"github.com/memoria-app/backend/internal/api/websocket"
	"github.com/memoria-app/backend/internal/modules/checkout"
	"github.com/memoria-app/backend/internal/modules/memorial"
	"github.com/memoria-app/backend/internal/modules/plan"
	"github.com/memoria-app/backend/internal/modules/promo"
	"github.com/memoria-app/backend/internal/modules/sticker"
	"github.com/memoria-app/backend/internal/modules/subscription"
	"github.com/memoria-app/backend/internal/modules/testimonial"
	"github.com/memoria-app/backend/internal/modules/user"
	"github.com/memoria-app/backend/internal/shared/config"
	"github.com/memoria-app/backend/internal/shared/database"
	"github.com/memoria-app/backend/internal/shared/metrics"
	"github.com/memoria-app/backend/internal/shared/storage"
)

// ServerConfig holds dependencies for the API server
type ServerConfig struct {
	Config          *config.Config
	Logger          *zap.Logger
	DB              *database.Postgres
	Redis           *database.Redis
	Storage         *storage.Service
	Metrics         *metrics.Metrics
	WSHub           *websocket.Hub
	PlanSvc         *plan.Service
	PromoSvc        *promo.Service
	CheckoutSvc     *checkout.Service
	SubscriptionSvc *subscription.Service
	MemorialSvc     *memorial.Service
	StickerSvc      *sticker.Service
	TestimonialSvc  *testimonial.Service
	UserSvc         *user.Service
}

// Server represents the API server
type Server struct {
	cfg ServerConfig
}

// NewServer creates a new API server
func NewServer(cfg ServerConfig) *Server {
	return &Server{cfg: cfg}
}

// Router returns the configured HTTP router
func (s *Server) Router() *chi.Mux {
	c := s.cfg
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(c.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MetricsMiddleware(c.Metrics))

	// With AllowedOrigins=["*"] and AllowCredentials=true, go-chi/cors
	// reflects the request's Origin header back (not literal "*"),
	// which browsers require for the anonymous cookie.
	allowedOrigins := c.Config.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Range"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Content-Length", "Content-Range", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rateLimiter := middleware.NewRateLimiter(c.Redis.Client, c.Logger)
	r.Use(rateLimiter.Limit(middleware.GlobalRateLimit))

	isSecure := c.Config.Environment == "production"
	clerkAuth := middleware.NewClerkAuthMiddleware(c.Config.ClerkSecretKey, c.SubscriptionSvc, isSecure)

	// Handlers
	healthHandler := handlers.NewHealthHandler(c.DB, c.Redis)
	planHandler := handlers.NewPlanHandler(c.PlanSvc, c.Logger)
	promoHandler := handlers.NewPromoHandler(c.PromoSvc, c.Logger)
	paymentHandler := handlers.NewPaymentHandler(c.CheckoutSvc, c.PromoSvc, c.Config.StripeWebhookSecret, c.Logger)
	memorialHandler := handlers.NewMemorialHandler(c.MemorialSvc, c.Storage, c.Config.MaxUploadSize, c.Logger)
	stickerHandler := handlers.NewStickerHandler(c.StickerSvc, c.Logger)
	testimonialHandler := handlers.NewTestimonialHandler(c.TestimonialSvc, c.Logger)
	userHandler := handlers.NewUserHandler(c.UserSvc, c.SubscriptionSvc, c.Logger)
	wsHandler := handlers.NewWebSocketHandler(c.WSHub, c.Logger)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/ready", healthHandler.Ready)
	})

	r.Route("/api", func(r chi.Router) {
		// Stripe webhook (no auth - verified by signature, rate limited)
		r.With(rateLimiter.Limit(middleware.WebhookRateLimit)).
			Post("/payments/webhooks/stripe", paymentHandler.HandleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(clerkAuth.Handler)

			// Pricing page data + per-plan-card promo state. Promo and
			// payment responses carry per-card state, so never cached.
			r.Get("/admin/subscription", planHandler.GetSubscription)
			r.With(middleware.NoCache, rateLimiter.Limit(middleware.PromoValidationRateLimit)).
				Post("/admin/validate-promo", promoHandler.ValidatePromo)
			r.With(middleware.NoCache).Post("/admin/remove-promo", promoHandler.RemovePromo)

			// Payments
			r.With(middleware.NoCache, clerkAuth.RequireAuth, rateLimiter.Limit(middleware.CheckoutRateLimit)).
				Post("/payments/initiate-memorial-payment", paymentHandler.InitiateMemorialPayment)

			// Memorials
			r.Route("/memorials", func(r chi.Router) {
				r.With(clerkAuth.RequireAuth, rateLimiter.Limit(middleware.MediaUploadRateLimit)).
					Post("/", memorialHandler.Create)
				r.With(clerkAuth.RequireAuth).Get("/", memorialHandler.ListMine)
				r.Get("/slug/{slug}", memorialHandler.GetBySlug)
				r.Get("/{id}", memorialHandler.Get)
				r.With(clerkAuth.RequireAuth, rateLimiter.Limit(middleware.MediaUploadRateLimit)).
					Put("/{id}", memorialHandler.Update)
				r.With(clerkAuth.RequireAuth).Delete("/{id}", memorialHandler.Delete)
				r.With(clerkAuth.RequireAuth, rateLimiter.Limit(middleware.MediaUploadRateLimit)).
					Post("/{id}/media", memorialHandler.UploadMedia)
				r.With(clerkAuth.RequireAuth).Put("/{id}/photos/order", memorialHandler.ReorderPhotos)
				r.With(clerkAuth.RequireAuth).Delete("/{id}/media/{mediaId}", memorialHandler.RemoveMedia)
			})

			// QR stickers
			r.Route("/stickers", func(r chi.Router) {
				r.Get("/", stickerHandler.ListOptions)
				r.With(clerkAuth.RequireAuth).Post("/orders", stickerHandler.PlaceOrder)
			})

			// Testimonials
			r.Route("/testimonials", func(r chi.Router) {
				r.Get("/", testimonialHandler.List)
				r.Post("/", testimonialHandler.Submit)
			})

			// Current user
			r.Get("/users/me", userHandler.GetMe)

			// WebSocket
			r.Get("/ws", wsHandler.HandleConnection)

			// Admin management (role enforcement happens in Clerk;
			// every admin route at least requires a signed-in user)
			r.Route("/admin", func(r chi.Router) {
				r.Use(clerkAuth.RequireAuth)

				r.Route("/plans", func(r chi.Router) {
					r.Get("/", planHandler.ListAll)
					r.Post("/", planHandler.Create)
					r.Put("/{id}", planHandler.Update)
					r.Delete("/{id}", planHandler.Delete)
				})

				r.Route("/promos", func(r chi.Router) {
					r.Get("/", promoHandler.List)
					r.Post("/", promoHandler.Create)
					r.Delete("/{id}", promoHandler.Deactivate)
				})

				r.Route("/stickers", func(r chi.Router) {
					r.Post("/", stickerHandler.CreateOption)
					r.Delete("/{id}", stickerHandler.DeactivateOption)
				})

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", stickerHandler.ListOrders)
					r.Put("/{id}/status", stickerHandler.UpdateOrderStatus)
				})

				r.Route("/testimonials", func(r chi.Router) {
					r.Post("/{id}/approve", testimonialHandler.Approve)
					r.Delete("/{id}", testimonialHandler.Delete)
				})

				r.Route("/users", func(r chi.Router) {
					r.Get("/", userHandler.List)
					r.Put("/{id}/tier", userHandler.SetTier)
				})
			})
		})
	})

	return r
}
