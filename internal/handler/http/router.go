package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VictorEZCodes/clothing-shop/internal/service"
	"github.com/VictorEZCodes/clothing-shop/pkg/health"
	"github.com/VictorEZCodes/clothing-shop/pkg/middleware"
)

// RouterConfig holds the HTTP-layer settings of the router.
type RouterConfig struct {
	ServiceName       string
	JWTSecret         []byte
	CORS              middleware.CORSConfig
	RateLimit         middleware.RateLimitConfig
	CheckoutRateLimit middleware.RateLimitConfig
}

// Services groups the business services exposed over HTTP.
type Services struct {
	Orders   *service.OrderService
	Carts    *service.CartService
	Checkout *service.CheckoutService
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	svc Services,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	orderHandler := NewOrderHandler(svc.Orders, logger)
	cartHandler := NewCartHandler(svc.Carts, logger)
	checkoutHandler := NewCheckoutHandler(svc.Checkout, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)
		// Limited by client IP so rejected tokens are throttled too.
		r.Use(middleware.RateLimit(cfg.RateLimit, logger))
		r.Use(middleware.Auth(middleware.JWTValidator(cfg.JWTSecret)))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.CreateOrder)
			r.With(middleware.RequireOperator).Get("/", orderHandler.ListOrders)
			r.Get("/mine", orderHandler.ListMyOrders)
			r.Get("/{id}", orderHandler.GetOrder)
			r.With(middleware.RequireOperator).Patch("/{id}", orderHandler.UpdateOrderStatus)
		})
		r.Get("/user/orders", orderHandler.ListMyOrders)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Put("/items/{productId}", cartHandler.SetItem)
			r.Patch("/items/{productId}", cartHandler.UpdateItemQuantity)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/quote", checkoutHandler.GetQuote)

			// Per buyer; both routes reach the payment gateway.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(cfg.CheckoutRateLimit, logger))
				r.Post("/", checkoutHandler.BeginCheckout)
				r.Post("/{id}/callback", checkoutHandler.PaymentCallback)
			})
		})
	})

	return r
}
