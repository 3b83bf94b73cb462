package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// Auth resolves the caller's identity; nil serves every request anonymously.
	Auth   func(http.Handler) http.Handler
	Logger *zap.Logger
}

// NewRouter mounts the storefront API under /api/v1.
func NewRouter(cfg RouterConfig, cart *CartHandler, checkout *CheckoutHandler, receipts *ReceiptHandler) chi.Router {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.Compress(5))
	r.Use(BodyLimit(cfg.MaxRequestBodySize))
	if cfg.Auth != nil {
		r.Use(cfg.Auth)
	}
	r.Use(LoggingMiddleware(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cart.GetCart)
			r.Put("/items/{product_id}", cart.UpdateQuantity)
			r.Delete("/items/{product_id}", cart.RemoveItem)
			r.Post("/coupon", cart.ApplyCoupon)
			r.Delete("/coupon", cart.RemoveCoupon)
		})

		r.Get("/addresses", checkout.ListAddresses)

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkout.Begin)
			r.Get("/", checkout.Status)
			r.Put("/address", checkout.SelectAddress)
			r.Get("/outcome", checkout.Outcome)
			r.Post("/cancel", checkout.Cancel)
			r.Post("/payment/success", checkout.PaymentSucceeded)
			r.Post("/payment/failure", checkout.PaymentFailed)
			r.Post("/payment/dismiss", checkout.PaymentDismissed)
		})

		r.Route("/receipts/{order_id}", func(r chi.Router) {
			r.Get("/", receipts.GetReceipt)
			r.Get("/print", receipts.PrintReceipt)
		})

		r.Get("/orders", receipts.ListOrders)
		r.Get("/orders/{order_id}/receipt", receipts.OrderReceipt)
	})

	return r
}
