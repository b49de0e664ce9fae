package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/shopping-cart/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// HealthCheck reports a dependency problem; nil means healthy.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	RequestTimeout time.Duration
	Checks         map[string]HealthCheck
}

// NewRouter wires middleware and the /api/cart routes. The returned handler
// is wrapped in otelhttp so each request gets a server span.
func NewRouter(cart *CartHandler, m *metrics.ServerMetrics, log *zap.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLog(log))
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", healthHandler(cfg.Checks))
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	r.Route("/api/cart", func(r chi.Router) {
		r.Post("/add", cart.AddToCart)
		r.Get("/user/{username}", cart.ListCart)
		r.Delete("/remove/id/{cartId}", cart.RemoveLine)
		r.Delete("/remove/user/{username}", cart.RemoveAllForUser)
		r.Post("/checkout/{username}", cart.Checkout)
	})

	return otelhttp.NewHandler(r, "shopping-cart")
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := make(map[string]string)
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "degraded", "failed": failed})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
