package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests           *prometheus.CounterVec
	LatencyMS          *prometheus.HistogramVec
	BreakerState       *prometheus.GaugeVec
	CheckoutsPublished *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewServerMetrics registers the cart collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewServerMetrics(reg *prometheus.Registry) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cart",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cart",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	breaker := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cart",
		Name:      "breaker_state",
		Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
	}, []string{"breaker"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cart",
		Name:      "checkout_published_total",
		Help:      "Checkout events handed to the broker, by result.",
	}, []string{"result"})

	reg.MustRegister(requests, latency, breaker, published)
	return &ServerMetrics{
		Requests:           requests,
		LatencyMS:          latency,
		BreakerState:       breaker,
		CheckoutsPublished: published,
		gatherer:           reg,
	}
}

// SetBreakerState records a breaker transition. Safe on a nil receiver.
func (m *ServerMetrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// ObservePublish counts a checkout publish attempt. Safe on a nil receiver.
func (m *ServerMetrics) ObservePublish(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CheckoutsPublished.WithLabelValues(result).Inc()
}

// Middleware records request count and latency labelled by the matched chi
// route pattern, so path parameters do not explode cardinality.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		handler := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				handler = r.Method + " " + pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	})
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
