package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stemstr/paywall/internal/gate"
	"github.com/stemstr/paywall/internal/invoice"
)

var (
	invoicesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paywall_invoices_created_total",
		Help: "The total number of invoices created",
	}, []string{"provider"})
	dischargesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paywall_discharges_issued_total",
		Help: "The total number of discharge credentials issued",
	})
	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paywall_verifications_total",
		Help: "Credential verifications by result",
	}, []string{"result"})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_response_duration_seconds",
		Help: "Latency of requests in second.",
	}, []string{"path", "code"})
)

// paidNotifier is satisfied by *notifier.Notifier.
type paidNotifier interface {
	Paid(invoiceID string, amount int64, validUntil time.Time)
}

// gateHooks counts gate events and announces first payments.
func gateHooks(provider string, n paidNotifier) gate.Hooks {
	return gate.Hooks{
		OnInvoice: func(inv *invoice.Invoice) {
			invoicesCreated.WithLabelValues(provider).Inc()
		},
		OnDischarge: func(inv *invoice.Invoice, validUntil time.Time, first bool) {
			dischargesIssued.Inc()
			if first && n != nil {
				n.Paid(inv.ID, inv.AmountUnits, validUntil)
			}
		},
		OnVerify: func(reason string) {
			verifications.WithLabelValues(reason).Inc()
		},
	}
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Label by route pattern so protected paths don't explode cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		httpDuration.WithLabelValues(path, strconv.Itoa(ww.Status())).Observe(time.Since(start).Seconds())
	})
}
