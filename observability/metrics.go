package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hazyhaar/docmcp/kit"
)

// Metrics are the operation counters and latencies.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	InFlight   prometheus.Gauge
}

// NewMetrics registers the collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docmcp_operations_total",
				Help: "Dispatched operations by name and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docmcp_operation_duration_seconds",
				Help:    "Duration of dispatched operations in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "docmcp_operations_in_flight",
			Help: "Operations currently executing.",
		}),
	}
}

// RegisterDocumentsGauge exposes the registry size, sampled at scrape time.
func RegisterDocumentsGauge(reg prometheus.Registerer, count func() int) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "docmcp_registry_documents",
		Help: "Rendered documents currently registered.",
	}, func() float64 { return float64(count()) })
}

// Middleware counts and times every call of op. A nil receiver is a no-op.
func (m *Metrics) Middleware(op string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		if m == nil {
			return next
		}
		return func(ctx context.Context, req any) (any, error) {
			m.InFlight.Inc()
			start := time.Now()
			resp, err := next(ctx, req)
			m.InFlight.Dec()
			m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
			m.Operations.WithLabelValues(op, kit.Outcome(resp, err)).Inc()
			return resp, err
		}
	}
}
