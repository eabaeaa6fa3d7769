package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service metrics. A nil *Collector records nothing.
type Collector struct {
	BookingOpsTotal   *prometheus.CounterVec
	BookingOpDuration *prometheus.HistogramVec
	BusyRetriesTotal  *prometheus.CounterVec
	LockWaitDuration  prometheus.Histogram

	RPCRequestsTotal *prometheus.CounterVec
}

func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		BookingOpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking operations by operation and outcome.",
		}, []string{"op", "outcome"}),

		BookingOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "operation_duration_seconds",
			Help:      "Booking operation latency including lock waits and retries.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"op"}),

		BusyRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "busy_retries_total",
			Help:      "Attempts retried because a day lock was busy.",
		}, []string{"op"}),

		LockWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "wait_duration_seconds",
			Help:      "Time spent acquiring day locks.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		}),

		RPCRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "gRPC requests by method and status code.",
		}, []string{"method", "code"}),
	}
}

func (c *Collector) RecordOp(op, outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.BookingOpsTotal.WithLabelValues(op, outcome).Inc()
	c.BookingOpDuration.WithLabelValues(op).Observe(took.Seconds())
}

func (c *Collector) RecordBusyRetry(op string) {
	if c == nil {
		return
	}
	c.BusyRetriesTotal.WithLabelValues(op).Inc()
}

func (c *Collector) RecordLockWait(took time.Duration) {
	if c == nil {
		return
	}
	c.LockWaitDuration.Observe(took.Seconds())
}

func (c *Collector) RecordRPC(method, code string) {
	if c == nil {
		return
	}
	c.RPCRequestsTotal.WithLabelValues(method, code).Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
