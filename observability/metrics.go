package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lulo"

// LedgerMetrics tracks transaction outcomes and vault liabilities.
type LedgerMetrics struct {
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	outstanding *prometheus.GaugeVec
	height      prometheus.Gauge
}

// RPCMetrics tracks JSON-RPC traffic.
type RPCMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *RPCMetrics
)

// Ledger returns the lazily-initialised ledger metrics registered with the
// default prometheus registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "receivable",
				Name:      "operations_total",
				Help:      "Count of lifecycle transactions segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "receivable",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for lifecycle transactions including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			outstanding: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "vault",
				Name:      "outstanding",
				Help:      "Amount owed to representative token holders per settlement currency.",
			}, []string{"currency"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "height",
				Help:      "Number of committed transactions.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.latency,
			ledgerRegistry.outstanding,
			ledgerRegistry.height,
		)
	})
	return ledgerRegistry
}

// RecordOperation records the outcome of a transaction. A nil error counts as
// success; otherwise the outcome is the supplied error class.
func (m *LedgerMetrics) RecordOperation(op, class string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	op = labelOr(op, "unknown")
	outcome := "success"
	if err != nil {
		outcome = labelOr(class, "error")
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// SetOutstanding publishes the outstanding liability of a vault.
func (m *LedgerMetrics) SetOutstanding(currency string, amount uint64) {
	if m == nil {
		return
	}
	m.outstanding.WithLabelValues(labelOr(currency, "unknown")).Set(float64(amount))
}

// SetHeight publishes the committed height.
func (m *LedgerMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

// RPC returns the lazily-initialised RPC metrics registered with the default
// prometheus registry.
func RPC() *RPCMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records a completed request. code is the JSON-RPC error code, zero
// for success.
func (m *RPCMetrics) Observe(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	method = labelOr(method, "unknown")
	outcome := "success"
	if code != 0 {
		outcome = fmt.Sprintf("error_%d", -code)
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for reason.
func (m *RPCMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(labelOr(reason, "unspecified")).Inc()
}

func labelOr(v, fallback string) string {
	if trimmed := strings.TrimSpace(v); trimmed != "" {
		return trimmed
	}
	return fallback
}
