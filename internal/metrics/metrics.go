package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pymthouse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pymthouse_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Payment Metrics
	PaymentsForwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pymthouse_payments_forwarded_total",
			Help: "Total number of payment requests forwarded to the signer",
		},
		[]string{"endpoint", "status"},
	)

	PaymentPixelsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pymthouse_payment_pixels_total",
			Help: "Total pixels covered by forwarded payments",
		},
	)

	SignerForwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pymthouse_signer_forward_duration_seconds",
			Help:    "Signer forward round-trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	PriceDecodeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pymthouse_price_decode_failures_total",
			Help: "Total number of orchestrator price payloads that failed to decode",
		},
	)

	// Ledger Metrics
	CreditDeductionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pymthouse_credit_deductions_total",
			Help: "Total number of credit deduction attempts",
		},
		[]string{"result"},
	)

	// Stream Metrics
	StreamSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pymthouse_stream_sessions_active",
			Help: "Number of currently active stream sessions",
		},
	)

	StreamSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pymthouse_stream_sessions_total",
			Help: "Total number of stream sessions by terminal status",
		},
		[]string{"status"},
	)

	// Signer Reconciliation Metrics
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pymthouse_signer_reconciliations_total",
			Help: "Total number of signer status reconciliation passes",
		},
		[]string{"status"},
	)

	ReconciliationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pymthouse_signer_reconciliation_duration_seconds",
			Help:    "Signer reconciliation pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Reporting Metrics
	UsageReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pymthouse_usage_reports_total",
			Help: "Total number of usage reports sent to the aggregator",
		},
		[]string{"status"},
	)

	EventQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pymthouse_payment_event_queue_depth",
			Help: "Number of payment events waiting in the queue",
		},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pymthouse_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pymthouse_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pymthouse_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordPaymentForwarded records a forwarded payment request
func RecordPaymentForwarded(endpoint, status string, duration float64, pixels int64) {
	PaymentsForwardedTotal.WithLabelValues(endpoint, status).Inc()
	SignerForwardDuration.WithLabelValues(endpoint).Observe(duration)
	if pixels > 0 {
		PaymentPixelsTotal.Add(float64(pixels))
	}
}

// RecordCreditDeduction records a deduction attempt outcome
func RecordCreditDeduction(result string) {
	CreditDeductionsTotal.WithLabelValues(result).Inc()
}

// RecordReconciliation records a signer reconciliation pass
func RecordReconciliation(status string, duration float64) {
	ReconciliationsTotal.WithLabelValues(status).Inc()
	ReconciliationDuration.Observe(duration)
}

// RecordUsageReport records a usage report attempt
func RecordUsageReport(status string) {
	UsageReportsTotal.WithLabelValues(status).Inc()
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
