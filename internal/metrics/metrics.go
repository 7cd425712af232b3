package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)

	PurchasesRecordedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchases_recorded_total",
			Help: "Total number of successful purchases written to the purchase log",
		},
	)

	PurchasesRevertedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchases_reverted_total",
			Help: "Total number of purchase transactions whose receipt reverted",
		},
	)

	PurchaseSubmitFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_submit_failures_total",
			Help: "Total number of failed transaction submissions by wallet error kind",
		},
		[]string{"kind"},
	)

	ReceiptPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "receipt_polls_total",
			Help: "Total number of transaction receipt queries",
		},
	)

	GuardRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_rejections_total",
			Help: "Total number of purchases rejected before submission",
		},
		[]string{"reason"},
	)

	PurchaseRecordFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchase_record_failures_total",
			Help: "Total number of confirmed purchases that could not be written to the purchase log",
		},
	)

	CheckoutSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_sessions",
			Help: "Number of live checkout sessions",
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(PurchasesRecordedTotal)
	prometheus.MustRegister(PurchasesRevertedTotal)
	prometheus.MustRegister(PurchaseSubmitFailuresTotal)
	prometheus.MustRegister(ReceiptPollsTotal)
	prometheus.MustRegister(GuardRejectionsTotal)
	prometheus.MustRegister(PurchaseRecordFailuresTotal)
	prometheus.MustRegister(CheckoutSessions)
}
