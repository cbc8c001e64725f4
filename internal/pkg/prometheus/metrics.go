package prometheus

import "github.com/prometheus/client_golang/prometheus"

// Shared metrics registered against the package's single registry. Every
// component reaches these through the package-level vars rather than
// constructing its own collectors, mirroring the teacher's one-registry
// discipline (internal/pkg/prometheus/registry.go).
var (
	ConversionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_conversions_total",
		Help: "Conversions completed, labeled by final tier and outcome.",
	}, []string{"tier", "outcome"})

	ConversionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_conversion_duration_seconds",
		Help:    "End-to-end conversion latency by final tier.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tier"})

	EscalationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_escalations_total",
		Help: "Tier escalations, labeled by the tier escalated to and the reason class.",
	}, []string{"to_tier", "reason"})

	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_cache_lookups_total",
		Help: "Cache lookups, labeled by layer (primary|secondary) and result (hit|miss).",
	}, []string{"layer", "result"})

	BrowserPoolActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_browser_pool_active_pages",
		Help: "Currently checked-out browser pages.",
	})

	RateLimitRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_rate_limit_rejected_total",
		Help: "Requests rejected by the fixed-window rate limiter, labeled by endpoint.",
	}, []string{"endpoint"})

	WebhookDeliveryFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_delivery_failed_total",
		Help: "Webhook deliveries that exhausted all retry attempts.",
	}, []string{"status_class"})
)

func init() {
	registry.MustRegister(
		ConversionsTotal,
		ConversionDuration,
		EscalationsTotal,
		CacheLookupsTotal,
		BrowserPoolActive,
		RateLimitRejectedTotal,
		WebhookDeliveryFailedTotal,
	)
}
