package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the billing Prometheus collectors
type Metrics struct {
	WebhookEventsTotal      *prometheus.CounterVec
	WebhookDurationSeconds  *prometheus.HistogramVec
	AffiliateTrackingsTotal *prometheus.CounterVec
	ProjectionDriftUsers    prometheus.Gauge
}

// NewMetrics creates and registers all collectors on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docuchat_webhook_events_total",
				Help: "Verified billing webhook events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		WebhookDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docuchat_webhook_duration_seconds",
				Help:    "Time spent reconciling a billing webhook",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		AffiliateTrackingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docuchat_affiliate_commissions_total",
				Help: "Referral tracking attempts by result",
			},
			[]string{"result"},
		),
		ProjectionDriftUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docuchat_billing_projection_drift_users",
				Help: "Users whose cached subscription disagrees with the ledger at the last audit",
			},
		),
	}

	registry.MustRegister(
		m.WebhookEventsTotal,
		m.WebhookDurationSeconds,
		m.AffiliateTrackingsTotal,
		m.ProjectionDriftUsers,
	)
	return m
}

var (
	registry = prometheus.NewRegistry()
	Default  = NewMetrics(registry)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// knownEventTypes bounds the label cardinality of the webhook counters.
var knownEventTypes = map[string]struct{}{
	"checkout.session.completed":    {},
	"customer.subscription.updated": {},
	"customer.subscription.deleted": {},
}

func eventLabel(eventType string) string {
	if _, ok := knownEventTypes[eventType]; ok {
		return eventType
	}
	return "other"
}

func ObserveWebhook(eventType, outcome string, took time.Duration) {
	label := eventLabel(eventType)
	Default.WebhookEventsTotal.WithLabelValues(label, outcome).Inc()
	Default.WebhookDurationSeconds.WithLabelValues(label).Observe(took.Seconds())
}

func ObserveCommission(result string) {
	Default.AffiliateTrackingsTotal.WithLabelValues(result).Inc()
}

func SetProjectionDrift(users int) {
	Default.ProjectionDriftUsers.Set(float64(users))
}

// Handler exposes the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
