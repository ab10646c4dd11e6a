package webhook

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reasons used as the "reason" label.
const (
	ReasonSignature   = "signature"
	ReasonRateLimit   = "rate_limit"
	ReasonUnavailable = "unavailable"
	ReasonParse       = "parse"
	ReasonEnvelope    = "envelope"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	rejections *prometheus.CounterVec
	events     *prometheus.CounterVec
	duration   prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_webhook_rejections_total",
			Help: "Booking webhook requests rejected before reaching the audit log.",
		}, []string{"reason"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_webhook_events_total",
			Help: "Audited booking webhook events by type and processing status.",
		}, []string{"event_type", "status"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clinic_webhook_processing_seconds",
			Help:    "Time spent dispatching and auditing a booking webhook event.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) rejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// processed records an audited event. Unregistered event types are folded
// into "unknown" to keep label cardinality bounded.
func (m *Metrics) processed(eventType, status string, known bool, took time.Duration) {
	if m == nil {
		return
	}
	if !known {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType, status).Inc()
	m.duration.Observe(took.Seconds())
}
