package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the conversation engine.
type EngineMetrics struct {
	inboundTotal      *prometheus.CounterVec
	outboundTotal     *prometheus.CounterVec
	webhookLatency    *prometheus.HistogramVec
	completionLatency *prometheus.HistogramVec
	ordersExtracted   *prometheus.CounterVec
	eventsPublished   *prometheus.CounterVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tajir",
			Subsystem: "messaging",
			Name:      "inbound_total",
			Help:      "Total inbound channel messages",
		}, []string{"channel", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tajir",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound channel sends",
		}, []string{"channel", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tajir",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of channel webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tajir",
			Subsystem: "ai",
			Name:      "completion_latency_seconds",
			Help:      "Latency of completion backend calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "outcome"}),
		ordersExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tajir",
			Subsystem: "orders",
			Name:      "extracted_total",
			Help:      "Heuristic order extraction outcomes",
		}, []string{"outcome"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tajir",
			Subsystem: "realtime",
			Name:      "events_published_total",
			Help:      "Realtime envelopes delivered to the hub",
		}, []string{"type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.inboundTotal,
		m.outboundTotal,
		m.webhookLatency,
		m.completionLatency,
		m.ordersExtracted,
		m.eventsPublished,
	)
	return m
}

func (m *EngineMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *EngineMetrics) ObserveOutbound(channel, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *EngineMetrics) ObserveWebhookLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(channel).Observe(seconds)
}

func (m *EngineMetrics) ObserveCompletion(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.completionLatency.WithLabelValues(provider, outcome).Observe(seconds)
}

func (m *EngineMetrics) ObserveOrderExtraction(outcome string) {
	if m == nil {
		return
	}
	m.ordersExtracted.WithLabelValues(outcome).Inc()
}

func (m *EngineMetrics) ObserveEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}
