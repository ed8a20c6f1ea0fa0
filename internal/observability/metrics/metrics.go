package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the message pipeline.
type PipelineMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	strategyTotal  *prometheus.CounterVec
	llmLatency     prometheus.Histogram
	webhookLatency *prometheus.HistogramVec
	activeConvs    prometheus.Gauge
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "karibu",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound WhatsApp webhooks",
		}, []string{"provider", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "karibu",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"provider", "status"}),
		strategyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "karibu",
			Subsystem: "conversation",
			Name:      "reply_strategy_total",
			Help:      "Replies produced, labelled by the strategy that won",
		}, []string{"strategy"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "karibu",
			Subsystem: "conversation",
			Name:      "llm_latency_seconds",
			Help:      "Latency of text-completion provider calls",
			Buckets:   prometheus.DefBuckets,
		}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "karibu",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		activeConvs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "karibu",
			Subsystem: "conversation",
			Name:      "active_conversations",
			Help:      "Conversations currently held in the store",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.strategyTotal, m.llmLatency, m.webhookLatency, m.activeConvs)
	return m
}

func (m *PipelineMetrics) ObserveInbound(provider, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(provider, status).Inc()
}

func (m *PipelineMetrics) ObserveOutbound(provider, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(provider, status).Inc()
}

func (m *PipelineMetrics) ObserveStrategy(strategy string) {
	if m == nil {
		return
	}
	m.strategyTotal.WithLabelValues(strategy).Inc()
}

func (m *PipelineMetrics) ObserveLLMLatency(seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.Observe(seconds)
}

func (m *PipelineMetrics) ObserveWebhookLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *PipelineMetrics) SetActiveConversations(n int) {
	if m == nil {
		return
	}
	m.activeConvs.Set(float64(n))
}
