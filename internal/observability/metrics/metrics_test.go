package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPipelineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)
	m.ObserveInbound("twilio", "accepted")
	m.ObserveOutbound("meta", "sent")
	m.ObserveStrategy("booking_flow")
	m.ObserveLLMLatency(0.8)
	m.ObserveWebhookLatency("twilio", 0.02)
	m.SetActiveConversations(3)
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics
	m.ObserveInbound("twilio", "accepted")
	m.ObserveOutbound("meta", "failed")
	m.ObserveStrategy("ai")
	m.ObserveLLMLatency(0.1)
	m.ObserveWebhookLatency("meta", 0.3)
	m.SetActiveConversations(0)
}
