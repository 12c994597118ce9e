package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Capture result labels.
const (
	CaptureResultSuccess       = "success"
	CaptureResultOutOfStock    = "out_of_stock"
	CaptureResultProviderError = "provider_error"
)

// OrderFlowMetrics counts the correctness-critical order lifecycle paths.
type OrderFlowMetrics struct {
	webhookEvents   prometheus.Counter
	totalMismatches prometheus.Counter
	captures        *prometheus.CounterVec
	restocks        prometheus.Counter
}

// NewOrderFlowMetrics registers the order flow metrics on the provided registerer.
func NewOrderFlowMetrics(reg prometheus.Registerer) *OrderFlowMetrics {
	if reg == nil {
		return &OrderFlowMetrics{}
	}
	webhookEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_webhook_events_processed",
		Help: "Completion webhook events that created a pending order.",
	})
	totalMismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_total_mismatches",
		Help: "Completion events rejected because the authorized amount diverged from the server total.",
	})
	captures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_capture_attempts",
		Help: "Capture attempts by outcome.",
	}, []string{"result"})
	restocks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_restocks",
		Help: "Orders whose stock was returned by a cancel or refund.",
	})
	reg.MustRegister(webhookEvents, totalMismatches, captures, restocks)
	return &OrderFlowMetrics{
		webhookEvents:   webhookEvents,
		totalMismatches: totalMismatches,
		captures:        captures,
		restocks:        restocks,
	}
}

// IncWebhookEvent counts a completion event that produced an order.
func (m *OrderFlowMetrics) IncWebhookEvent() {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.Inc()
}

// IncTotalMismatch counts a rejected completion event.
func (m *OrderFlowMetrics) IncTotalMismatch() {
	if m == nil || m.totalMismatches == nil {
		return
	}
	m.totalMismatches.Inc()
}

// IncCapture counts a capture attempt labeled with its outcome.
func (m *OrderFlowMetrics) IncCapture(result string) {
	if m == nil || m.captures == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.captures.WithLabelValues(result).Inc()
}

// IncRestock counts a compensating restock.
func (m *OrderFlowMetrics) IncRestock() {
	if m == nil || m.restocks == nil {
		return
	}
	m.restocks.Inc()
}
