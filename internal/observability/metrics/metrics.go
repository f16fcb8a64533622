package metrics

import "github.com/prometheus/client_golang/prometheus"

// CompletionMetrics exposes counters/histograms for completion-gateway calls.
type CompletionMetrics struct {
	callsTotal *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

func NewCompletionMetrics(reg prometheus.Registerer) *CompletionMetrics {
	m := &CompletionMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal",
			Subsystem: "completion",
			Name:      "calls_total",
			Help:      "Total completion-gateway calls",
		}, []string{"operation", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "signal",
			Subsystem: "completion",
			Name:      "call_latency_seconds",
			Help:      "Latency of completion-gateway calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.latency)
	return m
}

func (m *CompletionMetrics) ObserveCall(operation, result string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(operation, result).Inc()
}

func (m *CompletionMetrics) ObserveLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(operation).Observe(seconds)
}

// SignalMetrics tracks the signal lifecycle funnel.
type SignalMetrics struct {
	generatedTotal *prometheus.CounterVec
	stepsTotal     *prometheus.CounterVec
	responsesTotal *prometheus.CounterVec
}

func NewSignalMetrics(reg prometheus.Registerer) *SignalMetrics {
	m := &SignalMetrics{
		generatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal",
			Subsystem: "signals",
			Name:      "generated_total",
			Help:      "Signals generated, by type and outcome",
		}, []string{"signal_type", "status"}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal",
			Subsystem: "signals",
			Name:      "adaptive_steps_total",
			Help:      "Adaptive question engine steps, by outcome",
		}, []string{"outcome"}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signal",
			Subsystem: "signals",
			Name:      "responses_total",
			Help:      "Completed responses, by recommendation",
		}, []string{"recommendation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.generatedTotal, m.stepsTotal, m.responsesTotal)
	return m
}

func (m *SignalMetrics) ObserveGenerated(signalType, status string) {
	if m == nil {
		return
	}
	m.generatedTotal.WithLabelValues(signalType, status).Inc()
}

func (m *SignalMetrics) ObserveStep(outcome string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(outcome).Inc()
}

func (m *SignalMetrics) ObserveResponse(recommendation string) {
	if m == nil {
		return
	}
	m.responsesTotal.WithLabelValues(recommendation).Inc()
}
