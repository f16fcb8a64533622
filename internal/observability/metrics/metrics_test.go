package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	var families []*dto.MetricFamily
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
	}
	return total
}

func TestCompletionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCompletionMetrics(reg)

	m.ObserveCall("generate", "ok")
	m.ObserveCall("generate", "ok")
	m.ObserveCall("next_question", "malformed")
	m.ObserveLatency("generate", 1.2)

	assert.Equal(t, 3.0, gatherCounter(t, reg, "signal_completion_calls_total"))
}

func TestSignalMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSignalMetrics(reg)

	m.ObserveGenerated("deal_stalled", "created")
	m.ObserveStep("question")
	m.ObserveStep("complete")
	m.ObserveResponse("move_on")

	assert.Equal(t, 1.0, gatherCounter(t, reg, "signal_signals_generated_total"))
	assert.Equal(t, 2.0, gatherCounter(t, reg, "signal_signals_adaptive_steps_total"))
	assert.Equal(t, 1.0, gatherCounter(t, reg, "signal_signals_responses_total"))
}

func TestNilReceiversAreSafe(t *testing.T) {
	var cm *CompletionMetrics
	var sm *SignalMetrics
	cm.ObserveCall("generate", "ok")
	cm.ObserveLatency("generate", 0.1)
	sm.ObserveGenerated("mid_deal", "created")
	sm.ObserveStep("fail_open")
	sm.ObserveResponse("re_engage")
}
