package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementTransition("create", "ok")
		m.ObserveConsumed("order_paid", "ack", time.Now())
		m.IncrementSettlement("duplicate")
	})
}

func TestCountersRecord(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementTransition("cancel", "conflict")
	m.IncrementTransition("cancel", "conflict")
	m.IncrementSettlement("duplicate")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PolicyTransitions.WithLabelValues("cancel", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettlementOutcomes.WithLabelValues("duplicate")))
}
