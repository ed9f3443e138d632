package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCartMetrics(reg)

	m.IncMutation("add_item", OutcomeApplied)
	m.IncMutation("add_item", OutcomeApplied)
	m.IncMutation("add_item", OutcomeIgnored)
	m.IncFinalization(OutcomeRejected)
	m.ObservePersist("add_item", 20*time.Millisecond)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("add_item", OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("add_item", OutcomeIgnored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.finalizations.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.openSessions))

	count, err := testutil.GatherAndCount(reg, "pos_persist_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilCartMetricsIsSafe(t *testing.T) {
	var m *CartMetrics
	assert.NotPanics(t, func() {
		m.IncMutation("", "")
		m.IncFinalization(OutcomeApplied)
		m.ObservePersist("x", time.Second)
		m.SessionOpened()
		m.SessionClosed()
	})

	unregistered := NewCartMetrics(nil)
	assert.NotPanics(t, func() { unregistered.IncMutation("x", OutcomeFailed) })
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "unknown", normalizeLabel(""))
	assert.Equal(t, "set_quantity", normalizeLabel("set_quantity"))
}
