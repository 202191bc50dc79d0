package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDecision("ALLOWED")
	m.ObserveDecision("ALLOWED")
	m.ObserveDecision("MAX_POSITIONS")
	m.ObserveTrade("BUY")
	m.ObserveExit("partial", "first_tier")
	m.SetRiskState(2, 1, -1500, -4000)
	m.SetOpenPositions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.gateDecisions.WithLabelValues("ALLOWED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gateDecisions.WithLabelValues("MAX_POSITIONS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.trades.WithLabelValues("BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exits.WithLabelValues("partial", "first_tier")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.lossStreak))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cooldownState))
	assert.Equal(t, -1500.0, testutil.ToFloat64(m.dailyPnL))
	assert.Equal(t, -4000.0, testutil.ToFloat64(m.weeklyPnL))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.openPositions))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDecision("ALLOWED")
		m.ObserveTrade("SELL")
		m.ObserveExit("full", "hard_stop")
		m.SetRiskState(0, 0, 0, 0)
		m.SetOpenPositions(0)
	})
}
