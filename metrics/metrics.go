// Package metrics exposes Prometheus collectors for the risk gate, the ledger
// and exit execution. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	gateDecisions *prometheus.CounterVec
	trades        *prometheus.CounterVec
	exits         *prometheus.CounterVec
	lossStreak    prometheus.Gauge
	cooldownState prometheus.Gauge
	dailyPnL      prometheus.Gauge
	weeklyPnL     prometheus.Gauge
	openPositions prometheus.Gauge
}

// New creates the collectors and registers them with reg. Pass
// prometheus.NewRegistry() in tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeguard_gate_decisions_total",
				Help: "Entry admission decisions by result code",
			},
			[]string{"code"},
		),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeguard_trades_total",
				Help: "Trade records committed to the risk state",
			},
			[]string{"side"},
		),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeguard_exits_total",
				Help: "Exit decisions executed, by kind and rule",
			},
			[]string{"kind", "rule"},
		),
		lossStreak: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeguard_loss_streak",
			Help: "Current consecutive losing trades",
		}),
		cooldownState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeguard_cooldown_state",
			Help: "Cooldown state: 0 normal, 1 degraded, 2 halted",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeguard_daily_realized_pnl",
			Help: "Realized P&L for the current day",
		}),
		weeklyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeguard_weekly_realized_pnl",
			Help: "Realized P&L for the current week",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeguard_open_positions",
			Help: "Number of open positions in the ledger",
		}),
	}

	reg.MustRegister(
		m.gateDecisions,
		m.trades,
		m.exits,
		m.lossStreak,
		m.cooldownState,
		m.dailyPnL,
		m.weeklyPnL,
		m.openPositions,
	)
	return m
}

// ObserveDecision counts one admission decision.
func (m *Metrics) ObserveDecision(code string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(code).Inc()
}

// ObserveTrade counts a committed trade record.
func (m *Metrics) ObserveTrade(side string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(side).Inc()
}

// ObserveExit counts an executed exit.
func (m *Metrics) ObserveExit(kind, rule string) {
	if m == nil {
		return
	}
	m.exits.WithLabelValues(kind, rule).Inc()
}

// SetRiskState publishes the loss streak, cooldown state and running P&L.
func (m *Metrics) SetRiskState(streak int, cooldownState int, daily, weekly float64) {
	if m == nil {
		return
	}
	m.lossStreak.Set(float64(streak))
	m.cooldownState.Set(float64(cooldownState))
	m.dailyPnL.Set(daily)
	m.weeklyPnL.Set(weekly)
}

// SetOpenPositions publishes the ledger size.
func (m *Metrics) SetOpenPositions(n int) {
	if m == nil {
		return
	}
	m.openPositions.Set(float64(n))
}
