// Package risk decides whether a new position may be opened and how large it
// may be. Gate owns the rolling day and week counters and the loss-streak
// cooldown, and persists them after every recorded trade.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/tradeguard/metrics"
	"github.com/rustyeddy/tradeguard/pkg/id"
	"github.com/rustyeddy/tradeguard/store"
)

// Keys used in the store.
const (
	StateKey        = "risk_state"
	CooldownLockKey = "cooldown_lock"
)

type Gate struct {
	mu sync.Mutex

	policy  Policy
	kv      store.KV
	lock    store.KV
	now     func() time.Time
	loc     *time.Location
	log     *slog.Logger
	metrics *metrics.Metrics
	newID   func() string
	owner   string

	initialBalance float64
	rebasePending  bool
	daily          DailyState
	weekly         WeeklyState
	streak         LossTracker
}

type Option func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLocation sets the timezone that defines calendar days. Default time.Local.
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) { g.loc = loc }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.log = l }
}

// WithLockStore sets where the cross-process cooldown lock lives. By default
// it shares the state store.
func WithLockStore(kv store.KV) Option {
	return func(g *Gate) { g.lock = kv }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithIDs replaces the generator used for TradeRecord IDs and the gate's
// cooldown lock owner ID.
func WithIDs(newID func() string) Option {
	return func(g *Gate) { g.newID = newID }
}

// NewGate builds a gate and restores its state from kv. A missing or
// unreadable snapshot starts a fresh state; it is never an error.
func NewGate(ctx context.Context, policy Policy, kv store.KV, opts ...Option) (*Gate, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if kv == nil {
		return nil, errors.New("risk: state store is required")
	}

	g := &Gate{
		policy: policy,
		kv:     kv,
		now:    time.Now,
		loc:    time.Local,
		log:    slog.Default(),
		newID:  id.New,
		streak: baselineTracker(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.lock == nil {
		g.lock = kv
	}
	g.owner = g.newID()

	g.load(ctx)
	if g.initialBalance <= 0 {
		g.initialBalance = policy.InitialBalance
	}
	g.publishLocked()
	return g, nil
}

func (g *Gate) load(ctx context.Context) {
	var snap snapshot
	err := store.LoadJSON(ctx, g.kv, StateKey, &snap)
	switch {
	case errors.Is(err, store.ErrNotFound):
		g.log.Info("risk: no saved state, starting fresh")
		return
	case err != nil:
		g.log.Warn("risk: saved state unreadable, starting fresh", slog.String("error", err.Error()))
		return
	}

	g.initialBalance = snap.InitialBalance
	g.rebasePending = snap.RebasePending
	g.daily = DailyState{Date: snap.Today, Trades: snap.DailyTrades, RealizedPnL: snap.DailyRealizedPnL}
	g.weekly = WeeklyState{WeekStart: snap.WeekStart, Trades: snap.WeeklyTrades, RealizedPnL: snap.WeeklyRealizedPnL}
	g.streak = LossTracker{
		Losses:         snap.ConsecutiveLosses,
		CooldownUntil:  snap.CooldownUntil,
		SizeMultiplier: snap.SizeMultiplier,
	}
	if g.streak.Losses < 0 {
		g.streak.Losses = 0
	}
	if g.streak.SizeMultiplier <= 0 || g.streak.SizeMultiplier > 1 {
		g.streak.SizeMultiplier = 1
	}

	g.log.Info("risk: state restored",
		slog.String("today", snap.Today),
		slog.Int("daily_trades", len(snap.DailyTrades)),
		slog.Int("consecutive_losses", snap.ConsecutiveLosses),
	)
}

func (g *Gate) clock() time.Time {
	return g.now().In(g.loc)
}

// rolloverLocked resets the day and week when the wall clock has moved past
// them. A day change marks the session-start balance for rebasing; the first
// positive sessionBalance seen afterwards becomes the new base, even when the
// rollover itself ran without one. A configured balance survives the gate's
// first day.
func (g *Gate) rolloverLocked(now time.Time, sessionBalance float64) {
	today := dateKey(now)
	if g.daily.Date != today {
		if g.daily.Date != "" {
			g.log.Info("risk: new trading day",
				slog.String("previous", g.daily.Date),
				slog.String("today", today),
				slog.Float64("previous_realized_pnl", g.daily.RealizedPnL),
			)
		}
		g.rebasePending = g.daily.Date != "" || g.initialBalance <= 0
		g.daily = DailyState{Date: today}
	}
	if g.rebasePending && sessionBalance > 0 {
		g.log.Info("risk: session balance rebased",
			slog.Float64("previous", g.initialBalance),
			slog.Float64("initial_balance", sessionBalance),
		)
		g.initialBalance = sessionBalance
		g.rebasePending = false
	}

	ws := weekStartKey(now)
	if g.weekly.WeekStart != ws {
		g.weekly = WeeklyState{WeekStart: ws}
	}
}

// base is the denominator for loss percentages: the session-start balance,
// or the caller's total assets when no session balance is known yet.
func (g *Gate) base(fallback float64) float64 {
	if g.initialBalance > 0 {
		return g.initialBalance
	}
	return fallback
}

// StartSession records the balance loss limits are measured against for the
// rest of the day and persists it.
func (g *Gate) StartSession(ctx context.Context, balance float64) error {
	if balance <= 0 {
		return fmt.Errorf("risk: session balance must be positive, got %.2f", balance)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked(g.clock(), balance)
	g.initialBalance = balance
	g.rebasePending = false
	g.log.Info("risk: session started", slog.Float64("initial_balance", balance))
	return g.saveLocked(ctx)
}

func (g *Gate) saveLocked(ctx context.Context) error {
	snap := snapshot{
		InitialBalance:    g.initialBalance,
		RebasePending:     g.rebasePending,
		Today:             g.daily.Date,
		DailyTrades:       g.daily.Trades,
		DailyRealizedPnL:  g.daily.RealizedPnL,
		WeekStart:         g.weekly.WeekStart,
		WeeklyTrades:      g.weekly.Trades,
		WeeklyRealizedPnL: g.weekly.RealizedPnL,
		ConsecutiveLosses: g.streak.Losses,
		CooldownUntil:     g.streak.CooldownUntil,
		SizeMultiplier:    g.streak.SizeMultiplier,
	}
	if snap.DailyTrades == nil {
		snap.DailyTrades = []TradeRecord{}
	}
	if snap.WeeklyTrades == nil {
		snap.WeeklyTrades = []TradeRecord{}
	}
	if err := store.SaveJSON(ctx, g.kv, StateKey, snap); err != nil {
		return fmt.Errorf("risk: persist state: %w", err)
	}
	return nil
}

func (g *Gate) publishLocked() {
	g.metrics.SetRiskState(
		g.streak.Losses,
		int(g.streak.state(g.clock())),
		g.daily.RealizedPnL,
		g.weekly.RealizedPnL,
	)
}

// Status returns the current counters after applying any pending rollover.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	g.rolloverLocked(now, 0)
	g.expireCooldownLocked(context.Background(), now)

	s := Status{
		Date:              g.daily.Date,
		WeekStart:         g.weekly.WeekStart,
		InitialBalance:    g.initialBalance,
		DailyEntries:      countSide(g.daily.Trades, Buy),
		DailyRecords:      len(g.daily.Trades),
		DailyRealizedPnL:  g.daily.RealizedPnL,
		WeeklyRealizedPnL: g.weekly.RealizedPnL,
		ConsecutiveLosses: g.streak.Losses,
		SizeMultiplier:    g.streak.SizeMultiplier,
		WeeklyAdjustment:  g.weeklyAdjustmentLocked(),
		State:             g.streak.state(now),
	}
	if g.streak.CooldownUntil != nil {
		until := *g.streak.CooldownUntil
		s.CooldownUntil = &until
	}
	if g.initialBalance > 0 {
		s.DailyPnLPct = g.daily.RealizedPnL / g.initialBalance
		s.WeeklyPnLPct = g.weekly.RealizedPnL / g.initialBalance
	}
	return s
}

// DailyTrades returns a copy of today's trade records in fill order.
func (g *Gate) DailyTrades() []TradeRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked(g.clock(), 0)
	return append([]TradeRecord(nil), g.daily.Trades...)
}

// WeeklyTrades returns a copy of this week's trade records in fill order.
func (g *Gate) WeeklyTrades() []TradeRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked(g.clock(), 0)
	return append([]TradeRecord(nil), g.weekly.Trades...)
}
