// Package desk runs one account: it admits and sizes entries through the risk
// gate, executes them through a broker gateway and manages the resulting
// positions with the exit engine. A single mutex spans every check-then-act
// sequence so two signals can never spend the same budget.
package desk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/tradeguard/broker"
	"github.com/rustyeddy/tradeguard/exit"
	"github.com/rustyeddy/tradeguard/journal"
	"github.com/rustyeddy/tradeguard/market"
	"github.com/rustyeddy/tradeguard/metrics"
	"github.com/rustyeddy/tradeguard/position"
	"github.com/rustyeddy/tradeguard/risk"
	"github.com/rustyeddy/tradeguard/store"
)

var (
	ErrNoFeed   = errors.New("desk: no price feed configured")
	ErrNoScores = errors.New("desk: no score provider configured")
)

type Desk struct {
	mu sync.Mutex

	gate    *risk.Gate
	ledger  *position.Ledger
	engine  *exit.Engine
	gw      broker.Gateway
	feed    market.PriceFeed
	scores  market.ScoreProvider
	kv      store.KV
	journal journal.Journal
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time

	atrPeriod int
	barCount  int
}

type Option func(*Desk)

// WithPriceFeed enables entry ATR, breakdown bars and Sweep.
func WithPriceFeed(f market.PriceFeed) Option {
	return func(d *Desk) { d.feed = f }
}

func WithScores(p market.ScoreProvider) Option {
	return func(d *Desk) { d.scores = p }
}

// WithLedgerStore persists the ledger after every change.
func WithLedgerStore(kv store.KV) Option {
	return func(d *Desk) { d.kv = kv }
}

// WithJournal appends every recorded fill to j. Journal failures are logged
// and do not fail the trade.
func WithJournal(j journal.Journal) Option {
	return func(d *Desk) { d.journal = j }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Desk) { d.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Desk) { d.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(d *Desk) { d.now = now }
}

// WithBars sets the ATR period used at entry and how many bars the exit
// engine sees.
func WithBars(atrPeriod, barCount int) Option {
	return func(d *Desk) {
		d.atrPeriod = atrPeriod
		d.barCount = barCount
	}
}

func New(gate *risk.Gate, ledger *position.Ledger, engine *exit.Engine, gw broker.Gateway, opts ...Option) *Desk {
	d := &Desk{
		gate:      gate,
		ledger:    ledger,
		engine:    engine,
		gw:        gw,
		log:       slog.Default(),
		now:       time.Now,
		atrPeriod: 14,
		barCount:  20,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Restore loads the ledger from the ledger store.
func (d *Desk) Restore(ctx context.Context) error {
	if d.kv == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ledger.Load(ctx, d.kv); err != nil {
		return err
	}
	d.metrics.SetOpenPositions(d.ledger.Count())
	return nil
}

func (d *Desk) saveLedgerLocked(ctx context.Context) error {
	d.metrics.SetOpenPositions(d.ledger.Count())
	if d.kv == nil {
		return nil
	}
	return d.ledger.Save(ctx, d.kv)
}

func (d *Desk) recordLocked(ctx context.Context, rec risk.TradeRecord) error {
	rec.Amount = risk.Notional(rec.Price, rec.Quantity)
	err := d.gate.RecordTrade(ctx, rec)
	if d.journal != nil {
		if jerr := d.journal.RecordTrade(rec); jerr != nil {
			d.log.WarnContext(ctx, "desk: journal write failed",
				slog.String("symbol", rec.Symbol),
				slog.String("error", jerr.Error()),
			)
		}
	}
	return err
}

func (d *Desk) bars(ctx context.Context, symbol string, n int) []market.Bar {
	if d.feed == nil || n <= 0 {
		return nil
	}
	bars, err := d.feed.RecentBars(ctx, symbol, n)
	if err != nil {
		d.log.DebugContext(ctx, "desk: no bars", slog.String("symbol", symbol), slog.String("error", err.Error()))
		return nil
	}
	return bars
}

// EmergencyStop applies the gate's emergency test to the ledger's unrealized
// P&L.
func (d *Desk) EmergencyStop() (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gate.CheckEmergencyStop(d.ledger.UnrealizedPnL())
}

// Positions returns the open positions.
func (d *Desk) Positions() []position.Position {
	return d.ledger.List()
}

func wrap(op string, err error) error {
	return fmt.Errorf("desk: %s: %w", op, err)
}
