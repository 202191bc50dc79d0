// Package exit proposes how to leave an open position. Engine.Evaluate is a
// pure function of the position, the price, the time and optional recent bars;
// executing the proposal and updating the ledger is the caller's job.
package exit

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rustyeddy/tradeguard/market"
	"github.com/rustyeddy/tradeguard/position"
)

type Engine struct {
	cfg        Config
	loc        *time.Location
	closeAfter int // minutes after midnight, -1 when disabled
	log        *slog.Logger
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, loc: time.Local, closeAfter: -1, log: slog.Default()}
	if cfg.Location != "" {
		loc, err := time.LoadLocation(cfg.Location)
		if err != nil {
			return nil, err
		}
		e.loc = loc
	}
	if cfg.ForceCloseAt != "" {
		m, err := clockTime(cfg.ForceCloseAt)
		if err != nil {
			return nil, err
		}
		e.closeAfter = m
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func tierQty(quantity int, fraction float64) int {
	return int(math.Floor(float64(quantity)*fraction + 1e-9))
}

// Evaluate applies the exit rules in priority order and returns the first
// that fires:
//
//  1. forced close at or after ForceCloseAt
//  2. hard stop on the unrealized return
//  3. first profit tier, from stage 0
//  4. second profit tier, from stage 1
//  5. trailing stop, from stage 2
//  6. trend breakdown in recent bars
//  7. the static stop loss
//
// A tier whose quantity rounds to zero is skipped.
func (e *Engine) Evaluate(p position.Position, price float64, now time.Time, bars []market.Bar) Decision {
	if p.Remaining <= 0 || price <= 0 || p.AvgPrice <= 0 {
		return Hold{}
	}
	full := func(rule Rule, format string, args ...any) Decision {
		d := FullExit{Quantity: p.Remaining, Rule: rule, Reason: fmt.Sprintf(format, args...)}
		e.log.Debug("exit: proposed", slog.String("symbol", p.Symbol), slog.String("decision", d.String()))
		return d
	}
	ret := (price - p.AvgPrice) / p.AvgPrice

	// 1
	if e.closeAfter >= 0 {
		local := now.In(e.loc)
		if local.Hour()*60+local.Minute() >= e.closeAfter {
			return full(RuleForceClose, "forced close at %s (now %s)", e.cfg.ForceCloseAt, local.Format("15:04"))
		}
	}

	// 2
	if ret <= e.cfg.HardStopPct {
		return full(RuleHardStop, "return %.2f%% at or below hard stop %.2f%%", 100*ret, 100*e.cfg.HardStopPct)
	}

	// 3
	if p.Stage == position.StageOpen && ret >= e.cfg.FirstTierPct {
		if qty := min(tierQty(p.Quantity, e.cfg.FirstTierFraction), p.Remaining); qty > 0 {
			return e.partial(p, PartialExit{
				Quantity:  qty,
				NextStage: position.StageFirstTier,
				Rule:      RuleFirstTier,
				Reason:    fmt.Sprintf("return %.2f%% reached first tier %.2f%%", 100*ret, 100*e.cfg.FirstTierPct),
			})
		}
	}

	// 4
	if p.Stage == position.StageFirstTier && ret >= e.cfg.SecondTierPct {
		if qty := min(tierQty(p.Quantity, e.cfg.SecondTierFraction), p.Remaining); qty > 0 {
			return e.partial(p, PartialExit{
				Quantity:  qty,
				NextStage: position.StageSecondTier,
				Rule:      RuleSecondTier,
				Reason:    fmt.Sprintf("return %.2f%% reached second tier %.2f%%", 100*ret, 100*e.cfg.SecondTierPct),
			})
		}
	}

	// 5
	if stop, ok := p.Trailing(); ok && p.Stage >= position.StageSecondTier && price <= stop {
		return full(RuleTrailingStop, "price %.2f at or below trailing stop %.2f", price, stop)
	}

	// 6
	if b := e.breakdown(bars); b.Level != NoBreakdown {
		switch {
		case b.Level == HighBreakdown:
			return full(RuleBreakdownHigh, "high-confidence breakdown: %s", b)
		case b.Level == MediumBreakdown && ret < 0:
			return full(RuleBreakdownMedium, "medium-confidence breakdown at a loss (%.2f%%): %s", 100*ret, b)
		}
	}

	// 7
	if p.StopLoss > 0 && price <= p.StopLoss {
		return full(RuleStopLoss, "price %.2f at or below stop loss %.2f", price, p.StopLoss)
	}

	return Hold{}
}

func (e *Engine) partial(p position.Position, d PartialExit) Decision {
	e.log.Debug("exit: proposed", slog.String("symbol", p.Symbol), slog.String("decision", d.String()))
	return d
}
