package desk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rustyeddy/tradeguard/exit"
	"github.com/rustyeddy/tradeguard/position"
	"github.com/rustyeddy/tradeguard/risk"
)

// OnTick records a new price for symbol and executes whatever the exit engine
// proposes. The ledger and the gate change only after a confirmed fill.
func (d *Desk) OnTick(ctx context.Context, symbol string, price float64) (exit.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.ledger.UpdatePrice(symbol, price)
	if err != nil {
		return exit.Hold{}, wrap("tick "+symbol, err)
	}

	dec := d.engine.Evaluate(p, price, d.now(), d.bars(ctx, symbol, d.barCount))
	switch x := dec.(type) {
	case exit.PartialExit:
		return dec, d.sellLocked(ctx, p, x.NextStage, x.Quantity, price, string(x.Rule), x.Reason, dec.Kind())
	case exit.FullExit:
		return dec, d.sellLocked(ctx, p, p.Stage, x.Quantity, price, string(x.Rule), x.Reason, dec.Kind())
	}
	return dec, nil
}

func (d *Desk) sellLocked(ctx context.Context, p position.Position, stage, qty int, price float64, rule, reason, kind string) error {
	fill, err := d.gw.PlaceSell(ctx, p.Symbol, qty, price)
	if err != nil {
		d.log.ErrorContext(ctx, "desk: sell failed, position unchanged",
			slog.String("symbol", p.Symbol),
			slog.String("rule", rule),
			slog.String("error", err.Error()),
		)
		return wrap("sell "+p.Symbol, err)
	}

	if _, _, err := d.ledger.UpdateStage(p.Symbol, stage, fill.Quantity); err != nil {
		return wrap("ledger update "+p.Symbol, err)
	}
	d.metrics.ObserveExit(kind, rule)

	pnl := p.RealizedPnL(fill.Price, fill.Quantity)
	var errs []error
	errs = append(errs, d.recordLocked(ctx, risk.TradeRecord{
		ID:          fill.OrderID,
		Time:        fill.Time,
		Symbol:      p.Symbol,
		Name:        p.Name,
		Side:        risk.Sell,
		Quantity:    fill.Quantity,
		Price:       fill.Price,
		RealizedPnL: pnl,
		Reason:      reason,
	}))
	errs = append(errs, d.saveLedgerLocked(ctx))

	d.log.InfoContext(ctx, "desk: exit executed",
		slog.String("symbol", p.Symbol),
		slog.String("kind", kind),
		slog.String("rule", rule),
		slog.Int("quantity", fill.Quantity),
		slog.Float64("price", fill.Price),
		slog.Float64("pnl", pnl),
	)
	if err := errors.Join(errs...); err != nil {
		return wrap("commit "+p.Symbol, err)
	}
	return nil
}

// Sweep runs OnTick for every open position at the feed's current price and
// returns the decisions that were not Hold.
func (d *Desk) Sweep(ctx context.Context) (map[string]exit.Decision, error) {
	if d.feed == nil {
		return nil, ErrNoFeed
	}

	acted := make(map[string]exit.Decision)
	var errs []error
	for _, p := range d.ledger.List() {
		price, err := d.feed.CurrentPrice(ctx, p.Symbol)
		if err != nil {
			errs = append(errs, fmt.Errorf("price %s: %w", p.Symbol, err))
			continue
		}
		dec, err := d.OnTick(ctx, p.Symbol, price)
		if err != nil {
			errs = append(errs, err)
		}
		if _, hold := dec.(exit.Hold); !hold {
			acted[p.Symbol] = dec
		}
	}
	return acted, errors.Join(errs...)
}

// CloseAll sells every open position at its last price. It is the response
// to an emergency stop.
func (d *Desk) CloseAll(ctx context.Context, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, p := range d.ledger.List() {
		if err := d.sellLocked(ctx, p, p.Stage, p.Remaining, p.CurrentPrice, "emergency", reason, "full"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
