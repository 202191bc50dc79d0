package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidTrade is returned for records that cannot describe a fill.
var ErrInvalidTrade = errors.New("risk: invalid trade record")

func (r TradeRecord) validate() error {
	switch {
	case strings.TrimSpace(r.Symbol) == "":
		return fmt.Errorf("%w: symbol is required", ErrInvalidTrade)
	case r.Side != Buy && r.Side != Sell:
		return fmt.Errorf("%w: side must be BUY or SELL (got %q)", ErrInvalidTrade, r.Side)
	case r.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive (got %d)", ErrInvalidTrade, r.Quantity)
	case r.Price <= 0:
		return fmt.Errorf("%w: price must be positive (got %.2f)", ErrInvalidTrade, r.Price)
	}
	return nil
}

func addPnL(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Float64()
	return f
}

// RecordTrade appends a confirmed fill to the day and week logs. A SELL adds
// its realized P&L to both totals and moves the loss streak. State is written
// to the store before RecordTrade returns; a write that still fails after one
// retry is returned, with the in-memory update already applied.
func (g *Gate) RecordTrade(ctx context.Context, rec TradeRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	if rec.Time.IsZero() {
		rec.Time = now
	}
	if rec.ID == "" {
		rec.ID = g.newID()
	}
	rec.Amount = Notional(rec.Price, rec.Quantity)
	if rec.Side == Buy {
		rec.RealizedPnL = 0
	}

	g.rolloverLocked(now, 0)
	g.expireCooldownLocked(ctx, now)

	g.daily.Trades = append(g.daily.Trades, rec)
	g.weekly.Trades = append(g.weekly.Trades, rec)

	var errs []error
	if rec.Side == Sell {
		g.daily.RealizedPnL = addPnL(g.daily.RealizedPnL, rec.RealizedPnL)
		g.weekly.RealizedPnL = addPnL(g.weekly.RealizedPnL, rec.RealizedPnL)
		errs = append(errs, g.applyResultLocked(ctx, rec.RealizedPnL, now))
	}
	errs = append(errs, g.saveLocked(ctx))

	g.metrics.ObserveTrade(string(rec.Side))
	g.publishLocked()

	g.log.InfoContext(ctx, "risk: trade recorded",
		slog.String("id", rec.ID),
		slog.String("symbol", rec.Symbol),
		slog.String("side", string(rec.Side)),
		slog.Int("quantity", rec.Quantity),
		slog.Float64("price", rec.Price),
		slog.Float64("pnl", rec.RealizedPnL),
		slog.Float64("daily_realized_pnl", g.daily.RealizedPnL),
		slog.Int("consecutive_losses", g.streak.Losses),
	)

	if err := errors.Join(errs...); err != nil {
		g.log.ErrorContext(ctx, "risk: trade recorded but state not persisted", slog.String("error", err.Error()))
		return err
	}
	return nil
}
