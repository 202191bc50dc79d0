package desk

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rustyeddy/tradeguard/broker"
	"github.com/rustyeddy/tradeguard/indicators"
	"github.com/rustyeddy/tradeguard/market"
	"github.com/rustyeddy/tradeguard/position"
	"github.com/rustyeddy/tradeguard/risk"
)

// Decision codes added by the desk on top of the gate's.
const (
	CodeDuplicate = "DUPLICATE_POSITION"
	CodeZeroSize  = "ZERO_SIZE"
)

// Entry is a request to buy Score.Symbol at Price.
type Entry struct {
	Score          market.Score
	Price          float64
	StructuralStop *float64
}

// EntryResult reports what Open did. Position is nil unless a fill happened.
type EntryResult struct {
	Decision risk.Decision
	Sizing   risk.Sizing
	Fill     *broker.Fill
	Position *position.Position
}

// OpenSymbol fetches the score and the current price, then calls Open.
func (d *Desk) OpenSymbol(ctx context.Context, symbol string) (EntryResult, error) {
	if d.scores == nil {
		return EntryResult{}, ErrNoScores
	}
	if d.feed == nil {
		return EntryResult{}, ErrNoFeed
	}
	score, err := d.scores.Score(ctx, symbol)
	if err != nil {
		return EntryResult{}, wrap("score "+symbol, err)
	}
	price, err := d.feed.CurrentPrice(ctx, symbol)
	if err != nil {
		return EntryResult{}, wrap("price "+symbol, err)
	}
	return d.Open(ctx, Entry{Score: score, Price: price})
}

// Open sizes the entry, asks the gate, buys and records the position. A
// rejection is reported in the result, not as an error. Nothing is committed
// when the buy fails.
func (d *Desk) Open(ctx context.Context, e Entry) (EntryResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sym := e.Score.Symbol
	if _, ok := d.ledger.Get(sym); ok {
		return EntryResult{Decision: risk.Decision{Code: CodeDuplicate, Reason: sym + " already has an open position"}}, nil
	}

	cash, err := d.gw.CashBalance(ctx)
	if err != nil {
		return EntryResult{}, wrap("cash balance", err)
	}

	sizing, err := d.gate.CalculatePositionSize(ctx, risk.SizingRequest{
		Balance:        cash,
		Price:          e.Price,
		StopPrice:      e.Score.Stop,
		Confidence:     e.Score.Confidence,
		StructuralStop: e.StructuralStop,
	})
	if err != nil {
		return EntryResult{}, wrap("size "+sym, err)
	}
	res := EntryResult{Sizing: sizing}
	if sizing.Quantity == 0 {
		res.Decision = risk.Decision{Code: CodeZeroSize, Reason: "position caps leave no whole share at this price"}
		return res, nil
	}

	res.Decision = d.gate.CanOpenPosition(ctx, risk.EntryRequest{
		Balance:            cash,
		OpenPositionsValue: d.ledger.MarketValue(),
		PositionCount:      d.ledger.Count(),
		ProposedSize:       sizing.Investment,
	})
	if !res.Decision.Allowed {
		return res, nil
	}

	fill, err := d.gw.PlaceBuy(ctx, sym, sizing.Quantity, e.Price)
	if err != nil {
		return res, wrap("buy "+sym, err)
	}
	res.Fill = &fill

	p := position.Position{
		Symbol:    sym,
		Name:      e.Score.Name,
		Quantity:  fill.Quantity,
		Remaining: fill.Quantity,
		AvgPrice:  fill.Price,
		EntryTime: fill.Time,
		Targets:   e.Score.Targets,
		StopLoss:  sizing.StopPrice,
		EntryATR:  d.entryATR(ctx, sym),
		Signal:    e.Score.Signal,
		Score:     e.Score.Aggregate,
	}
	if err := d.ledger.Add(p); err != nil {
		return res, wrap("ledger add "+sym, err)
	}
	if got, ok := d.ledger.Get(sym); ok {
		res.Position = &got
	}

	var errs []error
	errs = append(errs, d.recordLocked(ctx, risk.TradeRecord{
		ID:       fill.OrderID,
		Time:     fill.Time,
		Symbol:   sym,
		Name:     e.Score.Name,
		Side:     risk.Buy,
		Quantity: fill.Quantity,
		Price:    fill.Price,
		Reason:   e.Score.Signal,
	}))
	errs = append(errs, d.saveLedgerLocked(ctx))

	d.log.InfoContext(ctx, "desk: position opened",
		slog.String("symbol", sym),
		slog.Int("quantity", fill.Quantity),
		slog.Float64("price", fill.Price),
		slog.Float64("stop", sizing.StopPrice),
	)
	if err := errors.Join(errs...); err != nil {
		return res, wrap("commit "+sym, err)
	}
	return res, nil
}

func (d *Desk) entryATR(ctx context.Context, symbol string) float64 {
	if d.atrPeriod <= 0 {
		return 0
	}
	bars := d.bars(ctx, symbol, d.atrPeriod+1)
	if bars == nil {
		return 0
	}
	atr, err := indicators.ATR(bars, d.atrPeriod)
	if err != nil {
		d.log.DebugContext(ctx, "desk: entry ATR unavailable", slog.String("symbol", symbol), slog.String("error", err.Error()))
		return 0
	}
	return atr
}
