// Package paper is an in-memory broker. Orders fill immediately at the
// requested price against a cash balance and a per-symbol holding.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradeguard/broker"
	"github.com/rustyeddy/tradeguard/pkg/id"
)

type Gateway struct {
	mu       sync.Mutex
	cash     decimal.Decimal
	holdings map[string]int
	fills    []broker.Fill
	failures []error
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*Gateway)

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

func New(cash float64, opts ...Option) *Gateway {
	g := &Gateway{
		cash:     decimal.NewFromFloat(cash),
		holdings: make(map[string]int),
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FailNext makes the next calls fail with errs, one per call, in order.
func (g *Gateway) FailNext(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = append(g.failures, errs...)
}

func (g *Gateway) injectedLocked() error {
	if len(g.failures) == 0 {
		return nil
	}
	err := g.failures[0]
	g.failures = g.failures[1:]
	return err
}

func checkOrder(symbol string, qty int, price float64) error {
	if symbol == "" || qty <= 0 || price <= 0 {
		return fmt.Errorf("%w: symbol %q qty %d price %v", broker.ErrRejected, symbol, qty, price)
	}
	return nil
}

func (g *Gateway) PlaceBuy(ctx context.Context, symbol string, qty int, price float64) (broker.Fill, error) {
	if err := ctx.Err(); err != nil {
		return broker.Fill{}, err
	}
	if err := checkOrder(symbol, qty, price); err != nil {
		return broker.Fill{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injectedLocked(); err != nil {
		return broker.Fill{}, err
	}
	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty)))
	if cost.GreaterThan(g.cash) {
		return broker.Fill{}, fmt.Errorf("%w: need %s, have %s", broker.ErrInsufficientCash, cost.StringFixed(2), g.cash.StringFixed(2))
	}
	g.cash = g.cash.Sub(cost)
	g.holdings[symbol] += qty
	return g.fillLocked(symbol, broker.Buy, qty, price), nil
}

func (g *Gateway) PlaceSell(ctx context.Context, symbol string, qty int, price float64) (broker.Fill, error) {
	if err := ctx.Err(); err != nil {
		return broker.Fill{}, err
	}
	if err := checkOrder(symbol, qty, price); err != nil {
		return broker.Fill{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injectedLocked(); err != nil {
		return broker.Fill{}, err
	}
	if held := g.holdings[symbol]; qty > held {
		return broker.Fill{}, fmt.Errorf("%w: selling %d %s, holding %d", broker.ErrRejected, qty, symbol, held)
	}
	g.cash = g.cash.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty))))
	g.holdings[symbol] -= qty
	if g.holdings[symbol] == 0 {
		delete(g.holdings, symbol)
	}
	return g.fillLocked(symbol, broker.Sell, qty, price), nil
}

func (g *Gateway) fillLocked(symbol string, side broker.Side, qty int, price float64) broker.Fill {
	f := broker.Fill{
		OrderID:  id.New(),
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Price:    price,
		Time:     g.now(),
	}
	g.fills = append(g.fills, f)
	g.log.Info("paper: filled",
		slog.String("order_id", f.OrderID),
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.Int("quantity", qty),
		slog.Float64("price", price),
	)
	return f
}

func (g *Gateway) CashBalance(ctx context.Context) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.injectedLocked(); err != nil {
		return 0, err
	}
	f, _ := g.cash.Float64()
	return f, nil
}

// Holding returns the shares held in symbol.
func (g *Gateway) Holding(symbol string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holdings[symbol]
}

// Fills returns every fill so far, oldest first.
func (g *Gateway) Fills() []broker.Fill {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]broker.Fill(nil), g.fills...)
}
