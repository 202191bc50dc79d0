package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/tradeguard/store"
)

// StoreKey is where Save and Load keep the open positions.
const StoreKey = "positions"

var (
	ErrDuplicatePosition = errors.New("position: symbol already has an open position")
	ErrInvalidPosition   = errors.New("position: invalid position")
	ErrUnknownPosition   = errors.New("position: no open position for symbol")
	ErrStageRegression   = errors.New("position: stage cannot move backwards")
	ErrInvalidStage      = errors.New("position: invalid stage")
	ErrOversell          = errors.New("position: sell quantity exceeds remaining")
)

type Config struct {
	// TrailingOffsetPct is how far below the high-water price the trailing
	// stop sits once armed. 0.02 means 2%.
	TrailingOffsetPct float64 `json:"trailing_offset_pct" yaml:"trailing_offset_pct"`
}

func DefaultConfig() Config {
	return Config{TrailingOffsetPct: 0.02}
}

func (c Config) Validate() error {
	if c.TrailingOffsetPct <= 0 || c.TrailingOffsetPct >= 1 {
		return fmt.Errorf("ledger.trailing_offset_pct must be in (0, 1), got %v", c.TrailingOffsetPct)
	}
	return nil
}

type Option func(*Ledger)

func WithLogger(l *slog.Logger) Option {
	return func(lg *Ledger) { lg.log = l }
}

// Ledger is safe for concurrent use. Every method returns copies.
type Ledger struct {
	mu        sync.RWMutex
	cfg       Config
	log       *slog.Logger
	positions map[string]*Position
}

func NewLedger(cfg Config, opts ...Option) *Ledger {
	l := &Ledger{
		cfg:       cfg,
		log:       slog.Default(),
		positions: make(map[string]*Position),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (p Position) validate() error {
	switch {
	case strings.TrimSpace(p.Symbol) == "":
		return fmt.Errorf("%w: symbol is required", ErrInvalidPosition)
	case p.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be positive (got %d)", ErrInvalidPosition, p.Quantity)
	case p.Remaining < 0 || p.Remaining > p.Quantity:
		return fmt.Errorf("%w: remaining %d outside [0, %d]", ErrInvalidPosition, p.Remaining, p.Quantity)
	case p.AvgPrice <= 0:
		return fmt.Errorf("%w: avg price must be positive", ErrInvalidPosition)
	case p.Stage < StageOpen || p.Stage > StageSecondTier:
		return fmt.Errorf("%w: stage %d", ErrInvalidPosition, p.Stage)
	}
	return nil
}

// Add opens a position. Remaining defaults to Quantity, CurrentPrice and
// HighWater to AvgPrice.
func (l *Ledger) Add(p Position) error {
	if p.Remaining == 0 {
		p.Remaining = p.Quantity
	}
	if p.CurrentPrice <= 0 {
		p.CurrentPrice = p.AvgPrice
	}
	if p.HighWater < p.CurrentPrice {
		p.HighWater = p.CurrentPrice
	}
	if err := p.validate(); err != nil {
		return err
	}
	if p.Stage >= StageSecondTier && p.TrailingStop == nil {
		ts := l.trailingFor(p.HighWater)
		p.TrailingStop = &ts
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[p.Symbol]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePosition, p.Symbol)
	}
	cp := p.clone()
	l.positions[p.Symbol] = &cp

	l.log.Info("position: opened",
		slog.String("symbol", p.Symbol),
		slog.Int("quantity", p.Quantity),
		slog.Float64("avg_price", p.AvgPrice),
		slog.Float64("stop_loss", p.StopLoss),
	)
	return nil
}

// UpdatePrice records a new market price. It moves the high-water mark and
// raises an armed trailing stop with it; it never changes quantity or stage.
func (l *Ledger) UpdatePrice(symbol string, price float64) (Position, error) {
	if price <= 0 {
		return Position{}, fmt.Errorf("position: price must be positive, got %v", price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, fmt.Errorf("%w: %s", ErrUnknownPosition, symbol)
	}
	p.CurrentPrice = price
	if price > p.HighWater {
		p.HighWater = price
		if p.TrailingStop != nil {
			l.raiseTrailing(p, l.trailingFor(p.HighWater))
		}
	}
	return p.clone(), nil
}

func (l *Ledger) trailingFor(highWater float64) float64 {
	return highWater * (1 - l.cfg.TrailingOffsetPct)
}

// raiseTrailing sets the trailing stop if it tightens it.
func (l *Ledger) raiseTrailing(p *Position, stop float64) bool {
	if p.TrailingStop != nil && stop <= *p.TrailingStop {
		return false
	}
	p.TrailingStop = &stop
	return true
}

// UpdateStage commits a confirmed partial or full sell. It fails without
// changing anything when the stage would move backwards or the sale would
// oversell. The position is removed when nothing remains; closed reports that.
func (l *Ledger) UpdateStage(symbol string, newStage, soldQty int) (p Position, closed bool, err error) {
	if newStage < StageOpen || newStage > StageSecondTier {
		return Position{}, false, fmt.Errorf("%w: %d", ErrInvalidStage, newStage)
	}
	if soldQty < 0 {
		return Position{}, false, fmt.Errorf("%w: negative quantity %d", ErrOversell, soldQty)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.positions[symbol]
	if !ok {
		return Position{}, false, fmt.Errorf("%w: %s", ErrUnknownPosition, symbol)
	}
	if newStage < cur.Stage {
		return cur.clone(), false, fmt.Errorf("%w: %s at stage %d, asked for %d", ErrStageRegression, symbol, cur.Stage, newStage)
	}
	if soldQty > cur.Remaining {
		return cur.clone(), false, fmt.Errorf("%w: %s selling %d of %d", ErrOversell, symbol, soldQty, cur.Remaining)
	}

	prevStage := cur.Stage
	cur.Remaining -= soldQty
	cur.Stage = newStage
	if prevStage < StageSecondTier && newStage >= StageSecondTier {
		l.raiseTrailing(cur, l.trailingFor(cur.HighWater))
		l.log.Info("position: trailing stop armed",
			slog.String("symbol", symbol),
			slog.Float64("trailing_stop", *cur.TrailingStop),
			slog.Float64("high_water", cur.HighWater),
		)
	}

	if cur.Remaining == 0 {
		delete(l.positions, symbol)
		l.log.Info("position: closed", slog.String("symbol", symbol), slog.Int("stage", newStage))
		return cur.clone(), true, nil
	}
	l.log.Info("position: reduced",
		slog.String("symbol", symbol),
		slog.Int("sold", soldQty),
		slog.Int("remaining", cur.Remaining),
		slog.Int("stage", newStage),
	)
	return cur.clone(), false, nil
}

// SetTrailingStop tightens the trailing stop. A stop at or below the current
// one is ignored and reported as false.
func (l *Ledger) SetTrailingStop(symbol string, stop float64) (bool, error) {
	if stop <= 0 {
		return false, fmt.Errorf("position: trailing stop must be positive, got %v", stop)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[symbol]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPosition, symbol)
	}
	return l.raiseTrailing(p, stop), nil
}

// Remove drops a position regardless of its remaining quantity.
func (l *Ledger) Remove(symbol string) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, fmt.Errorf("%w: %s", ErrUnknownPosition, symbol)
	}
	delete(l.positions, symbol)
	return p.clone(), nil
}

func (l *Ledger) Get(symbol string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return p.clone(), true
}

// List returns the open positions ordered by symbol.
func (l *Ledger) List() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// MarketValue sums the market value of every open position.
func (l *Ledger) MarketValue() float64 {
	var total float64
	for _, p := range l.List() {
		total += p.MarketValue()
	}
	return total
}

// UnrealizedPnL sums the unrealized P&L of every open position.
func (l *Ledger) UnrealizedPnL() float64 {
	var total float64
	for _, p := range l.List() {
		total += p.UnrealizedPnL()
	}
	return total
}

// Save writes the open positions to kv.
func (l *Ledger) Save(ctx context.Context, kv store.KV) error {
	if err := store.SaveJSON(ctx, kv, StoreKey, l.List()); err != nil {
		return fmt.Errorf("position: save: %w", err)
	}
	return nil
}

// Load replaces the ledger's contents with the positions saved in kv. A
// missing entry leaves the ledger empty. Positions with nothing remaining are
// dropped, and second tier positions get the trailing stop Add would arm.
func (l *Ledger) Load(ctx context.Context, kv store.KV) error {
	var saved []Position
	err := store.LoadJSON(ctx, kv, StoreKey, &saved)
	switch {
	case errors.Is(err, store.ErrNotFound):
		saved = nil
	case err != nil:
		return fmt.Errorf("position: load: %w", err)
	}

	next := make(map[string]*Position, len(saved))
	for _, p := range saved {
		if err := p.validate(); err != nil {
			return fmt.Errorf("position: load %s: %w", p.Symbol, err)
		}
		if _, dup := next[p.Symbol]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePosition, p.Symbol)
		}
		if p.Remaining == 0 {
			l.log.Warn("position: dropping closed position on restore", slog.String("symbol", p.Symbol))
			continue
		}
		if p.CurrentPrice <= 0 {
			p.CurrentPrice = p.AvgPrice
		}
		if p.HighWater < p.CurrentPrice {
			p.HighWater = p.CurrentPrice
		}
		if p.Stage >= StageSecondTier && p.TrailingStop == nil {
			ts := l.trailingFor(p.HighWater)
			p.TrailingStop = &ts
		}
		cp := p.clone()
		next[p.Symbol] = &cp
	}

	l.mu.Lock()
	l.positions = next
	l.mu.Unlock()

	l.log.Info("position: ledger restored", slog.Int("positions", len(next)))
	return nil
}
