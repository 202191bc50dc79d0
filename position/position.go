// Package position keeps the open positions of one account, one per symbol,
// and enforces that a position is never oversold and never moves back a stage.
package position

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exit stages. A position starts at StageOpen and only moves forward.
const (
	StageOpen       = 0
	StageFirstTier  = 1
	StageSecondTier = 2
)

// Position is a long holding opened by a confirmed BUY fill.
type Position struct {
	Symbol       string     `json:"symbol"`
	Name         string     `json:"name,omitempty"`
	Quantity     int        `json:"quantity"` // original fill
	Remaining    int        `json:"remaining_quantity"`
	AvgPrice     float64    `json:"avg_price"`
	CurrentPrice float64    `json:"current_price"`
	HighWater    float64    `json:"high_water"`
	EntryTime    time.Time  `json:"entry_time"`
	Targets      [3]float64 `json:"targets"`
	StopLoss     float64    `json:"stop_loss"`
	EntryATR     float64    `json:"entry_atr,omitempty"`
	Stage        int        `json:"stage"`
	TrailingStop *float64   `json:"trailing_stop,omitempty"`
	Signal       string     `json:"signal,omitempty"`
	Score        float64    `json:"score,omitempty"`
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// UnrealizedPnL is (CurrentPrice - AvgPrice) * Remaining.
func (p Position) UnrealizedPnL() float64 {
	return toFloat(dec(p.CurrentPrice).Sub(dec(p.AvgPrice)).Mul(decimal.NewFromInt(int64(p.Remaining))))
}

// ReturnPct is the unrealized return as a fraction of AvgPrice.
func (p Position) ReturnPct() float64 {
	if p.AvgPrice <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.AvgPrice) / p.AvgPrice
}

// MarketValue is CurrentPrice * Remaining.
func (p Position) MarketValue() float64 {
	return toFloat(dec(p.CurrentPrice).Mul(decimal.NewFromInt(int64(p.Remaining))))
}

// RealizedPnL is the profit of selling qty shares at price.
func (p Position) RealizedPnL(price float64, qty int) float64 {
	return toFloat(dec(price).Sub(dec(p.AvgPrice)).Mul(decimal.NewFromInt(int64(qty))))
}

// Trailing reports the armed trailing stop.
func (p Position) Trailing() (float64, bool) {
	if p.TrailingStop == nil {
		return 0, false
	}
	return *p.TrailingStop, true
}

func (p Position) clone() Position {
	if p.TrailingStop != nil {
		ts := *p.TrailingStop
		p.TrailingStop = &ts
	}
	return p
}
