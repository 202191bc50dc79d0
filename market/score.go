package market

import "context"

// Score is the aggregate entry signal for a symbol. It is read once, when a
// position is opened.
type Score struct {
	Symbol     string
	Name       string
	Aggregate  float64    // 0-100
	Confidence float64    // 0-1
	Targets    [3]float64 // take-profit prices, nearest first
	Stop       float64
	Signal     string // label such as "BUY" or "STRONG_BUY"
}

// ScoreProvider produces entry scores. Scoring itself lives outside this module.
type ScoreProvider interface {
	Score(ctx context.Context, symbol string) (Score, error)
}
