package market

import (
	"context"
	"errors"
)

// ErrNoPrice is returned by a PriceFeed that has no quote for a symbol.
var ErrNoPrice = errors.New("market: no price")

// PriceFeed supplies the latest trade price and recent bars for a symbol.
type PriceFeed interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	// RecentBars returns up to n bars, oldest first.
	RecentBars(ctx context.Context, symbol string, n int) ([]Bar, error)
}
