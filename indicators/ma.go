package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"github.com/rustyeddy/tradeguard/market"
)

// EMASeries returns the EMA of closes aligned with bars. Entries before the
// first full period are zero.
func EMASeries(bars []market.Bar, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	if err := needBars(len(bars), period); err != nil {
		return nil, err
	}
	return talib.Ema(market.Closes(bars), period), nil
}
