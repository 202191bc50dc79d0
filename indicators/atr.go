package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"github.com/rustyeddy/tradeguard/market"
)

// ATR calculates Wilder's Average True Range over period bars. It needs
// period+1 bars because the first true range uses the previous close.
func ATR(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if err := needBars(len(bars), period+1); err != nil {
		return 0, err
	}

	highs, lows, closes := market.HLC(bars)
	series := talib.Atr(highs, lows, closes, period)
	return series[len(series)-1], nil
}
