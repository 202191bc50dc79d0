package indicators

import (
	"fmt"

	"github.com/rustyeddy/tradeguard/market"
)

// VolumeSurge returns the last bar's volume divided by the mean volume of the
// lookback bars before it. A zero mean yields 0.
func VolumeSurge(bars []market.Bar, lookback int) (float64, error) {
	if lookback <= 0 {
		return 0, fmt.Errorf("lookback must be positive, got %d", lookback)
	}
	if err := needBars(len(bars), lookback+1); err != nil {
		return 0, err
	}

	last := len(bars) - 1
	sum := 0.0
	for i := last - lookback; i < last; i++ {
		sum += bars[i].Volume
	}
	mean := sum / float64(lookback)
	if mean <= 0 {
		return 0, nil
	}
	return bars[last].Volume / mean, nil
}

// DownCloses counts how many bars in a row, ending with the last bar, closed
// below the previous bar's close.
func DownCloses(bars []market.Bar) int {
	n := 0
	for i := len(bars) - 1; i > 0; i-- {
		if bars[i].Close >= bars[i-1].Close {
			break
		}
		n++
	}
	return n
}
