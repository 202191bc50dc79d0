package exit

import (
	"fmt"

	"github.com/rustyeddy/tradeguard/indicators"
	"github.com/rustyeddy/tradeguard/market"
)

type BreakdownLevel int

const (
	NoBreakdown BreakdownLevel = iota
	MediumBreakdown
	HighBreakdown
)

// Breakdown is what the bars say about the trend.
type Breakdown struct {
	Level      BreakdownLevel
	Close      float64
	EMA        float64
	VolumeRate float64
	DownCloses int
}

func (b Breakdown) String() string {
	return fmt.Sprintf("close %.2f vs EMA %.2f, volume x%.2f, %d lower closes",
		b.Close, b.EMA, b.VolumeRate, b.DownCloses)
}

// breakdown grades the latest bar. The close must be under the EMA and must
// have crossed below it within the last DownCloses bars; a stock that has
// traded under its EMA for longer is not breaking down again. A volume surge
// and a run of lower closes each add confidence. Too few bars yields
// NoBreakdown.
func (e *Engine) breakdown(bars []market.Bar) Breakdown {
	need := max(e.cfg.EMAPeriod+1, e.cfg.VolumeLookback+1, e.cfg.DownCloses+1)
	if len(bars) < need {
		return Breakdown{}
	}

	series, err := indicators.EMASeries(bars, e.cfg.EMAPeriod)
	if err != nil {
		return Breakdown{}
	}
	ema := series[len(series)-1]
	surge, err := indicators.VolumeSurge(bars, e.cfg.VolumeLookback)
	if err != nil {
		return Breakdown{}
	}

	b := Breakdown{
		Close:      bars[len(bars)-1].Close,
		EMA:        ema,
		VolumeRate: surge,
		DownCloses: indicators.DownCloses(bars),
	}
	if b.Close >= b.EMA || !e.crossedBelow(bars, series) {
		return b
	}

	confirm := 0
	if b.VolumeRate >= e.cfg.VolumeSurgeRatio {
		confirm++
	}
	if b.DownCloses >= e.cfg.DownCloses {
		confirm++
	}
	switch confirm {
	case 2:
		b.Level = HighBreakdown
	case 1:
		b.Level = MediumBreakdown
	}
	return b
}

// crossedBelow reports whether some close in the last DownCloses bars fell
// from at or above its EMA to below it.
func (e *Engine) crossedBelow(bars []market.Bar, ema []float64) bool {
	first := e.cfg.EMAPeriod - 1
	last := len(bars) - 1
	for i := last; i > last-e.cfg.DownCloses && i > first; i-- {
		if bars[i].Close < ema[i] && bars[i-1].Close >= ema[i-1] {
			return true
		}
	}
	return false
}
