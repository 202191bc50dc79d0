package exit

import (
	"fmt"
	"time"
)

type Config struct {
	// ForceCloseAt is the local wall-clock time, "15:04", from which every
	// position is closed. Empty disables the rule.
	ForceCloseAt string `json:"force_close_at" yaml:"force_close_at"`
	// Location names the timezone ForceCloseAt is read in. Empty means Local.
	Location string `json:"location" yaml:"location"`

	HardStopPct        float64 `json:"hard_stop_pct" yaml:"hard_stop_pct"` // -0.03
	FirstTierPct       float64 `json:"first_tier_pct" yaml:"first_tier_pct"`
	FirstTierFraction  float64 `json:"first_tier_fraction" yaml:"first_tier_fraction"`
	SecondTierPct      float64 `json:"second_tier_pct" yaml:"second_tier_pct"`
	SecondTierFraction float64 `json:"second_tier_fraction" yaml:"second_tier_fraction"`

	// Breakdown detection
	EMAPeriod        int     `json:"ema_period" yaml:"ema_period"`
	VolumeLookback   int     `json:"volume_lookback" yaml:"volume_lookback"`
	VolumeSurgeRatio float64 `json:"volume_surge_ratio" yaml:"volume_surge_ratio"`
	DownCloses       int     `json:"down_closes" yaml:"down_closes"`
}

func DefaultConfig() Config {
	return Config{
		ForceCloseAt:       "15:00",
		HardStopPct:        -0.03,
		FirstTierPct:       0.04,
		FirstTierFraction:  0.4,
		SecondTierPct:      0.06,
		SecondTierFraction: 0.3,
		EMAPeriod:          5,
		VolumeLookback:     5,
		VolumeSurgeRatio:   1.5,
		DownCloses:         3,
	}
}

// clockTime parses "15:04" into minutes after midnight.
func clockTime(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("exit.force_close_at must be HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (c Config) Validate() error {
	if c.ForceCloseAt != "" {
		if _, err := clockTime(c.ForceCloseAt); err != nil {
			return err
		}
	}
	if c.Location != "" {
		if _, err := time.LoadLocation(c.Location); err != nil {
			return fmt.Errorf("exit.location: %w", err)
		}
	}
	if c.HardStopPct >= 0 || c.HardStopPct <= -1 {
		return fmt.Errorf("exit.hard_stop_pct must be in (-1, 0), got %v", c.HardStopPct)
	}
	if c.FirstTierPct <= 0 {
		return fmt.Errorf("exit.first_tier_pct must be positive")
	}
	if c.SecondTierPct <= c.FirstTierPct {
		return fmt.Errorf("exit.second_tier_pct must be above first_tier_pct")
	}
	if c.FirstTierFraction <= 0 || c.SecondTierFraction <= 0 || c.FirstTierFraction+c.SecondTierFraction >= 1 {
		return fmt.Errorf("exit tier fractions must be positive and leave a remainder, got %v + %v",
			c.FirstTierFraction, c.SecondTierFraction)
	}
	if c.EMAPeriod <= 0 || c.VolumeLookback <= 0 || c.DownCloses <= 0 {
		return fmt.Errorf("exit.ema_period, volume_lookback and down_closes must be positive")
	}
	if c.VolumeSurgeRatio <= 0 {
		return fmt.Errorf("exit.volume_surge_ratio must be positive")
	}
	return nil
}
