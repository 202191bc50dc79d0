package risk

import (
	"fmt"
	"time"
)

// CooldownPolicy selects what happens when the loss streak reaches
// Policy.MaxConsecutiveLosses. The two policies are alternatives.
type CooldownPolicy string

const (
	// CooldownHalt rejects new entries until the cooldown expires.
	CooldownHalt CooldownPolicy = "halt"
	// CooldownReduce keeps trading but scales every new position down.
	CooldownReduce CooldownPolicy = "reduce"
)

type Policy struct {
	// InitialBalance seeds the session-start balance before StartSession or
	// the first entry check of a day supplies one.
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`

	// Exposure limits
	MaxPositions   int `json:"max_positions" yaml:"max_positions"`       // 5
	MaxDailyTrades int `json:"max_daily_trades" yaml:"max_daily_trades"` // 10

	// Circuit breakers, as fractions of the session-start balance
	DailyLossLimitPct    float64 `json:"daily_loss_limit_pct" yaml:"daily_loss_limit_pct"`       // 0.03
	WeeklySoftLimitPct   float64 `json:"weekly_soft_limit_pct" yaml:"weekly_soft_limit_pct"`     // 0.03
	WeeklyHardStopPct    float64 `json:"weekly_hard_stop_pct" yaml:"weekly_hard_stop_pct"`       // 0.05
	WeeklyLossMultiplier float64 `json:"weekly_loss_multiplier" yaml:"weekly_loss_multiplier"` // 0.5

	// Position caps
	HardPositionCap     float64 `json:"hard_position_cap" yaml:"hard_position_cap"`         // 500000
	MaxPositionFraction float64 `json:"max_position_fraction" yaml:"max_position_fraction"` // 0.3 of total assets
	MinCashReserve      float64 `json:"min_cash_reserve" yaml:"min_cash_reserve"`           // 0.1 of total assets

	// Sizing
	RiskFraction         float64 `json:"risk_fraction" yaml:"risk_fraction"`                     // 0.02
	MaxStructuralStopPct float64 `json:"max_structural_stop_pct" yaml:"max_structural_stop_pct"` // 0.03
	MinConfidence        float64 `json:"min_confidence" yaml:"min_confidence"`                   // 0.5

	// Loss streak
	MaxConsecutiveLosses     int            `json:"max_consecutive_losses" yaml:"max_consecutive_losses"`           // 3
	CooldownPolicy           CooldownPolicy `json:"cooldown_policy" yaml:"cooldown_policy"`                         // halt
	CooldownDuration         time.Duration  `json:"cooldown_duration,omitempty" yaml:"cooldown_duration,omitempty"` // 0 = rest of the day
	LossStreakSizeMultiplier float64        `json:"loss_streak_size_multiplier" yaml:"loss_streak_size_multiplier"` // 0.5
}

// DefaultPolicy returns the limits used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxPositions:             5,
		MaxDailyTrades:           10,
		DailyLossLimitPct:        0.03,
		WeeklySoftLimitPct:       0.03,
		WeeklyHardStopPct:        0.05,
		WeeklyLossMultiplier:     0.5,
		HardPositionCap:          500_000,
		MaxPositionFraction:      0.3,
		MinCashReserve:           0.1,
		RiskFraction:             0.02,
		MaxStructuralStopPct:     0.03,
		MinConfidence:            0.5,
		MaxConsecutiveLosses:     3,
		CooldownPolicy:           CooldownHalt,
		LossStreakSizeMultiplier: 0.5,
	}
}

func fraction(name string, v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("risk.%s must be in (0, 1], got %v", name, v)
	}
	return nil
}

// Validate checks that every limit is usable.
func (p Policy) Validate() error {
	if p.InitialBalance < 0 {
		return fmt.Errorf("risk.initial_balance must not be negative")
	}
	if p.MaxPositions <= 0 {
		return fmt.Errorf("risk.max_positions must be positive")
	}
	if p.MaxDailyTrades <= 0 {
		return fmt.Errorf("risk.max_daily_trades must be positive")
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"daily_loss_limit_pct", p.DailyLossLimitPct},
		{"weekly_soft_limit_pct", p.WeeklySoftLimitPct},
		{"weekly_hard_stop_pct", p.WeeklyHardStopPct},
		{"weekly_loss_multiplier", p.WeeklyLossMultiplier},
		{"max_position_fraction", p.MaxPositionFraction},
		{"risk_fraction", p.RiskFraction},
		{"max_structural_stop_pct", p.MaxStructuralStopPct},
		{"min_confidence", p.MinConfidence},
		{"loss_streak_size_multiplier", p.LossStreakSizeMultiplier},
	} {
		if err := fraction(f.name, f.v); err != nil {
			return err
		}
	}
	if p.MinCashReserve < 0 || p.MinCashReserve >= 1 {
		return fmt.Errorf("risk.min_cash_reserve must be in [0, 1)")
	}
	if p.WeeklySoftLimitPct > p.WeeklyHardStopPct {
		return fmt.Errorf("risk.weekly_soft_limit_pct %.4f must not exceed weekly_hard_stop_pct %.4f",
			p.WeeklySoftLimitPct, p.WeeklyHardStopPct)
	}
	if p.HardPositionCap <= 0 {
		return fmt.Errorf("risk.hard_position_cap must be positive")
	}
	if p.MaxConsecutiveLosses < 0 {
		return fmt.Errorf("risk.max_consecutive_losses must not be negative")
	}
	switch p.CooldownPolicy {
	case CooldownHalt, CooldownReduce:
	default:
		return fmt.Errorf("risk.cooldown_policy must be %q or %q, got %q", CooldownHalt, CooldownReduce, p.CooldownPolicy)
	}
	if p.CooldownDuration < 0 {
		return fmt.Errorf("risk.cooldown_duration must not be negative")
	}
	return nil
}
