package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// TradeRecord is one confirmed fill. RealizedPnL is zero for buys.
type TradeRecord struct {
	ID          string    `json:"id,omitempty"`
	Time        time.Time `json:"timestamp"`
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name,omitempty"`
	Side        Side      `json:"side"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"`
	RealizedPnL float64   `json:"pnl"`
	Reason      string    `json:"reason,omitempty"`
}

// Notional returns price * quantity without float drift.
func Notional(price float64, qty int) float64 {
	f, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty))).Float64()
	return f
}

type DailyState struct {
	Date        string // 2006-01-02 in the gate's location
	Trades      []TradeRecord
	RealizedPnL float64
}

type WeeklyState struct {
	WeekStart   string // Monday, 2006-01-02
	Trades      []TradeRecord
	RealizedPnL float64
}

// LossTracker holds the consecutive-loss streak and its consequences.
type LossTracker struct {
	Losses         int
	CooldownUntil  *time.Time
	SizeMultiplier float64
}

func baselineTracker() LossTracker {
	return LossTracker{SizeMultiplier: 1}
}

// CooldownState is the coarse state of the loss-streak machine.
type CooldownState int

const (
	Normal CooldownState = iota
	Degraded
	Halted
)

func (s CooldownState) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case Degraded:
		return "DEGRADED"
	case Halted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

func (lt LossTracker) state(now time.Time) CooldownState {
	if lt.CooldownUntil != nil && !now.After(*lt.CooldownUntil) {
		return Halted
	}
	if lt.SizeMultiplier < 1 {
		return Degraded
	}
	return Normal
}

// snapshot is the persisted form of the gate's state.
type snapshot struct {
	InitialBalance    float64       `json:"initial_balance"`
	RebasePending     bool          `json:"rebase_pending,omitempty"`
	Today             string        `json:"today"`
	DailyTrades       []TradeRecord `json:"daily_trades"`
	DailyRealizedPnL  float64       `json:"daily_realized_pnl"`
	WeekStart         string        `json:"week_start"`
	WeeklyTrades      []TradeRecord `json:"weekly_trades"`
	WeeklyRealizedPnL float64       `json:"weekly_realized_pnl"`
	ConsecutiveLosses int           `json:"consecutive_losses"`
	CooldownUntil     *time.Time    `json:"cooldown_until"`
	SizeMultiplier    float64       `json:"size_multiplier,omitempty"`
}

// cooldownLock is shared between processes trading the same account. Owner
// is the gate that wrote it.
type cooldownLock struct {
	CooldownUntil     time.Time `json:"cooldown_until"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	Owner             string    `json:"owner,omitempty"`
}

// Status is a read-only view of the gate.
type Status struct {
	Date              string
	WeekStart         string
	InitialBalance    float64
	DailyEntries      int
	DailyRecords      int
	DailyRealizedPnL  float64
	DailyPnLPct       float64
	WeeklyRealizedPnL float64
	WeeklyPnLPct      float64
	ConsecutiveLosses int
	CooldownUntil     *time.Time
	SizeMultiplier    float64
	WeeklyAdjustment  float64
	State             CooldownState
}

func countSide(recs []TradeRecord, side Side) int {
	n := 0
	for _, r := range recs {
		if r.Side == side {
			n++
		}
	}
	return n
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// weekStartKey returns the Monday of t's ISO week.
func weekStartKey(t time.Time) string {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return dateKey(time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location()))
}

// endOfDay returns the last instant of t's calendar day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}
