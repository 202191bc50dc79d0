package risk

import (
	"context"
	"fmt"
	"log/slog"
)

// Decision codes.
const (
	CodeAllowed        = "ALLOWED"
	CodeInvalid        = "INVALID_REQUEST"
	CodeCooldown       = "COOLDOWN"
	CodeMaxPositions   = "MAX_POSITIONS"
	CodeMaxDailyTrades = "MAX_DAILY_TRADES"
	CodeDailyLoss      = "DAILY_LOSS_LIMIT"
	CodeWeeklyLoss     = "WEEKLY_LOSS_LIMIT"
	CodeHardCap        = "HARD_POSITION_CAP"
	CodePositionShare  = "POSITION_FRACTION"
	CodeCashReserve    = "CASH_RESERVE"
)

// EntryRequest describes the account and the proposed purchase.
type EntryRequest struct {
	Balance            float64 // cash
	OpenPositionsValue float64 // market value of open positions
	PositionCount      int
	ProposedSize       float64 // notional of the purchase
}

// Decision is the outcome of an admission check. "Not allowed" is an expected
// result, not an error; Reason carries the failed comparison.
type Decision struct {
	Allowed bool
	Code    string
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true, Code: CodeAllowed, Reason: "all entry checks passed"}
}

func reject(code, format string, args ...any) Decision {
	return Decision{Allowed: false, Code: code, Reason: fmt.Sprintf(format, args...)}
}

// CanOpenPosition runs the entry checks in order and stops at the first
// failure. A rejection leaves the counters untouched.
func (g *Gate) CanOpenPosition(ctx context.Context, req EntryRequest) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.canOpenLocked(ctx, req)
	g.metrics.ObserveDecision(d.Code)
	if !d.Allowed {
		g.log.WarnContext(ctx, "risk: entry rejected",
			slog.String("code", d.Code),
			slog.String("reason", d.Reason),
			slog.Float64("proposed_size", req.ProposedSize),
		)
	}
	return d
}

func (g *Gate) canOpenLocked(ctx context.Context, req EntryRequest) Decision {
	if req.Balance < 0 || req.OpenPositionsValue < 0 || req.PositionCount < 0 {
		return reject(CodeInvalid, "balance, open positions value and position count must not be negative")
	}
	if req.ProposedSize <= 0 {
		return reject(CodeInvalid, "proposed size %.2f must be positive", req.ProposedSize)
	}
	totalAssets := req.Balance + req.OpenPositionsValue

	// 1. Roll counters before anything reads them.
	now := g.clock()
	g.rolloverLocked(now, totalAssets)
	g.expireCooldownLocked(ctx, now)

	// 2. Loss-streak cooldown
	if blocked, reason := g.cooldownLocked(ctx, now); blocked {
		return reject(CodeCooldown, "%s", reason)
	}

	// 3. Open positions
	if req.PositionCount >= g.policy.MaxPositions {
		return reject(CodeMaxPositions, "open positions %d >= max %d", req.PositionCount, g.policy.MaxPositions)
	}

	// 4. Entries today
	if n := countSide(g.daily.Trades, Buy); n >= g.policy.MaxDailyTrades {
		return reject(CodeMaxDailyTrades, "daily trades %d >= max %d", n, g.policy.MaxDailyTrades)
	}

	// 5, 6. Loss limits against the session-start balance
	base := g.base(totalAssets)
	if base > 0 {
		if pct := g.daily.RealizedPnL / base; pct < -g.policy.DailyLossLimitPct {
			return reject(CodeDailyLoss, "daily realized loss %.2f%% below limit -%.2f%%",
				100*pct, 100*g.policy.DailyLossLimitPct)
		}
		if pct := g.weekly.RealizedPnL / base; pct < -g.policy.WeeklyHardStopPct {
			return reject(CodeWeeklyLoss, "weekly realized loss %.2f%% below hard stop -%.2f%%",
				100*pct, 100*g.policy.WeeklyHardStopPct)
		}
	}

	// 7. Absolute cap
	if req.ProposedSize > g.policy.HardPositionCap {
		return reject(CodeHardCap, "proposed size %.0f exceeds hard cap %.0f",
			req.ProposedSize, g.policy.HardPositionCap)
	}

	if totalAssets <= 0 {
		return reject(CodeInvalid, "total assets %.2f must be positive", totalAssets)
	}

	// 8. Share of live total assets
	if share := req.ProposedSize / totalAssets; share > g.policy.MaxPositionFraction {
		return reject(CodePositionShare, "proposed size is %.2f%% of total assets, max %.2f%%",
			100*share, 100*g.policy.MaxPositionFraction)
	}

	// 9. Cash left after the purchase
	if ratio := (req.Balance - req.ProposedSize) / totalAssets; ratio < g.policy.MinCashReserve {
		return reject(CodeCashReserve, "cash after purchase %.2f%% of total assets, min %.2f%%",
			100*ratio, 100*g.policy.MinCashReserve)
	}

	return allow()
}

// WeeklyLossAdjustment returns the sizing multiplier for the week's realized
// loss: WeeklyLossMultiplier once the soft limit is breached, 1 otherwise.
func (g *Gate) WeeklyLossAdjustment() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked(g.clock(), 0)
	return g.weeklyAdjustmentLocked()
}

func (g *Gate) weeklyAdjustmentLocked() float64 {
	if g.initialBalance <= 0 {
		return 1
	}
	if g.weekly.RealizedPnL/g.initialBalance < -g.policy.WeeklySoftLimitPct {
		return g.policy.WeeklyLossMultiplier
	}
	return 1
}

// CheckEmergencyStop applies the daily trade-count and loss tests to realized
// plus unrealized P&L. A true result means the whole session should stop,
// not just new entries.
func (g *Gate) CheckEmergencyStop(unrealizedPnL float64) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rolloverLocked(g.clock(), 0)

	if n := countSide(g.daily.Trades, Buy); n >= g.policy.MaxDailyTrades {
		return true, fmt.Sprintf("daily trades %d >= max %d", n, g.policy.MaxDailyTrades)
	}

	if g.initialBalance <= 0 {
		return false, ""
	}
	total := g.daily.RealizedPnL + unrealizedPnL
	pct := total / g.initialBalance
	if pct < -g.policy.DailyLossLimitPct {
		reason := fmt.Sprintf("daily loss %.2f%% (realized %.0f, unrealized %.0f) breached limit -%.2f%%",
			100*pct, g.daily.RealizedPnL, unrealizedPnL, 100*g.policy.DailyLossLimitPct)
		g.log.Error("risk: emergency stop", slog.String("reason", reason))
		return true, reason
	}
	return false, ""
}
