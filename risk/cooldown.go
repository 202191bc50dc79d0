package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/tradeguard/store"
)

// expireCooldownLocked returns a halted tracker to baseline once the wall
// clock passes CooldownUntil. It does not arm a new cooldown.
func (g *Gate) expireCooldownLocked(ctx context.Context, now time.Time) {
	until := g.streak.CooldownUntil
	if until == nil || !now.After(*until) {
		return
	}

	g.log.Info("risk: cooldown expired, entries resumed",
		slog.Time("cooldown_until", *until),
		slog.Int("consecutive_losses", g.streak.Losses),
	)
	g.streak = baselineTracker()
	if err := g.releaseLock(ctx, now, false); err != nil {
		g.log.Warn("risk: cooldown lock cleanup failed", slog.String("error", err.Error()))
	}
	g.publishLocked()
}

// cooldownLocked reports whether the loss-streak halt, or a lock held by
// another process, blocks new entries.
func (g *Gate) cooldownLocked(ctx context.Context, now time.Time) (bool, string) {
	limit := g.policy.MaxConsecutiveLosses
	if limit <= 0 {
		return false, ""
	}

	if g.policy.CooldownPolicy == CooldownHalt && g.streak.Losses >= limit && g.streak.CooldownUntil != nil {
		if !now.After(*g.streak.CooldownUntil) {
			return true, fmt.Sprintf("loss streak %d >= limit %d, entries halted until %s",
				g.streak.Losses, limit, g.streak.CooldownUntil.Format(time.RFC3339))
		}
	}

	lk, ok, err := g.readLock(ctx)
	if err != nil {
		g.log.Warn("risk: cooldown lock unreadable, ignoring", slog.String("error", err.Error()))
		return false, ""
	}
	if !ok {
		return false, ""
	}

	if g.lockStale(lk, now) {
		if err := g.deleteLock(ctx); err != nil {
			g.log.Warn("risk: cooldown lock cleanup failed", slog.String("error", err.Error()))
		}
		return false, ""
	}
	return true, fmt.Sprintf("shared cooldown lock: loss streak %d >= limit %d, entries halted until %s",
		lk.ConsecutiveLosses, limit, lk.CooldownUntil.Format(time.RFC3339))
}

func (g *Gate) cooldownEnd(now time.Time) time.Time {
	if g.policy.CooldownDuration > 0 {
		return now.Add(g.policy.CooldownDuration)
	}
	return endOfDay(now)
}

// applyResultLocked moves the loss-streak machine for one realized P&L.
// A breakeven trade changes nothing.
func (g *Gate) applyResultLocked(ctx context.Context, pnl float64, now time.Time) error {
	switch {
	case pnl > 0:
		if g.streak.Losses == 0 && g.streak.CooldownUntil == nil && g.streak.SizeMultiplier == 1 {
			return nil
		}
		g.log.Info("risk: winning trade, loss streak reset",
			slog.Int("previous_losses", g.streak.Losses),
			slog.String("previous_state", g.streak.state(now).String()),
		)
		g.streak = baselineTracker()
		return g.releaseLock(ctx, now, true)

	case pnl < 0:
		g.streak.Losses++
		limit := g.policy.MaxConsecutiveLosses
		if limit <= 0 || g.streak.Losses < limit {
			return nil
		}

		switch g.policy.CooldownPolicy {
		case CooldownHalt:
			until := g.cooldownEnd(now)
			g.streak.CooldownUntil = &until
			g.log.Warn("risk: loss streak limit reached, entries halted",
				slog.Int("consecutive_losses", g.streak.Losses),
				slog.Time("cooldown_until", until),
			)
			return g.writeLock(ctx, now, cooldownLock{
				CooldownUntil:     until,
				ConsecutiveLosses: g.streak.Losses,
				Owner:             g.owner,
			})

		case CooldownReduce:
			g.streak.SizeMultiplier = g.policy.LossStreakSizeMultiplier
			g.log.Warn("risk: loss streak limit reached, position size reduced",
				slog.Int("consecutive_losses", g.streak.Losses),
				slog.Float64("size_multiplier", g.streak.SizeMultiplier),
			)
		}
	}
	return nil
}

// lockStale reports whether a lock no longer halts anyone.
func (g *Gate) lockStale(lk cooldownLock, now time.Time) bool {
	return now.After(lk.CooldownUntil) || lk.ConsecutiveLosses < g.policy.MaxConsecutiveLosses
}

func (g *Gate) readLock(ctx context.Context) (cooldownLock, bool, error) {
	var lk cooldownLock
	err := store.LoadJSON(ctx, g.lock, CooldownLockKey, &lk)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return cooldownLock{}, false, nil
	case err != nil:
		return cooldownLock{}, false, fmt.Errorf("risk: read cooldown lock: %w", err)
	}
	return lk, true, nil
}

// writeLock publishes lk unless another live lock already halts longer.
func (g *Gate) writeLock(ctx context.Context, now time.Time, lk cooldownLock) error {
	cur, ok, err := g.readLock(ctx)
	if err != nil {
		g.log.Warn("risk: cooldown lock unreadable, overwriting", slog.String("error", err.Error()))
	}
	if ok && cur.Owner != lk.Owner && !g.lockStale(cur, now) && !cur.CooldownUntil.Before(lk.CooldownUntil) {
		return nil
	}
	if err := store.SaveJSON(ctx, g.lock, CooldownLockKey, lk); err != nil {
		return fmt.Errorf("risk: write cooldown lock: %w", err)
	}
	return nil
}

// releaseLock deletes the shared lock once it is stale, or when mine is set
// and this gate wrote it. A live lock from another process is kept.
func (g *Gate) releaseLock(ctx context.Context, now time.Time, mine bool) error {
	lk, ok, err := g.readLock(ctx)
	if err != nil {
		g.log.Warn("risk: cooldown lock unreadable, keeping it", slog.String("error", err.Error()))
		return nil
	}
	if !ok {
		return nil
	}
	if !g.lockStale(lk, now) && !(mine && lk.Owner == g.owner) {
		return nil
	}
	return g.deleteLock(ctx)
}

func (g *Gate) deleteLock(ctx context.Context) error {
	if err := g.lock.Delete(ctx, CooldownLockKey); err != nil {
		return fmt.Errorf("risk: delete cooldown lock: %w", err)
	}
	return nil
}
