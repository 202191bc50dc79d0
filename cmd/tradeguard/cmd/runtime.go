package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/tradeguard/position"
	"github.com/rustyeddy/tradeguard/risk"
	"github.com/rustyeddy/tradeguard/store"
)

// runtime holds the stores and gate opened from the loaded config.
type runtime struct {
	kv   store.KV
	lock store.KV
	loc  *time.Location
	gate *risk.Gate
}

func location(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

func openRuntime(ctx context.Context) (*runtime, error) {
	loc, err := location(cfg.Exit.Location)
	if err != nil {
		return nil, fmt.Errorf("location: %w", err)
	}

	rt := &runtime{loc: loc}
	rt.kv, err = store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	opts := []risk.Option{risk.WithLogger(logger), risk.WithLocation(loc)}
	if cfg.LockStore != nil {
		rt.lock, err = store.Open(ctx, *cfg.LockStore)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open lock store: %w", err)
		}
		opts = append(opts, risk.WithLockStore(rt.lock))
	}

	rt.gate, err = risk.NewGate(ctx, cfg.Risk, rt.kv, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// ledger loads the persisted positions.
func (rt *runtime) ledger(ctx context.Context) (*position.Ledger, error) {
	l := position.NewLedger(cfg.Ledger, position.WithLogger(logger))
	if err := l.Load(ctx, rt.kv); err != nil {
		return nil, err
	}
	return l, nil
}

func (rt *runtime) Close() {
	for _, kv := range []store.KV{rt.kv, rt.lock} {
		if c, ok := kv.(store.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn("close store", "error", err)
			}
		}
	}
}
