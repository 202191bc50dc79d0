package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy controls how Retrying repeats a failed call.
type RetryPolicy struct {
	Attempts int           // total tries, at least 1
	Backoff  time.Duration // doubled after every failure

	// Retryable decides whether an error is worth another try. The default
	// retries ErrUnavailable only.
	Retryable func(error) bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 200 * time.Millisecond}
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return errors.Is(err, ErrUnavailable)
}

// Retrying wraps a Gateway with a RetryPolicy.
type Retrying struct {
	next   Gateway
	policy RetryPolicy
	log    *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

func NewRetrying(next Gateway, policy RetryPolicy, log *slog.Logger) *Retrying {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retrying{next: next, policy: policy, log: log, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func do[T any](ctx context.Context, r *Retrying, op string, fn func() (T, error)) (T, error) {
	var (
		zero T
		err  error
	)
	wait := r.policy.Backoff
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		var v T
		v, err = fn()
		if err == nil {
			return v, nil
		}
		if !r.policy.retryable(err) || attempt == r.policy.Attempts {
			break
		}
		r.log.WarnContext(ctx, "broker: call failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
		if serr := r.sleep(ctx, wait); serr != nil {
			return zero, fmt.Errorf("broker: %s: %w", op, errors.Join(err, serr))
		}
		wait *= 2
	}
	return zero, fmt.Errorf("broker: %s: %w", op, err)
}

func (r *Retrying) PlaceBuy(ctx context.Context, symbol string, qty int, price float64) (Fill, error) {
	return do(ctx, r, "buy "+symbol, func() (Fill, error) {
		return r.next.PlaceBuy(ctx, symbol, qty, price)
	})
}

func (r *Retrying) PlaceSell(ctx context.Context, symbol string, qty int, price float64) (Fill, error) {
	return do(ctx, r, "sell "+symbol, func() (Fill, error) {
		return r.next.PlaceSell(ctx, symbol, qty, price)
	})
}

func (r *Retrying) CashBalance(ctx context.Context) (float64, error) {
	return do(ctx, r, "cash balance", func() (float64, error) {
		return r.next.CashBalance(ctx)
	})
}
