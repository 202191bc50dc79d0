// Package broker is the boundary to whatever executes orders. Gateway is the
// only thing the desk needs from a broker; Retrying adds a retry policy in
// front of any Gateway.
package broker

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRejected means the broker refused the order. It is not retried.
	ErrRejected = errors.New("broker: order rejected")
	// ErrInsufficientCash means the account cannot pay for a buy.
	ErrInsufficientCash = errors.New("broker: insufficient cash")
	// ErrUnavailable marks failures worth retrying: timeouts, connection loss.
	ErrUnavailable = errors.New("broker: unavailable")
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Fill is a confirmed execution.
type Fill struct {
	OrderID  string
	Symbol   string
	Side     Side
	Quantity int
	Price    float64
	Time     time.Time
}

type Gateway interface {
	PlaceBuy(ctx context.Context, symbol string, qty int, price float64) (Fill, error)
	PlaceSell(ctx context.Context, symbol string, qty int, price float64) (Fill, error)
	CashBalance(ctx context.Context) (float64, error)
}
