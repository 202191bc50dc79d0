package market

import (
	"context"
	"fmt"
	"sync"
)

// PriceStore is an in-memory PriceFeed. Replays, paper trading and tests push
// prices and bars into it.
type PriceStore struct {
	mu     sync.RWMutex
	prices map[string]float64
	bars   map[string][]Bar
}

func NewPriceStore() *PriceStore {
	return &PriceStore{
		prices: make(map[string]float64),
		bars:   make(map[string][]Bar),
	}
}

// Set records the latest price for symbol.
func (s *PriceStore) Set(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// AppendBar adds a closed bar and moves the latest price to its close.
func (s *PriceStore) AppendBar(symbol string, b Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[symbol] = append(s.bars[symbol], b)
	s.prices[symbol] = b.Close
}

func (s *PriceStore) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w for %q", ErrNoPrice, symbol)
	}
	return p, nil
}

func (s *PriceStore) RecentBars(ctx context.Context, symbol string, n int) ([]Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.bars[symbol]
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	out := make([]Bar, n)
	copy(out, all[len(all)-n:])
	return out, nil
}
