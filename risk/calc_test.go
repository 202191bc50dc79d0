package risk

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeguard/store"
)

func TestCalculatePositionSizeHardCapBinds(t *testing.T) {
	g := newTestGate(t, policyWithBalance(10_000_000), store.NewMemoryKV(), &testClock{t: monday})

	s, err := g.CalculatePositionSize(context.Background(), SizingRequest{
		Balance:    10_000_000,
		Price:      50_000,
		StopPrice:  48_500,
		Confidence: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 133, s.RiskQty)
	assert.Equal(t, 10, s.CapQty)
	assert.Equal(t, 10, s.Quantity)
	assert.Equal(t, 500_000.0, s.Investment)
	assert.Equal(t, 200_000.0, s.RiskAmount)
	assert.Equal(t, 0.05, s.PositionRatio)
	assert.Equal(t, 15_000.0, s.MaxLoss)
	assert.Equal(t, 48_500.0, s.StopPrice)
}

func TestCalculatePositionSize(t *testing.T) {
	structural := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		req  SizingRequest
		qty  int
		stop float64
	}{
		{
			name: "risk budget binds",
			req:  SizingRequest{Balance: 1_000_000, Price: 1_000, StopPrice: 900, Confidence: 1},
			qty:  200, // 20,000 / 100; cap is 300
			stop: 900,
		},
		{
			name: "confidence floor",
			req:  SizingRequest{Balance: 1_000_000, Price: 1_000, StopPrice: 900, Confidence: 0.1},
			qty:  100,
			stop: 900,
		},
		{
			name: "confidence above one is clamped",
			req:  SizingRequest{Balance: 1_000_000, Price: 1_000, StopPrice: 900, Confidence: 3},
			qty:  200,
			stop: 900,
		},
		{
			name: "structural stop is capped",
			req:  SizingRequest{Balance: 1_000_000, Price: 1_000, StopPrice: 900, Confidence: 1, StructuralStop: structural(800)},
			qty:  300, // distance capped at 30 -> risk 666, cap 300
			stop: 970,
		},
		{
			name: "structural stop inside cap",
			req:  SizingRequest{Balance: 1_000_000, Price: 1_000, StopPrice: 900, Confidence: 1, StructuralStop: structural(990)},
			qty:  300,
			stop: 990,
		},
		{
			name: "scaling never zeroes an admissible trade",
			req:  SizingRequest{Balance: 1_000_000, Price: 200_000, StopPrice: 194_000, Confidence: 0.5},
			qty:  1, // cap 1, 1 * 0.5 -> 0 -> 1
			stop: 194_000,
		},
		{
			name: "caps may zero a trade",
			req:  SizingRequest{Balance: 1_000_000, Price: 400_000, StopPrice: 390_000, Confidence: 1},
			qty:  0,
			stop: 390_000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGate(t, policyWithBalance(tt.req.Balance), store.NewMemoryKV(), &testClock{t: monday})
			s, err := g.CalculatePositionSize(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.qty, s.Quantity)
			assert.InDelta(t, tt.stop, s.StopPrice, 1e-9)
		})
	}
}

func TestCalculatePositionSizeErrors(t *testing.T) {
	g := newTestGate(t, policyWithBalance(1_000_000), store.NewMemoryKV(), &testClock{t: monday})
	ctx := context.Background()

	_, err := g.CalculatePositionSize(ctx, SizingRequest{Balance: 0, Price: 100, StopPrice: 90})
	assert.Error(t, err)
	_, err = g.CalculatePositionSize(ctx, SizingRequest{Balance: 1_000, Price: 0, StopPrice: 90})
	assert.Error(t, err)
	_, err = g.CalculatePositionSize(ctx, SizingRequest{Balance: 1_000, Price: 100, StopPrice: 100})
	assert.Error(t, err)
}

func TestCalculatePositionSizeWeeklyAdjustment(t *testing.T) {
	ctx := context.Background()
	p := policyWithBalance(1_000_000)
	p.MaxConsecutiveLosses = 10
	g := newTestGate(t, p, store.NewMemoryKV(), &testClock{t: monday})

	req := SizingRequest{Balance: 1_000_000, Price: 1_000, StopPrice: 900, Confidence: 1}
	s, err := g.CalculatePositionSize(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 200, s.Quantity)

	// -3.5% for the week crosses the soft limit
	require.NoError(t, g.RecordTrade(ctx, sell("7203", -35_000)))
	s, err = g.CalculatePositionSize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Quantity)
	assert.Equal(t, 0.5, s.Scale)
}

func TestCalculatePositionSizeProperties(t *testing.T) {
	g := newTestGate(t, policyWithBalance(1_000_000), store.NewMemoryKV(), &testClock{t: monday})
	p := g.policy
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		req := SizingRequest{
			Balance:    1_000 + r.Float64()*50_000_000,
			Price:      1 + r.Float64()*200_000,
			Confidence: r.Float64() * 1.2,
		}
		req.StopPrice = req.Price * (0.5 + r.Float64()*0.49)

		s, err := g.CalculatePositionSize(context.Background(), req)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, s.Quantity, 0)
		assert.LessOrEqual(t, s.Quantity, max(s.CapQty, 0))
		if s.CapQty >= 1 {
			assert.GreaterOrEqual(t, s.Quantity, 1, "%+v", req)
		}
		if s.Quantity > 1 {
			slack := req.Price*1e-9 + 1e-6
			assert.LessOrEqual(t, s.Investment, p.HardPositionCap+slack)
			assert.LessOrEqual(t, s.Investment, req.Balance*p.MaxPositionFraction+slack)
		}
	}
}
