package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeguard/metrics"
	"github.com/rustyeddy/tradeguard/store"
)

// Monday
var monday = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGate(t *testing.T, p Policy, kv store.KV, clk *testClock, opts ...Option) *Gate {
	t.Helper()
	opts = append([]Option{
		WithClock(clk.Now),
		WithLocation(time.UTC),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	g, err := NewGate(context.Background(), p, kv, opts...)
	require.NoError(t, err)
	return g
}

func policyWithBalance(balance float64) Policy {
	p := DefaultPolicy()
	p.InitialBalance = balance
	return p
}

func sell(symbol string, pnl float64) TradeRecord {
	return TradeRecord{Symbol: symbol, Side: Sell, Quantity: 10, Price: 50_000, RealizedPnL: pnl}
}

func buy(symbol string) TradeRecord {
	return TradeRecord{Symbol: symbol, Side: Buy, Quantity: 10, Price: 50_000}
}

type failingKV struct {
	*store.MemoryKV
	puts int
}

func (f *failingKV) Put(ctx context.Context, key string, value []byte) error {
	f.puts++
	return errors.New("disk full")
}

func TestNewGateRejectsBadPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.RiskFraction = 0
	_, err := NewGate(context.Background(), p, store.NewMemoryKV())
	assert.Error(t, err)

	_, err = NewGate(context.Background(), DefaultPolicy(), nil)
	assert.Error(t, err)
}

func TestRecordTradePersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	clk := &testClock{t: monday}
	g := newTestGate(t, policyWithBalance(10_000_000), kv, clk)

	require.NoError(t, g.RecordTrade(ctx, buy("7203")))
	require.NoError(t, g.RecordTrade(ctx, sell("7203", -20_000)))

	trades := g.DailyTrades()
	require.Len(t, trades, 2)
	assert.NotEmpty(t, trades[0].ID)
	assert.Equal(t, monday, trades[0].Time)
	assert.Equal(t, 500_000.0, trades[0].Amount)
	assert.Zero(t, trades[0].RealizedPnL)

	restored := newTestGate(t, DefaultPolicy(), kv, clk)
	s := restored.Status()
	assert.Equal(t, "2026-10-19", s.Date)
	assert.Equal(t, "2026-10-19", s.WeekStart)
	assert.Equal(t, 10_000_000.0, s.InitialBalance)
	assert.Equal(t, 1, s.DailyEntries)
	assert.Equal(t, 2, s.DailyRecords)
	assert.Equal(t, -20_000.0, s.DailyRealizedPnL)
	assert.Equal(t, -20_000.0, s.WeeklyRealizedPnL)
	assert.Equal(t, 1, s.ConsecutiveLosses)
	assert.Equal(t, trades, restored.DailyTrades())
}

func TestRecordTradeBuyIgnoresPnL(t *testing.T) {
	clk := &testClock{t: monday}
	g := newTestGate(t, policyWithBalance(1_000_000), store.NewMemoryKV(), clk)

	rec := buy("6758")
	rec.RealizedPnL = 999
	require.NoError(t, g.RecordTrade(context.Background(), rec))

	s := g.Status()
	assert.Zero(t, s.DailyRealizedPnL)
	assert.Zero(t, g.DailyTrades()[0].RealizedPnL)
}

func TestRecordTradeInvalid(t *testing.T) {
	g := newTestGate(t, policyWithBalance(1_000_000), store.NewMemoryKV(), &testClock{t: monday})
	ctx := context.Background()

	for name, rec := range map[string]TradeRecord{
		"no symbol":    {Side: Buy, Quantity: 1, Price: 1},
		"bad side":     {Symbol: "X", Side: "HOLD", Quantity: 1, Price: 1},
		"zero qty":     {Symbol: "X", Side: Buy, Price: 1},
		"bad price":    {Symbol: "X", Side: Sell, Quantity: 1, Price: -1},
		"empty record": {},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, g.RecordTrade(ctx, rec), ErrInvalidTrade)
		})
	}
	assert.Empty(t, g.DailyTrades())
}

func TestRecordTradeSurfacesStoreFailure(t *testing.T) {
	kv := &failingKV{MemoryKV: store.NewMemoryKV()}
	g := newTestGate(t, policyWithBalance(1_000_000), kv, &testClock{t: monday})

	err := g.RecordTrade(context.Background(), buy("7203"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 2, kv.puts, "one write plus one retry")

	// the in-memory update stands
	assert.Len(t, g.DailyTrades(), 1)
}

func TestStaleStateRollsOver(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()

	friday := time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC)
	stale := snapshot{
		InitialBalance:    2_000_000,
		Today:             "2026-10-16",
		DailyTrades:       []TradeRecord{{ID: "a", Time: friday, Symbol: "7203", Side: Sell, Quantity: 1, Price: 10, RealizedPnL: -5_000}},
		DailyRealizedPnL:  -5_000,
		WeekStart:         "2026-10-12",
		WeeklyTrades:      []TradeRecord{{ID: "a", Time: friday, Symbol: "7203", Side: Sell, Quantity: 1, Price: 10, RealizedPnL: -5_000}},
		WeeklyRealizedPnL: -5_000,
		ConsecutiveLosses: 2,
		SizeMultiplier:    1,
	}
	require.NoError(t, store.SaveJSON(ctx, kv, StateKey, stale))

	g := newTestGate(t, DefaultPolicy(), kv, &testClock{t: monday})
	s := g.Status()
	assert.Equal(t, "2026-10-19", s.Date)
	assert.Equal(t, "2026-10-19", s.WeekStart)
	assert.Zero(t, s.DailyRecords)
	assert.Zero(t, s.DailyRealizedPnL)
	assert.Zero(t, s.WeeklyRealizedPnL)
	assert.Equal(t, 2, s.ConsecutiveLosses, "the loss streak spans days")
	assert.Equal(t, 2_000_000.0, s.InitialBalance)

	d := g.CanOpenPosition(ctx, EntryRequest{Balance: 3_000_000, ProposedSize: 100_000})
	assert.True(t, d.Allowed, d.Reason)
	assert.Equal(t, 3_000_000.0, g.Status().InitialBalance, "first balance of the new day")
}

func TestMalformedStateStartsFresh(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Put(ctx, StateKey, []byte("{not json")))

	g := newTestGate(t, policyWithBalance(1_000_000), kv, &testClock{t: monday})
	s := g.Status()
	assert.Zero(t, s.DailyRecords)
	assert.Zero(t, s.ConsecutiveLosses)
	assert.Equal(t, 1_000_000.0, s.InitialBalance)
	assert.Equal(t, Normal, s.State)

	// the next write replaces the bad snapshot
	require.NoError(t, g.RecordTrade(ctx, buy("7203")))
	var snap snapshot
	require.NoError(t, store.LoadJSON(ctx, kv, StateKey, &snap))
	assert.Len(t, snap.DailyTrades, 1)
}

func TestStartSession(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	g := newTestGate(t, DefaultPolicy(), kv, &testClock{t: monday})

	assert.Error(t, g.StartSession(ctx, 0))
	require.NoError(t, g.StartSession(ctx, 4_000_000))
	assert.Equal(t, 4_000_000.0, g.Status().InitialBalance)

	var snap snapshot
	require.NoError(t, store.LoadJSON(ctx, kv, StateKey, &snap))
	assert.Equal(t, 4_000_000.0, snap.InitialBalance)
	assert.Equal(t, "2026-10-19", snap.Today)
	assert.NotNil(t, snap.DailyTrades)
}

func TestWeeklyTradesSpanDays(t *testing.T) {
	ctx := context.Background()
	clk := &testClock{t: monday}
	g := newTestGate(t, policyWithBalance(1_000_000), store.NewMemoryKV(), clk)

	require.NoError(t, g.RecordTrade(ctx, buy("7203")))
	clk.Advance(24 * time.Hour)
	require.NoError(t, g.RecordTrade(ctx, buy("6758")))

	assert.Len(t, g.DailyTrades(), 1)
	assert.Len(t, g.WeeklyTrades(), 2)

	// the following Monday starts a new week
	clk.Advance(6 * 24 * time.Hour)
	assert.Empty(t, g.WeeklyTrades())
}

func TestGateMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	g := newTestGate(t, policyWithBalance(1_000_000), store.NewMemoryKV(), &testClock{t: monday}, WithMetrics(m))

	require.NoError(t, g.RecordTrade(ctx, buy("7203")))
	d := g.CanOpenPosition(ctx, EntryRequest{Balance: 1_000_000, ProposedSize: 100_000})
	assert.True(t, d.Allowed)
}

func TestWeekStartKey(t *testing.T) {
	for in, want := range map[string]string{
		"2026-10-19": "2026-10-19", // Monday
		"2026-10-21": "2026-10-19",
		"2026-10-25": "2026-10-19", // Sunday
		"2026-11-01": "2026-10-26",
		"2027-01-01": "2026-12-28", // across a year
	} {
		day, err := time.Parse("2006-01-02", in)
		require.NoError(t, err)
		assert.Equal(t, want, weekStartKey(day), in)
	}
}
