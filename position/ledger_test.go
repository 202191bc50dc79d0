package position

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradeguard/store"
)

func newTestLedger() *Ledger {
	return NewLedger(Config{TrailingOffsetPct: 0.02}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func toyota() Position {
	return Position{
		Symbol:    "7203",
		Name:      "Toyota",
		Quantity:  100,
		AvgPrice:  1_000,
		EntryTime: time.Date(2026, 10, 19, 9, 5, 0, 0, time.UTC),
		Targets:   [3]float64{1_040, 1_060, 1_100},
		StopLoss:  970,
		Signal:    "BUY",
		Score:     72,
	}
}

func TestAddDefaults(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Add(toyota()))

	p, ok := l.Get("7203")
	require.True(t, ok)
	assert.Equal(t, 100, p.Remaining)
	assert.Equal(t, 1_000.0, p.CurrentPrice)
	assert.Equal(t, 1_000.0, p.HighWater)
	assert.Equal(t, StageOpen, p.Stage)
	assert.Nil(t, p.TrailingStop)
	assert.Equal(t, 1, l.Count())
}

func TestAddRejects(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Add(toyota()))
	assert.ErrorIs(t, l.Add(toyota()), ErrDuplicatePosition)

	bad := []Position{
		{Quantity: 1, AvgPrice: 1},
		{Symbol: "X", AvgPrice: 1},
		{Symbol: "X", Quantity: 1},
		{Symbol: "X", Quantity: 1, Remaining: 2, AvgPrice: 1},
		{Symbol: "X", Quantity: 1, AvgPrice: 1, Stage: 3},
	}
	for _, p := range bad {
		assert.ErrorIs(t, l.Add(p), ErrInvalidPosition, "%+v", p)
	}
	assert.Equal(t, 1, l.Count())
}

func TestUpdatePrice(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Add(toyota()))

	p, err := l.UpdatePrice("7203", 1_050)
	require.NoError(t, err)
	assert.Equal(t, 1_050.0, p.CurrentPrice)
	assert.Equal(t, 1_050.0, p.HighWater)
	assert.Equal(t, 5_000.0, p.UnrealizedPnL())
	assert.InDelta(t, 0.05, p.ReturnPct(), 1e-12)
	assert.Equal(t, 105_000.0, p.MarketValue())

	p, err = l.UpdatePrice("7203", 1_020)
	require.NoError(t, err)
	assert.Equal(t, 1_050.0, p.HighWater)
	assert.Nil(t, p.TrailingStop, "price updates never arm the trailing stop")
	assert.Equal(t, 100, p.Remaining)

	_, err = l.UpdatePrice("9999", 1)
	assert.ErrorIs(t, err, ErrUnknownPosition)
	_, err = l.UpdatePrice("7203", 0)
	assert.Error(t, err)
}

func TestUpdateStageLifecycle(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Add(toyota()))

	_, err := l.UpdatePrice("7203", 1_040)
	require.NoError(t, err)
	p, closed, err := l.UpdateStage("7203", StageFirstTier, 40)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Equal(t, 60, p.Remaining)
	assert.Nil(t, p.TrailingStop)

	_, err = l.UpdatePrice("7203", 1_100)
	require.NoError(t, err)
	p, closed, err = l.UpdateStage("7203", StageSecondTier, 30)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Equal(t, 30, p.Remaining)
	stop, ok := p.Trailing()
	require.True(t, ok)
	assert.InDelta(t, 1_078, stop, 1e-9)

	// the stop follows new highs up, never down
	p, err = l.UpdatePrice("7203", 1_200)
	require.NoError(t, err)
	stop, _ = p.Trailing()
	assert.InDelta(t, 1_176, stop, 1e-9)
	p, err = l.UpdatePrice("7203", 1_150)
	require.NoError(t, err)
	stop, _ = p.Trailing()
	assert.InDelta(t, 1_176, stop, 1e-9)

	p, closed, err = l.UpdateStage("7203", StageSecondTier, 30)
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Zero(t, p.Remaining)
	assert.Zero(t, l.Count())
}

func TestUpdateStageRejects(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Add(toyota()))
	_, _, err := l.UpdateStage("7203", StageFirstTier, 40)
	require.NoError(t, err)

	tests := []struct {
		name  string
		stage int
		qty   int
		err   error
	}{
		{"regression", StageOpen, 1, ErrStageRegression},
		{"oversell", StageFirstTier, 61, ErrOversell},
		{"negative", StageFirstTier, -1, ErrOversell},
		{"stage too high", 3, 1, ErrInvalidStage},
		{"stage negative", -1, 1, ErrInvalidStage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := l.UpdateStage("7203", tt.stage, tt.qty)
			assert.ErrorIs(t, err, tt.err)

			p, ok := l.Get("7203")
			require.True(t, ok)
			assert.Equal(t, 60, p.Remaining, "no mutation on error")
			assert.Equal(t, StageFirstTier, p.Stage)
		})
	}

	_, _, err = l.UpdateStage("9999", StageFirstTier, 1)
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestSetTrailingStopNeverLoosens(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Add(toyota()))

	moved, err := l.SetTrailingStop("7203", 980)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = l.SetTrailingStop("7203", 975)
	require.NoError(t, err)
	assert.False(t, moved)

	p, _ := l.Get("7203")
	stop, _ := p.Trailing()
	assert.Equal(t, 980.0, stop)

	_, err = l.SetTrailingStop("9999", 1)
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestGetReturnsCopy(t *testing.T) {
	l := newTestLedger()
	p := toyota()
	p.Stage = StageSecondTier
	require.NoError(t, l.Add(p))

	got, _ := l.Get("7203")
	require.NotNil(t, got.TrailingStop)
	*got.TrailingStop = 1
	got.Remaining = 1

	again, _ := l.Get("7203")
	assert.InDelta(t, 980, *again.TrailingStop, 1e-9)
	assert.Equal(t, 100, again.Remaining)
}

func TestTotals(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Add(toyota()))
	sony := Position{Symbol: "6758", Quantity: 10, AvgPrice: 3_000}
	require.NoError(t, l.Add(sony))

	_, err := l.UpdatePrice("6758", 2_900)
	require.NoError(t, err)

	assert.Equal(t, 129_000.0, l.MarketValue())
	assert.Equal(t, -1_000.0, l.UnrealizedPnL())

	list := l.List()
	require.Len(t, list, 2)
	assert.Equal(t, "6758", list[0].Symbol)
	assert.Equal(t, "7203", list[1].Symbol)

	removed, err := l.Remove("6758")
	require.NoError(t, err)
	assert.Equal(t, "6758", removed.Symbol)
	_, err = l.Remove("6758")
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestRealizedPnL(t *testing.T) {
	p := toyota()
	assert.Equal(t, 1_600.0, p.RealizedPnL(1_040, 40))
	assert.Equal(t, -900.0, p.RealizedPnL(970, 30))
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()

	l := newTestLedger()
	require.NoError(t, l.Add(toyota()))
	_, _, err := l.UpdateStage("7203", StageSecondTier, 60)
	require.NoError(t, err)
	require.NoError(t, l.Save(ctx, kv))

	restored := newTestLedger()
	require.NoError(t, restored.Load(ctx, kv))
	assert.Equal(t, l.List(), restored.List())

	empty := newTestLedger()
	require.NoError(t, empty.Load(ctx, store.NewMemoryKV()))
	assert.Zero(t, empty.Count())

	require.NoError(t, kv.Put(ctx, StoreKey, []byte(`[{"symbol":"X","quantity":0}]`)))
	assert.ErrorIs(t, restored.Load(ctx, kv), ErrInvalidPosition)
}

func TestLoadRepairsSavedPositions(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	saved := `[
		{"symbol":"7203","quantity":100,"remaining_quantity":40,"avg_price":1000,"current_price":1050,"high_water":1080,"stage":2},
		{"symbol":"6758","quantity":100,"remaining_quantity":0,"avg_price":2000,"stage":2},
		{"symbol":"9984","quantity":100,"remaining_quantity":100,"avg_price":5000,"stage":0}
	]`
	require.NoError(t, kv.Put(ctx, StoreKey, []byte(saved)))

	l := newTestLedger()
	require.NoError(t, l.Load(ctx, kv))
	assert.Equal(t, 2, l.Count())

	_, ok := l.Get("6758")
	assert.False(t, ok, "closed positions are dropped")

	restored, ok := l.Get("7203")
	require.True(t, ok)
	stop, ok := restored.Trailing()
	require.True(t, ok, "second tier positions come back with a trailing stop")
	assert.InDelta(t, 1_080*0.98, stop, 1e-9)

	soft, ok := l.Get("9984")
	require.True(t, ok)
	assert.Equal(t, 5_000.0, soft.CurrentPrice)
	assert.Equal(t, 5_000.0, soft.HighWater)
	_, ok = soft.Trailing()
	assert.False(t, ok)
}

func TestConcurrentUpdates(t *testing.T) {
	l := newTestLedger()
	require.NoError(t, l.Add(toyota()))

	var wg sync.WaitGroup
	for i := 0; i < 99; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = l.UpdateStage("7203", StageFirstTier, 1)
		}()
	}
	wg.Wait()

	p, ok := l.Get("7203")
	require.True(t, ok)
	assert.Equal(t, 1, p.Remaining)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{TrailingOffsetPct: 1}.Validate())
}
