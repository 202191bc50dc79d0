package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceStore(t *testing.T) {
	ctx := context.Background()
	s := NewPriceStore()

	_, err := s.CurrentPrice(ctx, "005930")
	assert.ErrorIs(t, err, ErrNoPrice)

	t0 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.AppendBar("005930", Bar{Time: t0.Add(time.Duration(i) * time.Minute), Close: float64(100 + i), Volume: 10})
	}

	p, err := s.CurrentPrice(ctx, "005930")
	require.NoError(t, err)
	assert.Equal(t, 104.0, p)

	bars, err := s.RecentBars(ctx, "005930", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{102, 103, 104}, Closes(bars))

	bars, err = s.RecentBars(ctx, "005930", 50)
	require.NoError(t, err)
	assert.Len(t, bars, 5)

	s.Set("005930", 99)
	p, _ = s.CurrentPrice(ctx, "005930")
	assert.Equal(t, 99.0, p)
}

func TestHLC(t *testing.T) {
	bars := []Bar{{High: 3, Low: 1, Close: 2}, {High: 6, Low: 4, Close: 5}}
	h, l, c := HLC(bars)
	assert.Equal(t, []float64{3, 6}, h)
	assert.Equal(t, []float64{1, 4}, l)
	assert.Equal(t, []float64{2, 5}, c)
	assert.Equal(t, []float64{0, 0}, Volumes(bars))
}
