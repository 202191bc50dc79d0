package market

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarReader(t *testing.T) {
	in := `time,symbol,open,high,low,close,volume
2026-10-19T09:00:00Z,7203,1000,1010,995,1005,1200

2026-10-19T09:01:00Z, 7203, 1005, 1012, 1001, 1010, 900
`
	bars, err := NewBarReader(strings.NewReader(in)).ReadAll()
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "7203", bars[1].Symbol)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 1, 0, 0, time.UTC), bars[1].Time)
	assert.Equal(t, 1010.0, bars[1].Close)
	assert.Equal(t, 900.0, bars[1].Volume)
}

func TestBarReaderNoHeader(t *testing.T) {
	bars, err := NewBarReader(strings.NewReader("2026-10-19T09:00:00Z,7203,1,2,0.5,1.5,10\n")).ReadAll()
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 2.0, bars[0].High)
}

func TestBarReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"short row", "2026-10-19T09:00:00Z,7203,1,2\n"},
		{"bad time", "yesterday,7203,1,2,0.5,1.5,10\n"},
		{"bad number", "2026-10-19T09:00:00Z,7203,1,x,0.5,1.5,10\n"},
		{"empty symbol", "2026-10-19T09:00:00Z,,1,2,0.5,1.5,10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBarReader(strings.NewReader(tt.in)).ReadAll()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "bars line 1")
		})
	}
}
