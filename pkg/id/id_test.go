package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorMonotonic(t *testing.T) {
	fixed := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	g := NewGenerator(func() time.Time { return fixed })

	prev := g.New()
	for i := 0; i < 100; i++ {
		next := g.New()
		assert.Less(t, prev, next)
		prev = next
	}

	ts, err := Time(prev)
	require.NoError(t, err)
	assert.True(t, ts.Equal(fixed))
}

func TestNewIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		s := New()
		require.Len(t, s, 26)
		require.False(t, seen[s])
		seen[s] = true
	}
}

func TestTimeRejectsGarbage(t *testing.T) {
	_, err := Time("not-a-ulid")
	assert.Error(t, err)
}
