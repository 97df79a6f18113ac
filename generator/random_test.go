package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceReproducible(t *testing.T) {
	a := NewSource(42)
	b := NewSource(42)
	for i := 0; i < 100; i++ {
		va, vb := a.Float64(), b.Float64()
		require.Equal(t, va, vb, "draw %d", i)
		require.GreaterOrEqual(t, va, 0.0)
		require.Less(t, va, 1.0)
	}
}

func TestSourceSeedsDiffer(t *testing.T) {
	assert.NotEqual(t, NewSource(42).Float64(), NewSource(43).Float64())
}

func TestSourceRangeAndIntn(t *testing.T) {
	src := NewSource(7)
	for i := 0; i < 500; i++ {
		v := src.Range(-1.5, 1.5)
		assert.GreaterOrEqual(t, v, -1.5)
		assert.Less(t, v, 1.5)

		n := src.Intn(4)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 4)
	}

	before := *src
	assert.Equal(t, 0, src.Intn(0))
	assert.Equal(t, before, *src, "Intn(0) must not consume a draw")
}

func TestSourceMatchesRecurrence(t *testing.T) {
	// frac(sin(1) * 10000); sin(1) = 0.8414709848078965
	src := NewSource(1)
	assert.InDelta(t, 0.709848078965, src.Float64(), 1e-6)
}
