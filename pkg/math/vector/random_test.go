package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeededRandom_Deterministic(t *testing.T) {
	a := NewSeededRandom(42)
	b := NewSeededRandom(42)
	for i := 0; i < 1000; i++ {
		require.Equal(t, a.Float64(), b.Float64(), "sequences diverged at step %d", i)
	}
}

func TestSeededRandom_KnownSequence(t *testing.T) {
	rng := NewSeededRandom(1)
	// Park-Miller with seed 1: states 16807, 282475249, 1622650073
	assert.InDelta(t, float64(16807-1)/2147483646, rng.Float64(), 1e-15)
	assert.InDelta(t, float64(282475249-1)/2147483646, rng.Float64(), 1e-15)
	assert.InDelta(t, float64(1622650073-1)/2147483646, rng.Float64(), 1e-15)
}

func TestSeededRandom_Range(t *testing.T) {
	for _, seed := range []int64{0, -7, 1, 42, 2147483647, 1 << 40} {
		rng := NewSeededRandom(seed)
		for i := 0; i < 500; i++ {
			v := rng.Float64()
			require.GreaterOrEqual(t, v, 0.0, "seed %d", seed)
			require.Less(t, v, 1.0, "seed %d", seed)
		}
	}
}

func TestSeededRandom_Intn(t *testing.T) {
	rng := NewSeededRandom(7)
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		n := rng.Intn(4)
		require.True(t, n >= 0 && n < 4)
		seen[n] = true
	}
	assert.Len(t, seen, 4, "200 draws should cover all 4 buckets")
}

func TestSeededRandom_DifferentSeedsDiffer(t *testing.T) {
	a := NewSeededRandom(1)
	b := NewSeededRandom(2)
	assert.NotEqual(t, a.Float64(), b.Float64())
}

func TestEmbedding(t *testing.T) {
	t.Run("zero value is absent", func(t *testing.T) {
		var e Embedding
		_, ok := e.Vector()
		assert.False(t, ok)
		assert.False(t, e.IsPresent())
	})

	t.Run("empty vector is absent", func(t *testing.T) {
		assert.False(t, Present([]float32{}).IsPresent())
	})

	t.Run("all zeros is absent", func(t *testing.T) {
		assert.False(t, Present(make([]float32, 1536)).IsPresent())
	})

	t.Run("usable vector is present", func(t *testing.T) {
		e := Present([]float32{0, 0.5})
		v, ok := e.Vector()
		require.True(t, ok)
		assert.Equal(t, []float32{0, 0.5}, v)
		assert.Equal(t, 2, e.Dimensions())
	})

	t.Run("absent constructor", func(t *testing.T) {
		assert.Equal(t, 0, Absent().Dimensions())
	})
}
