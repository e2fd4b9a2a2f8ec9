package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRngDeterministic(t *testing.T) {
	a := NewRng("hello")
	b := NewRng("hello")
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Intn(1000), b.Intn(1000))
	}

	t.Run("different seeds diverge", func(t *testing.T) {
		a := NewRng("hello")
		c := NewRng("world")
		same := 0
		for i := 0; i < 100; i++ {
			if a.Intn(1000) == c.Intn(1000) {
				same++
			}
		}
		require.Less(t, same, 100)
	})
}

func TestRngDurationBounds(t *testing.T) {
	r := NewRng("bounds")
	min, max := 500*time.Millisecond, 3*time.Second
	for i := 0; i < 1000; i++ {
		d := r.Duration(min, max)
		require.GreaterOrEqual(t, d, min)
		require.Less(t, d, max)
	}

	t.Run("degenerate range", func(t *testing.T) {
		require.Equal(t, min, r.Duration(min, min))
		require.Equal(t, min, r.Duration(min, 0))
	})
}

func TestRngChance(t *testing.T) {
	r := NewRng("chance")
	for i := 0; i < 100; i++ {
		require.False(t, r.Chance(0))
		require.True(t, r.Chance(1))
	}

	hits := 0
	for i := 0; i < 10000; i++ {
		if r.Chance(0.2) {
			hits++
		}
	}
	// 20% +- a wide tolerance; this is a sanity check, not a stats test
	require.InDelta(t, 2000, hits, 400)
}

func TestRngChoice(t *testing.T) {
	r := NewRng("choice")
	options := []string{"slow_query", "deadlock", "table_lock"}
	seen := map[string]bool{}
	for i := 0; i < 300; i++ {
		pick := r.Choice(options)
		require.Contains(t, options, pick)
		seen[pick] = true
	}
	require.Len(t, seen, len(options))
}

func TestRngFloatBounds(t *testing.T) {
	r := NewRng("float")
	for i := 0; i < 1000; i++ {
		f := r.Float(0.5, 3.0)
		require.GreaterOrEqual(t, f, 0.5)
		require.Less(t, f, 3.0)
	}
}
