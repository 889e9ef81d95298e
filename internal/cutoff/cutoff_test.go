package cutoff

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/hupe1980/beamdec/fst"
	"github.com/hupe1980/beamdec/internal/activeset"
	"github.com/hupe1980/beamdec/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEntries(p *token.Pool, costs []float64) []activeset.Entry {
	entries := make([]activeset.Entry, len(costs))
	for i, c := range costs {
		entries[i] = activeset.Entry{
			State: fst.StateID(i),
			Tok:   p.Create(fst.Arc{Weight: float32(c)}, token.Nil, 0),
		}
	}
	return entries
}

func admitted(p *token.Pool, entries []activeset.Entry, th Threshold) int {
	n := 0
	for _, e := range entries {
		if th.Admits(p.Cost(e.Tok), e.State) {
			n++
		}
	}
	return n
}

func unbounded() Config {
	return Config{Beam: 16, BeamDelta: 0.5, MaxActive: math.MaxInt32, MinActive: 0}
}

func TestCompute(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		p := token.NewPool(1)
		res := NewEngine(0).Compute(nil, p, unbounded())
		assert.Equal(t, -1, res.Best)
		assert.Equal(t, 0, res.Count)
		assert.Equal(t, Unbounded, res.Threshold)
	})

	t.Run("BeamBinds", func(t *testing.T) {
		p := token.NewPool(8)
		entries := makeEntries(p, []float64{3, 1, 2, 20})
		res := NewEngine(4).Compute(entries, p, unbounded())
		assert.Equal(t, 1, res.Best)
		assert.Equal(t, 4, res.Count)
		assert.Equal(t, 17.0, res.Threshold.Cost)
		assert.Equal(t, 16.0, res.AdaptiveBeam)
		assert.Equal(t, 3, admitted(p, entries, res.Threshold))
	})

	// Five candidates, max-active 1: only the cheapest survives.
	t.Run("MaxActiveBinds", func(t *testing.T) {
		p := token.NewPool(8)
		entries := makeEntries(p, []float64{1.8, 1.2, 1.0, 2.0, 1.5})
		cfg := unbounded()
		cfg.MaxActive = 1
		res := NewEngine(0).Compute(entries, p, cfg)
		assert.Equal(t, 2, res.Best)
		assert.Equal(t, 1, admitted(p, entries, res.Threshold))
		assert.True(t, res.Threshold.Admits(1.0, 2))
		assert.False(t, res.Threshold.Admits(1.2, 1))
		assert.InDelta(t, 0.5, res.AdaptiveBeam, 1e-12)
	})

	t.Run("MinActiveRelaxes", func(t *testing.T) {
		p := token.NewPool(8)
		entries := makeEntries(p, []float64{0, 1, 30, 40, 50, 60})
		cfg := Config{Beam: 2, BeamDelta: 0.5, MaxActive: 100, MinActive: 4}
		res := NewEngine(0).Compute(entries, p, cfg)
		assert.Equal(t, 4, admitted(p, entries, res.Threshold))
		assert.Equal(t, 40.0, res.Threshold.Cost)
		assert.Equal(t, 40.5, res.AdaptiveBeam)
	})

	t.Run("FewerThanMinActive", func(t *testing.T) {
		p := token.NewPool(8)
		entries := makeEntries(p, []float64{0, 100, 200})
		cfg := Config{Beam: 1, BeamDelta: 0.5, MaxActive: 100, MinActive: 20}
		res := NewEngine(0).Compute(entries, p, cfg)
		assert.Equal(t, 3, admitted(p, entries, res.Threshold))
		assert.True(t, math.IsInf(res.AdaptiveBeam, 1))
	})

	t.Run("TieBreakByState", func(t *testing.T) {
		p := token.NewPool(8)
		entries := makeEntries(p, []float64{1, 1, 1, 1})
		cfg := unbounded()
		cfg.MaxActive = 2
		res := NewEngine(0).Compute(entries, p, cfg)
		assert.Equal(t, 0, res.Best)
		assert.Equal(t, 2, admitted(p, entries, res.Threshold))
		assert.True(t, res.Threshold.Admits(1, 0))
		assert.True(t, res.Threshold.Admits(1, 1))
		assert.False(t, res.Threshold.Admits(1, 2))
	})

	t.Run("BeamBoundaryTiesAdmitted", func(t *testing.T) {
		p := token.NewPool(8)
		entries := makeEntries(p, []float64{0, 2, 2, 2})
		cfg := Config{Beam: 2, MaxActive: math.MaxInt32}
		res := NewEngine(0).Compute(entries, p, cfg)
		assert.Equal(t, 4, admitted(p, entries, res.Threshold))
	})
}

// The admitted count always lands in [MinActive, MaxActive] unless there are
// fewer than MinActive candidates.
func TestComputeBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	eng := NewEngine(16)

	for iter := 0; iter < 300; iter++ {
		p := token.NewPool(64)
		n := 1 + rng.Intn(200)
		costs := make([]float64, n)
		for i := range costs {
			// Coarse grid to force ties.
			costs[i] = float64(rng.Intn(40)) / 4
		}
		entries := makeEntries(p, costs)
		minA := rng.Intn(30)
		maxA := minA + 1 + rng.Intn(60)
		cfg := Config{Beam: float64(rng.Intn(8)) + 0.5, BeamDelta: 0.5, MaxActive: maxA, MinActive: minA}

		res := eng.Compute(entries, p, cfg)
		got := admitted(p, entries, res.Threshold)
		if n < minA {
			require.Equal(t, n, got)
			continue
		}
		require.GreaterOrEqual(t, got, minA, "iter %d", iter)
		require.LessOrEqual(t, got, maxA, "iter %d", iter)

		sorted := append([]float64(nil), costs...)
		sort.Float64s(sorted)
		assert.Equal(t, sorted[0], p.Cost(entries[res.Best].Tok))
	}
}

func TestSelectKth(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for iter := 0; iter < 100; iter++ {
		n := 1 + rng.Intn(100)
		keys := make([]Threshold, n)
		for i := range keys {
			keys[i] = Threshold{Cost: float64(rng.Intn(10)), State: fst.StateID(i)}
		}
		sorted := append([]Threshold(nil), keys...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].less(sorted[j]) })

		k := rng.Intn(n)
		got := selectKth(keys, k)
		require.Equal(t, sorted[k], got)
		for i := 0; i < k; i++ {
			require.True(t, keys[i].less(got))
		}
	}
}

func BenchmarkCompute(b *testing.B) {
	p := token.NewPool(10000)
	rng := rand.New(rand.NewSource(1))
	costs := make([]float64, 10000)
	for i := range costs {
		costs[i] = rng.Float64() * 50
	}
	entries := makeEntries(p, costs)
	eng := NewEngine(len(entries))
	cfg := Config{Beam: 16, BeamDelta: 0.5, MaxActive: 2000, MinActive: 200}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.Compute(entries, p, cfg)
	}
}
