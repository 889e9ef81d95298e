// Package cutoff computes the per-frame pruning threshold.
//
// Candidates are ordered by (cost, state id). A Threshold admits every
// candidate that does not sort after it, so when max-active or min-active
// selection binds, exactly that many candidates are admitted even if several
// share the boundary cost: the lower state ids win the tie.
package cutoff

import (
	"math"

	"github.com/hupe1980/beamdec/fst"
	"github.com/hupe1980/beamdec/internal/activeset"
	"github.com/hupe1980/beamdec/internal/token"
)

// Config holds the pruning parameters.
type Config struct {
	Beam      float64
	BeamDelta float64
	MaxActive int
	MinActive int
}

// Threshold is a (cost, state) bound in candidate order.
type Threshold struct {
	Cost  float64
	State fst.StateID
}

// Unbounded admits every candidate.
var Unbounded = Threshold{Cost: math.Inf(1), State: fst.MaxStateID}

// Admits reports whether a candidate with the given cost and state is within t.
func (t Threshold) Admits(cost float64, s fst.StateID) bool {
	return cost < t.Cost || (cost == t.Cost && s <= t.State)
}

func (t Threshold) less(o Threshold) bool {
	if t.Cost != o.Cost {
		return t.Cost < o.Cost
	}
	return t.State < o.State
}

// Result is the outcome of one cutoff computation.
type Result struct {
	// Threshold is the admission bound for this frame.
	Threshold Threshold
	// Best is the index of the cheapest entry, or -1 if there were none.
	Best int
	// Count is the number of candidates scanned.
	Count int
	// AdaptiveBeam is the beam actually applied, used to seed the next
	// frame's cutoff.
	AdaptiveBeam float64
}

// Engine computes cutoffs. It keeps a scratch buffer between calls and is not
// safe for concurrent use.
type Engine struct {
	keys []Threshold
}

// NewEngine returns an engine with scratch room for capacity candidates.
func NewEngine(capacity int) *Engine {
	return &Engine{keys: make([]Threshold, 0, capacity)}
}

// Compute scans entries once for the best candidate, then tightens the beam
// cutoff to the MaxActive-th best candidate or relaxes it to the MinActive-th
// best, whichever binds. Selection is a quickselect, not a sort.
func (e *Engine) Compute(entries []activeset.Entry, pool *token.Pool, cfg Config) Result {
	n := len(entries)
	if n == 0 {
		return Result{Threshold: Unbounded, Best: -1, AdaptiveBeam: cfg.Beam}
	}

	best := 0
	bestCost := pool.Cost(entries[0].Tok)
	for i := 1; i < n; i++ {
		c := pool.Cost(entries[i].Tok)
		if c < bestCost || (c == bestCost && entries[i].State < entries[best].State) {
			best, bestCost = i, c
		}
	}
	res := Result{Best: best, Count: n}
	beamT := Threshold{Cost: bestCost + cfg.Beam, State: fst.MaxStateID}

	needMax := n > cfg.MaxActive
	needMin := cfg.MinActive > 0 && n > cfg.MinActive
	if !needMax && !needMin {
		if n <= cfg.MinActive {
			// Fewer candidates than the floor: keep them all.
			res.Threshold = Unbounded
			res.AdaptiveBeam = math.Inf(1)
			return res
		}
		res.Threshold = beamT
		res.AdaptiveBeam = cfg.Beam
		return res
	}

	keys := e.keys[:0]
	for i := range entries {
		keys = append(keys, Threshold{Cost: pool.Cost(entries[i].Tok), State: entries[i].State})
	}
	e.keys = keys

	if needMax {
		maxT := selectKth(keys, cfg.MaxActive-1)
		if maxT.less(beamT) {
			res.Threshold = maxT
			res.AdaptiveBeam = maxT.Cost - bestCost + cfg.BeamDelta
			return res
		}
		// keys[:MaxActive] now holds the MaxActive best candidates.
		keys = keys[:cfg.MaxActive]
	}

	if needMin {
		minT := selectKth(keys, cfg.MinActive-1)
		if beamT.less(minT) {
			res.Threshold = minT
			res.AdaptiveBeam = minT.Cost - bestCost + cfg.BeamDelta
			return res
		}
	} else if n <= cfg.MinActive {
		res.Threshold = Unbounded
		res.AdaptiveBeam = math.Inf(1)
		return res
	}

	res.Threshold = beamT
	res.AdaptiveBeam = cfg.Beam
	return res
}

// selectKth partially orders keys so that keys[k] is the k-th smallest and
// every element before it is smaller. Keys must be distinct.
func selectKth(keys []Threshold, k int) Threshold {
	lo, hi := 0, len(keys)-1
	for lo < hi {
		p := partition(keys, lo, hi)
		switch {
		case k == p:
			return keys[k]
		case k < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
	return keys[k]
}

func partition(keys []Threshold, lo, hi int) int {
	mid := lo + (hi-lo)/2
	// Median of three, moved to hi as the pivot.
	if keys[mid].less(keys[lo]) {
		keys[mid], keys[lo] = keys[lo], keys[mid]
	}
	if keys[hi].less(keys[lo]) {
		keys[hi], keys[lo] = keys[lo], keys[hi]
	}
	if keys[mid].less(keys[hi]) {
		keys[mid], keys[hi] = keys[hi], keys[mid]
	}
	pivot := keys[hi]
	i := lo
	for j := lo; j < hi; j++ {
		if keys[j].less(pivot) {
			keys[i], keys[j] = keys[j], keys[i]
			i++
		}
	}
	keys[i], keys[hi] = keys[hi], keys[i]
	return i
}
