package beamdec

import (
	"context"
	"math"
	"slices"

	"github.com/hupe1980/beamdec/fst"
	"github.com/hupe1980/beamdec/internal/token"
)

// Path is a decoded best path.
type Path struct {
	// Labels are the non-epsilon output labels in time order.
	Labels []fst.Label
	// Cost is the path cost, including the final cost when Final is set.
	Cost float64
	// Final reports whether the path was selected among final states.
	Final bool
}

// ReachedFinal reports whether any active token sits on a final state.
func (d *Decoder) ReachedFinal() bool {
	for s, tok := range d.toks.All() {
		if fst.IsFinal(d.graph, s) && !math.IsInf(d.pool.Cost(tok), 1) {
			return true
		}
	}
	return false
}

// BestPath traces back the best active token.
//
// If useFinalProbs is set and a final state is active, the token minimizing
// cost + final cost among final states is chosen; otherwise the cheapest
// token overall, regardless of finality. Ties go to the lower state id.
//
// It returns false when no token is active, or when the chosen path carries
// no output labels and did not end in a final state: there is no transcript.
func (d *Decoder) BestPath(useFinalProbs bool) (Path, bool) {
	p, ok := d.bestPath(useFinalProbs)
	d.metrics.RecordBestPath(len(p.Labels), ok)
	d.logger.LogBestPath(context.Background(), p, ok)
	return p, ok
}

func (d *Decoder) bestPath(useFinalProbs bool) (Path, bool) {
	if d.toks.Len() == 0 {
		return Path{}, false
	}
	final := useFinalProbs && d.ReachedFinal()

	best := token.Nil
	bestState := fst.MaxStateID
	bestCost := math.Inf(1)
	for s, tok := range d.toks.All() {
		c := d.pool.Cost(tok)
		if final {
			fc := d.graph.Final(s)
			if math.IsInf(float64(fc), 1) {
				continue
			}
			c += float64(fc)
		}
		if best == token.Nil || c < bestCost || (c == bestCost && s < bestState) {
			best, bestState, bestCost = tok, s, c
		}
	}
	if best == token.Nil {
		return Path{}, false
	}

	var labels []fst.Label
	// The root carries the synthetic start arc; it contributes nothing.
	for r := best; d.pool.Prev(r) != token.Nil; r = d.pool.Prev(r) {
		if l := d.pool.Arc(r).OLabel; l != fst.Epsilon {
			labels = append(labels, l)
		}
	}
	slices.Reverse(labels)

	p := Path{Labels: labels, Cost: bestCost, Final: final}
	return p, len(labels) > 0 || final
}
