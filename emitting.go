package beamdec

import (
	"math"

	"github.com/hupe1980/beamdec/decodable"
)

// processEmitting consumes frame d.framesDecoded. The current generation is
// drained, pruned by the cutoff engine, and every admitted token is pushed
// across its emitting arcs into the (now empty) index. The drained tokens are
// then released. It returns the frame's stats, whose Cutoff bounds the
// non-emitting pass.
func (d *Decoder) processEmitting(dec decodable.Decodable) (FrameStats, error) {
	frame := d.framesDecoded
	d.prev = d.toks.Drain(d.prev[:0])
	res := d.engine.Compute(d.prev, d.pool, d.cutoffCfg)
	d.toks.MaybeResize(res.Count, d.opts.HashRatio)

	fs := FrameStats{
		Frame:        frame,
		Candidates:   res.Count,
		AdaptiveBeam: res.AdaptiveBeam,
	}

	// Expanding the best token first gives a reasonably tight bound on the
	// next cutoff before the bulk of the work.
	nextCutoff := math.Inf(1)
	if res.Best >= 0 {
		best := d.prev[res.Best]
		cost := d.pool.Cost(best.Tok)
		for _, arc := range d.graph.Arcs(best.State) {
			if !arc.Emitting() {
				continue
			}
			if err := d.checkArc(best.State, arc); err != nil {
				d.releasePrev(0)
				return fs, err
			}
			ac := dec.AcousticCost(frame, arc.ILabel)
			c := cost + (float64(arc.Weight) + float64(ac))
			if c+res.AdaptiveBeam < nextCutoff {
				nextCutoff = c + res.AdaptiveBeam
			}
		}
	}

	for i, e := range d.prev {
		cost := d.pool.Cost(e.Tok)
		if res.Threshold.Admits(cost, e.State) {
			fs.Expanded++
			for _, arc := range d.graph.Arcs(e.State) {
				if !arc.Emitting() {
					continue
				}
				if err := d.checkArc(e.State, arc); err != nil {
					d.releasePrev(i)
					return fs, err
				}
				ac := dec.AcousticCost(frame, arc.ILabel)
				c := cost + (float64(arc.Weight) + float64(ac))
				if c > nextCutoff {
					continue
				}
				if cur, ok := d.toks.Lookup(arc.NextState); ok && d.pool.Cost(cur) <= c {
					continue
				}
				d.toks.Upsert(arc.NextState, d.pool.Create(arc, e.Tok, ac))
				if c+res.AdaptiveBeam < nextCutoff {
					nextCutoff = c + res.AdaptiveBeam
				}
			}
		}
		d.pool.Release(e.Tok)
	}
	d.prev = d.prev[:0]
	d.framesDecoded++

	fs.Cutoff = nextCutoff
	return fs, nil
}

// releasePrev drops the references still held on d.prev[from:].
func (d *Decoder) releasePrev(from int) {
	for _, e := range d.prev[from:] {
		d.pool.Release(e.Tok)
	}
	d.prev = d.prev[:0]
}
