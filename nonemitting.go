package beamdec

// processNonemitting closes the current generation over epsilon-input arcs.
//
// Every active state is pushed on a work stack. A popped state whose token is
// within cutoff propagates across its non-emitting arcs; a destination whose
// entry improves (or is created) is pushed again unless already pending.
// Weights are non-negative, so costs only grow along a chain and the cutoff
// bounds the reachable set: the loop terminates.
func (d *Decoder) processNonemitting(cutoff float64) error {
	queue := d.queue[:0]
	for s := range d.toks.All() {
		queue = append(queue, s)
		d.pending.Set(uint(s))
	}

	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		d.pending.Clear(uint(s))

		tok, _ := d.toks.Lookup(s)
		cost := d.pool.Cost(tok)
		if cost > cutoff {
			continue
		}
		for _, arc := range d.graph.Arcs(s) {
			if arc.Emitting() {
				continue
			}
			if err := d.checkArc(s, arc); err != nil {
				for _, q := range queue {
					d.pending.Clear(uint(q))
				}
				d.queue = queue[:0]
				return err
			}
			c := cost + float64(arc.Weight)
			if c > cutoff {
				continue
			}
			if cur, ok := d.toks.Lookup(arc.NextState); ok && d.pool.Cost(cur) <= c {
				continue
			}
			d.toks.Upsert(arc.NextState, d.pool.Create(arc, tok, 0))
			if !d.pending.Test(uint(arc.NextState)) {
				d.pending.Set(uint(arc.NextState))
				queue = append(queue, arc.NextState)
			}
		}
	}
	d.queue = queue
	return nil
}
