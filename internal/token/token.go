// Package token implements the decoder's hypothesis records.
//
// Tokens live in an arena owned by a Pool and are addressed by Ref handles.
// Each token records the arc taken, its predecessor and its cumulative cost.
// Predecessors are shared: many successors may point at one token, so every
// token carries a live-reference count. A token is recycled onto the pool's
// free list when its count reaches zero, which in turn drops one reference
// from its predecessor. This is the only way tokens die.
//
// A Pool is not safe for concurrent use.
package token

import (
	"fmt"

	"github.com/hupe1980/beamdec/fst"
)

// Ref is a handle to a token in a Pool. The zero Ref is Nil.
type Ref uint32

// Nil is the absent token (a root's predecessor).
const Nil Ref = 0

type record struct {
	arc  fst.Arc
	cost float64
	prev Ref
	refs int32
}

// Stats reports pool counters.
type Stats struct {
	Created  uint64 // Historical: tokens ever created
	Released uint64 // Historical: tokens ever recycled
	Live     int    // Current: tokens with a non-zero count
	Capacity int    // Current: records backing the arena
}

// Pool is an arena of token records with free-list reuse.
// Create and Release are amortized O(1).
type Pool struct {
	records  []record
	free     []Ref
	created  uint64
	released uint64
}

// NewPool returns a pool with room for capacity tokens before growing.
func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	p := &Pool{
		records: make([]record, 1, capacity+1), // slot 0 backs Nil
		free:    make([]Ref, 0, capacity/4+1),
	}
	return p
}

// Create allocates a token for arc with count 1. If prev is not Nil its count
// is incremented and the new cost is prev's cost + arc.Weight + acousticCost.
func (p *Pool) Create(arc fst.Arc, prev Ref, acousticCost float32) Ref {
	cost := float64(arc.Weight) + float64(acousticCost)
	if prev != Nil {
		pr := p.get(prev)
		pr.refs++
		cost += pr.cost
	}

	var r Ref
	if n := len(p.free); n > 0 {
		r = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		p.records = append(p.records, record{})
		r = Ref(len(p.records) - 1)
	}
	p.records[r] = record{arc: arc, cost: cost, prev: prev, refs: 1}
	p.created++
	return r
}

// Release drops one reference from r. When the count reaches zero the token
// is recycled and the release continues with its predecessor.
func (p *Pool) Release(r Ref) {
	for r != Nil {
		rec := p.get(r)
		rec.refs--
		if rec.refs > 0 {
			return
		}
		prev := rec.prev
		*rec = record{}
		p.free = append(p.free, r)
		p.released++
		r = prev
	}
}

// Cost returns the cumulative cost of r.
func (p *Pool) Cost(r Ref) float64 { return p.get(r).cost }

// Arc returns the arc r was created for.
func (p *Pool) Arc(r Ref) fst.Arc { return p.get(r).arc }

// Prev returns the predecessor of r, or Nil for a root.
func (p *Pool) Prev(r Ref) Ref { return p.get(r).prev }

// Refs returns the live-reference count of r.
func (p *Pool) Refs(r Ref) int { return int(p.get(r).refs) }

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Created:  p.created,
		Released: p.released,
		Live:     int(p.created - p.released),
		Capacity: len(p.records) - 1,
	}
}

func (p *Pool) get(r Ref) *record {
	if r == Nil || int(r) >= len(p.records) {
		panic(fmt.Sprintf("token: invalid ref %d", r))
	}
	rec := &p.records[r]
	if rec.refs <= 0 {
		panic(fmt.Sprintf("token: use of released ref %d", r))
	}
	return rec
}
