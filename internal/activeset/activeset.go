// Package activeset implements the decoder's active-state index: a
// hash-bucketed map from graph state to the single best token reaching that
// state in the generation being built.
//
// The index owns one reference to every token it stores. Drain hands all of
// them to the caller at once and leaves the index empty, which is how the
// decoder keeps the previous generation alive while the next one is built in
// the same buckets.
package activeset

import (
	"iter"
	"math/bits"

	"github.com/hupe1980/beamdec/fst"
	"github.com/hupe1980/beamdec/internal/token"
)

const minBuckets = 16

// Entry pairs a state with the token that reached it.
type Entry struct {
	State fst.StateID
	Tok   token.Ref
}

type slot struct {
	Entry
	next int32 // next slot in the same bucket, -1 terminates
}

// Index maps states to their best token. Slots are kept in insertion order so
// iteration and Drain are deterministic.
type Index struct {
	pool    *token.Pool
	buckets []int32
	shift   uint
	slots   []slot
}

// New returns an empty index with at least the given number of buckets.
func New(pool *token.Pool, buckets int) *Index {
	idx := &Index{pool: pool}
	idx.setBuckets(buckets)
	return idx
}

func (idx *Index) setBuckets(n int) {
	if n < minBuckets {
		n = minBuckets
	}
	// Round up to a power of two for multiplicative hashing.
	b := bits.Len(uint(n - 1))
	idx.buckets = make([]int32, 1<<b)
	for i := range idx.buckets {
		idx.buckets[i] = -1
	}
	idx.shift = uint(32 - b)
}

func (idx *Index) bucket(s fst.StateID) int {
	return int((uint32(s) * 0x9E3779B9) >> idx.shift)
}

func (idx *Index) find(s fst.StateID) int32 {
	for i := idx.buckets[idx.bucket(s)]; i >= 0; i = idx.slots[i].next {
		if idx.slots[i].State == s {
			return i
		}
	}
	return -1
}

// Upsert offers ref for state s. Ownership of ref passes to the index:
//   - if s is absent, ref is stored;
//   - if ref is strictly cheaper than the stored token, the stored token is
//     released and replaced;
//   - otherwise ref itself is released.
//
// It reports whether ref was stored.
func (idx *Index) Upsert(s fst.StateID, ref token.Ref) bool {
	i := idx.find(s)
	if i < 0 {
		b := idx.bucket(s)
		idx.slots = append(idx.slots, slot{Entry: Entry{State: s, Tok: ref}, next: idx.buckets[b]})
		idx.buckets[b] = int32(len(idx.slots) - 1)
		return true
	}
	cur := &idx.slots[i]
	if idx.pool.Cost(ref) < idx.pool.Cost(cur.Tok) {
		idx.pool.Release(cur.Tok)
		cur.Tok = ref
		return true
	}
	idx.pool.Release(ref)
	return false
}

// Lookup returns the token stored for s.
func (idx *Index) Lookup(s fst.StateID) (token.Ref, bool) {
	if i := idx.find(s); i >= 0 {
		return idx.slots[i].Tok, true
	}
	return token.Nil, false
}

// Len returns the number of stored states.
func (idx *Index) Len() int { return len(idx.slots) }

// Buckets returns the current bucket count.
func (idx *Index) Buckets() int { return len(idx.buckets) }

// All iterates the stored entries in insertion order. The index must not be
// modified during iteration.
func (idx *Index) All() iter.Seq2[fst.StateID, token.Ref] {
	return func(yield func(fst.StateID, token.Ref) bool) {
		for i := range idx.slots {
			if !yield(idx.slots[i].State, idx.slots[i].Tok) {
				return
			}
		}
	}
}

// Drain appends every entry to dst in insertion order and empties the index.
// The tokens are not released; the caller now owns one reference to each.
func (idx *Index) Drain(dst []Entry) []Entry {
	for i := range idx.slots {
		dst = append(dst, idx.slots[i].Entry)
	}
	idx.reset()
	return dst
}

func (idx *Index) reset() {
	if len(idx.slots)*4 > len(idx.buckets) {
		for i := range idx.buckets {
			idx.buckets[i] = -1
		}
	} else {
		for i := range idx.slots {
			idx.buckets[idx.bucket(idx.slots[i].State)] = -1
		}
	}
	idx.slots = idx.slots[:0]
}

// Clear releases every stored token and empties the index.
func (idx *Index) Clear() {
	for i := range idx.slots {
		idx.pool.Release(idx.slots[i].Tok)
	}
	idx.reset()
}

// MaybeResize grows the bucket array to observed*hashRatio buckets when that
// exceeds the current size. Stored entries are rehashed. The index never
// shrinks, so a burst of active states keeps chains short for the rest of the
// utterance.
func (idx *Index) MaybeResize(observed int, hashRatio float64) bool {
	want := int(float64(observed) * hashRatio)
	if want <= len(idx.buckets) {
		return false
	}
	idx.setBuckets(want)
	for i := range idx.slots {
		b := idx.bucket(idx.slots[i].State)
		idx.slots[i].next = idx.buckets[b]
		idx.buckets[b] = int32(i)
	}
	return true
}
