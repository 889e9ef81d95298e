// Package fst provides the weighted transducer consumed by the decoder.
//
// A graph is a set of states numbered 0..NumStates()-1, a start state, a
// per-state final cost and, per state, a list of outgoing arcs. An arc whose
// input label is Epsilon does not consume a frame (non-emitting); every other
// arc consumes exactly one frame and its input label selects the acoustic
// cost from the scoring collaborator.
//
// All costs are in the tropical semiring: lower is better, costs add along a
// path, and +Inf marks "not final".
package fst

import (
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// StateID identifies a graph state.
type StateID int32

// Label is an input or output symbol.
type Label int32

const (
	// Epsilon is the empty label. Arcs with an Epsilon input label are non-emitting.
	Epsilon Label = 0

	// NoStateID marks an unset state.
	NoStateID StateID = -1

	// MaxStateID is the largest representable state id.
	MaxStateID StateID = math.MaxInt32
)

// Arc is a directed, weighted transition.
type Arc struct {
	ILabel    Label
	OLabel    Label
	Weight    float32
	NextState StateID
}

// Emitting reports whether the arc consumes a frame.
func (a Arc) Emitting() bool { return a.ILabel != Epsilon }

// Fst is the read-only graph surface the decoder needs.
//
// Implementations must be safe for concurrent reads; the decoder never
// mutates the graph.
type Fst interface {
	// Start returns the start state.
	Start() StateID
	// Final returns the final cost of s, or +Inf if s is not final.
	Final(s StateID) float32
	// NumStates returns the number of states.
	NumStates() int
	// Arcs returns the outgoing arcs of s. The slice must not be modified.
	Arcs(s StateID) []Arc
}

// IsFinal reports whether s has a finite final cost.
func IsFinal(f Fst, s StateID) bool {
	return !math.IsInf(float64(f.Final(s)), 1)
}

var (
	// ErrInvalidGraph is the sentinel wrapped by all graph validation errors.
	ErrInvalidGraph = errors.New("fst: invalid graph")
)

// ArcError describes an arc that violates a graph precondition.
type ArcError struct {
	State  StateID
	Arc    Arc
	Reason string
}

func (e *ArcError) Error() string {
	return fmt.Sprintf("fst: state %d arc %d:%d/%g -> %d: %s",
		e.State, e.Arc.ILabel, e.Arc.OLabel, e.Arc.Weight, e.Arc.NextState, e.Reason)
}

func (e *ArcError) Unwrap() error { return ErrInvalidGraph }

// CheckArc validates a single arc leaving state s of a graph with n states.
func CheckArc(s StateID, arc Arc, n int) error {
	if arc.NextState < 0 || int(arc.NextState) >= n {
		return &ArcError{State: s, Arc: arc, Reason: "destination state does not exist"}
	}
	if arc.Weight < 0 || math.IsNaN(float64(arc.Weight)) {
		return &ArcError{State: s, Arc: arc, Reason: "negative or NaN weight"}
	}
	return nil
}

// MaxInputLabel returns the largest input label on any arc of f, or Epsilon
// if f has no emitting arcs. Scoring sources must cover labels 1..MaxInputLabel.
func MaxInputLabel(f Fst) Label {
	m := Epsilon
	for s := 0; s < f.NumStates(); s++ {
		for _, a := range f.Arcs(StateID(s)) {
			m = max(m, a.ILabel)
		}
	}
	return m
}

// Validate checks that f has a valid start state, that every arc points to an
// existing state, and that no weight or final cost is negative.
func Validate(f Fst) error {
	n := f.NumStates()
	if n == 0 {
		return fmt.Errorf("%w: no states", ErrInvalidGraph)
	}
	if start := f.Start(); start < 0 || int(start) >= n {
		return fmt.Errorf("%w: start state %d out of range [0,%d)", ErrInvalidGraph, start, n)
	}
	for s := StateID(0); int(s) < n; s++ {
		if fc := f.Final(s); fc < 0 || math.IsNaN(float64(fc)) {
			return fmt.Errorf("%w: state %d has negative final cost %g", ErrInvalidGraph, s, fc)
		}
		for _, arc := range f.Arcs(s) {
			if err := CheckArc(s, arc, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// VectorFst is an in-memory graph with arcs stored per state.
type VectorFst struct {
	start    StateID
	arcs     [][]Arc
	finals   []float32
	finalSet *roaring.Bitmap
}

var _ Fst = (*VectorFst)(nil)

// Start implements Fst.
func (f *VectorFst) Start() StateID { return f.start }

// Final implements Fst.
func (f *VectorFst) Final(s StateID) float32 {
	if s < 0 || int(s) >= len(f.finals) {
		return float32(math.Inf(1))
	}
	return f.finals[s]
}

// NumStates implements Fst.
func (f *VectorFst) NumStates() int { return len(f.arcs) }

// Arcs implements Fst.
func (f *VectorFst) Arcs(s StateID) []Arc {
	if s < 0 || int(s) >= len(f.arcs) {
		return nil
	}
	return f.arcs[s]
}

// NumArcs returns the total number of arcs.
func (f *VectorFst) NumArcs() int {
	n := 0
	for _, a := range f.arcs {
		n += len(a)
	}
	return n
}

// FinalStates returns the set of final states. The bitmap must not be modified.
func (f *VectorFst) FinalStates() *roaring.Bitmap { return f.finalSet }

// Builder assembles a VectorFst.
//
// The zero value is not usable; call NewBuilder.
type Builder struct {
	start  StateID
	arcs   [][]Arc
	finals []float32
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{start: NoStateID}
}

// AddState appends a new non-final state and returns its id.
func (b *Builder) AddState() StateID {
	b.arcs = append(b.arcs, nil)
	b.finals = append(b.finals, float32(math.Inf(1)))
	return StateID(len(b.arcs) - 1)
}

// AddStates appends n states.
func (b *Builder) AddStates(n int) {
	for i := 0; i < n; i++ {
		b.AddState()
	}
}

// NumStates returns the number of states added so far.
func (b *Builder) NumStates() int { return len(b.arcs) }

// SetStart sets the start state.
func (b *Builder) SetStart(s StateID) { b.start = s }

// SetFinal marks s final with the given cost. A cost of +Inf clears finality.
func (b *Builder) SetFinal(s StateID, cost float32) {
	b.finals[s] = cost
}

// AddArc adds an arc leaving s. Destinations are checked by Build, so arcs
// may reference states that are added later.
func (b *Builder) AddArc(s StateID, arc Arc) {
	b.arcs[s] = append(b.arcs[s], arc)
}

// Build validates the graph and returns it. The builder must not be reused.
func (b *Builder) Build() (*VectorFst, error) {
	f := &VectorFst{
		start:    b.start,
		arcs:     b.arcs,
		finals:   b.finals,
		finalSet: roaring.New(),
	}
	for s, c := range b.finals {
		if !math.IsInf(float64(c), 1) {
			f.finalSet.Add(uint32(s))
		}
	}
	if err := Validate(f); err != nil {
		return nil, err
	}
	return f, nil
}
