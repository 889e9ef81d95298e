package beamdec

import (
	"errors"
	"fmt"

	"github.com/hupe1980/beamdec/fst"
)

var (
	// ErrInvalidOptions is returned when decoder options are rejected.
	ErrInvalidOptions = errors.New("invalid decoder options")

	// ErrGraphInconsistent is returned when the graph violates a decoder
	// precondition (dangling destination, negative weight, bad start state).
	// Decoding stops; the decoder must be re-initialized.
	ErrGraphInconsistent = errors.New("graph inconsistency")

	// ErrNotInitialized is returned by Advance before Initialize.
	ErrNotInitialized = errors.New("decoder not initialized")

	// ErrNilGraph is returned by New when no graph is given.
	ErrNilGraph = errors.New("graph is nil")
)

// OptionError describes a rejected option value.
//
// It matches ErrInvalidOptions via errors.Is.
type OptionError struct {
	Field  string
	Value  any
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid option %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *OptionError) Unwrap() error { return ErrInvalidOptions }

// GraphError reports the state and arc at which the graph was found
// inconsistent.
//
// It matches ErrGraphInconsistent via errors.Is. The original underlying error
// (if any) is also reachable through errors.Is/As.
type GraphError struct {
	State fst.StateID
	Arc   fst.Arc
	Frame int
	cause error
}

func (e *GraphError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("graph inconsistency at frame %d, state %d: %v", e.Frame, e.State, e.cause)
	}
	return fmt.Sprintf("graph inconsistency at frame %d, state %d", e.Frame, e.State)
}

func (e *GraphError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrGraphInconsistent}
	}
	return []error{ErrGraphInconsistent, e.cause}
}
