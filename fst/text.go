package fst

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ReadText parses a graph in the AT&T text format:
//
//	src dst ilabel olabel [weight]
//	state [final-cost]
//
// The source of the first arc line is the start state. State ids must be
// dense from 0: a graph whose largest id exceeds twice the number of arc and
// final lines is rejected. If osyms is non-nil, output labels are symbols
// looked up in it; otherwise all labels are numeric. Blank lines and lines
// starting with '#' are ignored.
func ReadText(r io.Reader, osyms *SymbolTable) (*VectorFst, error) {
	type textArc struct {
		src StateID
		arc Arc
	}
	type textFinal struct {
		state StateID
		cost  float32
	}
	var (
		arcs   []textArc
		finals []textFinal
		maxID  = NoStateID
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)

		switch len(fields) {
		case 1, 2:
			s, err := parseState(fields[0])
			if err != nil {
				return nil, fmt.Errorf("fst: line %d: %w", line, err)
			}
			cost := float32(0)
			if len(fields) == 2 {
				if cost, err = parseWeight(fields[1]); err != nil {
					return nil, fmt.Errorf("fst: line %d: %w", line, err)
				}
			}
			maxID = max(maxID, s)
			finals = append(finals, textFinal{state: s, cost: cost})
		case 4, 5:
			src, err := parseState(fields[0])
			if err != nil {
				return nil, fmt.Errorf("fst: line %d: %w", line, err)
			}
			dst, err := parseState(fields[1])
			if err != nil {
				return nil, fmt.Errorf("fst: line %d: %w", line, err)
			}
			il, err := strconv.ParseInt(fields[2], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("fst: line %d: ilabel: %w", line, err)
			}
			ol, err := parseOLabel(fields[3], osyms)
			if err != nil {
				return nil, fmt.Errorf("fst: line %d: %w", line, err)
			}
			w := float32(0)
			if len(fields) == 5 {
				if w, err = parseWeight(fields[4]); err != nil {
					return nil, fmt.Errorf("fst: line %d: %w", line, err)
				}
			}
			maxID = max(maxID, src, dst)
			arcs = append(arcs, textArc{src: src, arc: Arc{ILabel: Label(il), OLabel: ol, Weight: w, NextState: dst}})
		default:
			return nil, fmt.Errorf("fst: line %d: unexpected %d fields", line, len(fields))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	records := len(arcs) + len(finals)
	if records == 0 {
		return nil, fmt.Errorf("%w: empty graph", ErrInvalidGraph)
	}
	if int64(maxID) >= 2*int64(records) {
		return nil, fmt.Errorf("%w: state id %d is not dense for %d lines", ErrInvalidGraph, maxID, records)
	}

	b := NewBuilder()
	b.AddStates(int(maxID) + 1)
	b.SetStart(0)
	if len(arcs) > 0 {
		b.SetStart(arcs[0].src)
	}
	for _, a := range arcs {
		b.AddArc(a.src, a.arc)
	}
	for _, f := range finals {
		b.SetFinal(f.state, f.cost)
	}
	return b.Build()
}

// WriteText writes f in the format read by ReadText. Arcs of the start state
// come first.
func WriteText(w io.Writer, f Fst) error {
	bw := bufio.NewWriter(w)
	n := f.NumStates()
	order := make([]StateID, 0, n)
	order = append(order, f.Start())
	for s := 0; s < n; s++ {
		if StateID(s) != f.Start() {
			order = append(order, StateID(s))
		}
	}
	for _, s := range order {
		for _, a := range f.Arcs(s) {
			if _, err := fmt.Fprintf(bw, "%d\t%d\t%d\t%d\t%s\n", s, a.NextState, a.ILabel, a.OLabel, formatWeight(a.Weight)); err != nil {
				return err
			}
		}
	}
	for s := 0; s < n; s++ {
		if c := f.Final(StateID(s)); !math.IsInf(float64(c), 1) {
			if _, err := fmt.Fprintf(bw, "%d\t%s\n", s, formatWeight(c)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func parseState(s string) (StateID, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("bad state %q", s)
	}
	return StateID(v), nil
}

func parseWeight(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("bad weight %q", s)
	}
	return float32(v), nil
}

func parseOLabel(s string, osyms *SymbolTable) (Label, error) {
	if osyms != nil {
		if l, ok := osyms.Find(s); ok {
			return l, nil
		}
		return 0, fmt.Errorf("unknown output symbol %q", s)
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("olabel: %w", err)
	}
	return Label(v), nil
}

func formatWeight(w float32) string {
	return strconv.FormatFloat(float64(w), 'g', -1, 32)
}
