package fst

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// EpsilonSymbol is the textual form of Epsilon.
const EpsilonSymbol = "<eps>"

// SymbolTable maps output labels to strings and back.
//
// Label 0 is always bound to EpsilonSymbol.
type SymbolTable struct {
	byLabel map[Label]string
	bySym   map[string]Label
	next    Label
}

// NewSymbolTable returns a table containing only the epsilon symbol.
func NewSymbolTable() *SymbolTable {
	t := &SymbolTable{
		byLabel: map[Label]string{Epsilon: EpsilonSymbol},
		bySym:   map[string]Label{EpsilonSymbol: Epsilon},
		next:    1,
	}
	return t
}

// Add returns the label of sym, assigning the next free label if sym is new.
func (t *SymbolTable) Add(sym string) Label {
	if l, ok := t.bySym[sym]; ok {
		return l
	}
	l := t.next
	t.bind(sym, l)
	return l
}

// AddWithLabel binds sym to l. It fails if either side is already bound to
// something else.
func (t *SymbolTable) AddWithLabel(sym string, l Label) error {
	if old, ok := t.bySym[sym]; ok && old != l {
		return fmt.Errorf("fst: symbol %q already bound to %d", sym, old)
	}
	if old, ok := t.byLabel[l]; ok && old != sym {
		return fmt.Errorf("fst: label %d already bound to %q", l, old)
	}
	t.bind(sym, l)
	return nil
}

func (t *SymbolTable) bind(sym string, l Label) {
	t.byLabel[l] = sym
	t.bySym[sym] = l
	if l >= t.next {
		t.next = l + 1
	}
}

// Find returns the label for sym.
func (t *SymbolTable) Find(sym string) (Label, bool) {
	l, ok := t.bySym[sym]
	return l, ok
}

// Symbol returns the string for l.
func (t *SymbolTable) Symbol(l Label) (string, bool) {
	s, ok := t.byLabel[l]
	return s, ok
}

// Len returns the number of bound symbols, epsilon included.
func (t *SymbolTable) Len() int { return len(t.byLabel) }

// Strings maps labels to symbols. Unknown labels are rendered as their number.
func (t *SymbolTable) Strings(labels []Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		if s, ok := t.byLabel[l]; ok {
			out[i] = s
		} else {
			out[i] = strconv.Itoa(int(l))
		}
	}
	return out
}

// Labels maps symbols to labels. It fails on the first unknown symbol.
func (t *SymbolTable) Labels(syms []string) ([]Label, error) {
	out := make([]Label, len(syms))
	for i, s := range syms {
		l, ok := t.bySym[s]
		if !ok {
			return nil, fmt.Errorf("fst: unknown symbol %q", s)
		}
		out[i] = l
	}
	return out, nil
}

// WriteText writes "symbol label" lines ordered by label.
func (t *SymbolTable) WriteText(w io.Writer) error {
	labels := make([]Label, 0, len(t.byLabel))
	for l := range t.byLabel {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	bw := bufio.NewWriter(w)
	for _, l := range labels {
		if _, err := fmt.Fprintf(bw, "%s %d\n", t.byLabel[l], l); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadSymbolTable parses "symbol label" lines. Blank lines are ignored.
func ReadSymbolTable(r io.Reader) (*SymbolTable, error) {
	t := NewSymbolTable()
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("fst: symbols line %d: want 2 fields, got %d", line, len(fields))
		}
		id, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("fst: symbols line %d: %w", line, err)
		}
		if err := t.AddWithLabel(fields[0], Label(id)); err != nil {
			return nil, fmt.Errorf("fst: symbols line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}
