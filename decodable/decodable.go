// Package decodable provides acoustic scoring collaborators for the decoder.
//
// A Decodable serves per-frame acoustic costs indexed by the input label of
// an emitting arc. Costs are negated, scaled log-likelihoods: lower is better.
// Index i corresponds to input label i; label 0 (epsilon) is never requested.
package decodable

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hupe1980/beamdec/fst"
)

// Decodable is the scoring surface the decoder consumes.
type Decodable interface {
	// AcousticCost returns the cost of emitting index on frame.
	// frame must be < NumFramesReady().
	AcousticCost(frame int, index fst.Label) float32
	// NumFramesReady returns how many frames can currently be scored.
	NumFramesReady() int
	// IsLastFrame reports whether frame is the final frame of the utterance.
	// frame is -1 before any frame has been decoded. The decoder never waits
	// on it; callers use it to tell "no frames yet" from "utterance over".
	IsLastFrame(frame int) bool
}

// ErrRagged is returned when matrix rows have different lengths.
var ErrRagged = errors.New("decodable: rows have different lengths")

// Matrix is a fixed frames x indices cost table.
type Matrix struct {
	costs [][]float32
	scale float32
}

var _ Decodable = (*Matrix)(nil)

// NewMatrix wraps rows of costs. Column j holds the cost of label j+1.
func NewMatrix(costs [][]float32) (*Matrix, error) {
	if err := checkRows(costs); err != nil {
		return nil, err
	}
	return &Matrix{costs: costs, scale: 1}, nil
}

// FromLogLikelihoods builds a Matrix whose costs are -scale*loglik.
func FromLogLikelihoods(loglikes [][]float32, scale float32) (*Matrix, error) {
	if err := checkRows(loglikes); err != nil {
		return nil, err
	}
	return &Matrix{costs: loglikes, scale: -scale}, nil
}

func checkRows(rows [][]float32) error {
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) != len(rows[0]) {
			return fmt.Errorf("%w: row %d has %d columns, row 0 has %d", ErrRagged, i, len(rows[i]), len(rows[0]))
		}
	}
	return nil
}

// AcousticCost implements Decodable. It panics when frame or index is out of
// range: the caller asked for something it was never promised.
func (m *Matrix) AcousticCost(frame int, index fst.Label) float32 {
	if frame < 0 || frame >= len(m.costs) {
		panic(fmt.Sprintf("decodable: frame %d out of range [0,%d)", frame, len(m.costs)))
	}
	row := m.costs[frame]
	col := int(index) - 1
	if col < 0 || col >= len(row) {
		panic(fmt.Sprintf("decodable: index %d out of range [1,%d]", index, len(row)))
	}
	return m.scale * row[col]
}

// NumFramesReady implements Decodable.
func (m *Matrix) NumFramesReady() int { return len(m.costs) }

// IsLastFrame implements Decodable.
func (m *Matrix) IsLastFrame(frame int) bool { return frame == len(m.costs)-1 }

// NumIndices returns the number of scorable labels.
func (m *Matrix) NumIndices() int {
	if len(m.costs) == 0 {
		return 0
	}
	return len(m.costs[0])
}

// ReadMatrix parses whitespace-separated rows of costs, one frame per line.
// Blank lines and lines starting with '#' are skipped.
func ReadMatrix(r io.Reader) (*Matrix, error) {
	var rows [][]float32
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		row := make([]float32, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, fmt.Errorf("decodable: line %d column %d: %w", line, i+1, err)
			}
			row[i] = float32(v)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewMatrix(rows)
}
