package decodable

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/beamdec/fst"
)

// ErrInputFinished is returned by AcceptFrame after InputFinished.
var ErrInputFinished = errors.New("decodable: input already finished")

// Online is a Decodable whose frames arrive over time.
//
// A producer goroutine may call AcceptFrame while the decoder goroutine reads;
// the decoder only ever sees the frames that were ready when it asked.
type Online struct {
	mu       sync.RWMutex
	rows     [][]float32
	dim      int
	finished bool
}

var _ Decodable = (*Online)(nil)

// NewOnline returns an empty Online decodable expecting rows of dim costs.
func NewOnline(dim int) *Online {
	return &Online{dim: dim}
}

// AcceptFrame appends one frame of costs. The row is copied.
func (o *Online) AcceptFrame(costs []float32) error {
	if len(costs) != o.dim {
		return fmt.Errorf("%w: got %d columns, want %d", ErrRagged, len(costs), o.dim)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished {
		return ErrInputFinished
	}
	row := make([]float32, len(costs))
	copy(row, costs)
	o.rows = append(o.rows, row)
	return nil
}

// InputFinished marks the last accepted frame as the end of the utterance.
func (o *Online) InputFinished() {
	o.mu.Lock()
	o.finished = true
	o.mu.Unlock()
}

// AcousticCost implements Decodable.
func (o *Online) AcousticCost(frame int, index fst.Label) float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if frame < 0 || frame >= len(o.rows) {
		panic(fmt.Sprintf("decodable: frame %d not ready (%d ready)", frame, len(o.rows)))
	}
	col := int(index) - 1
	if col < 0 || col >= o.dim {
		panic(fmt.Sprintf("decodable: index %d out of range [1,%d]", index, o.dim))
	}
	return o.rows[frame][col]
}

// NumFramesReady implements Decodable.
func (o *Online) NumFramesReady() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.rows)
}

// IsLastFrame implements Decodable.
func (o *Online) IsLastFrame(frame int) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.finished && frame == len(o.rows)-1
}
