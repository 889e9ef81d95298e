package beamdec

import (
	"context"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/beamdec/decodable"
	"github.com/hupe1980/beamdec/fst"
	"github.com/hupe1980/beamdec/internal/activeset"
	"github.com/hupe1980/beamdec/internal/cutoff"
	"github.com/hupe1980/beamdec/internal/token"
)

// Decoder is a beam-pruned token-passing Viterbi decoder.
//
// A Decoder owns its token pool, active-state index and scratch buffers. It is
// NOT safe for concurrent use; run one Decoder per goroutine. Several decoders
// may share one graph.
type Decoder struct {
	graph     fst.Fst
	numStates int
	opts      Options
	cutoffCfg cutoff.Config

	pool   *token.Pool
	toks   *activeset.Index
	engine *cutoff.Engine

	// Scratch reused across frames.
	prev    []activeset.Entry
	queue   []fst.StateID
	pending *bitset.BitSet

	framesDecoded int
	initialized   bool
	err           error

	logger  *Logger
	metrics MetricsCollector
}

// Stats is a snapshot of decoder state.
type Stats struct {
	FramesDecoded  int
	Active         int
	Buckets        int
	LiveTokens     int
	TokensCreated  uint64
	TokensReleased uint64
}

// New creates a decoder over graph. The graph must outlive the decoder and is
// never modified.
func New(graph fst.Fst, opts Options, optFns ...Option) (*Decoder, error) {
	if graph == nil {
		return nil, ErrNilGraph
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	n := graph.NumStates()
	if start := graph.Start(); start < 0 || int(start) >= n {
		return nil, &GraphError{State: start, Frame: -1}
	}

	o := applyOptions(optFns)
	capacity := max(o.initialCapacity, 16)
	pool := token.NewPool(capacity)

	d := &Decoder{
		graph:     graph,
		numStates: n,
		pool:      pool,
		toks:      activeset.New(pool, int(float64(capacity)*opts.HashRatio)),
		engine:    cutoff.NewEngine(capacity),
		prev:      make([]activeset.Entry, 0, capacity),
		queue:     make([]fst.StateID, 0, capacity),
		pending:   bitset.New(uint(n)),
		logger:    o.logger,
		metrics:   o.metricsCollector,
	}
	d.setOptions(opts)
	return d, nil
}

// SetOptions replaces the pruning options. It takes effect from the next
// frame; typically it is called between utterances.
func (d *Decoder) SetOptions(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	d.setOptions(opts)
	return nil
}

func (d *Decoder) setOptions(opts Options) {
	d.opts = opts
	d.cutoffCfg = cutoff.Config{
		Beam:      opts.Beam,
		BeamDelta: opts.BeamDelta,
		MaxActive: opts.MaxActive,
		MinActive: opts.MinActive,
	}
}

// Options returns the current pruning options.
func (d *Decoder) Options() Options { return d.opts }

// Initialize starts a new utterance: it releases all tokens of the previous
// one, places a root token on the start state and expands the start state's
// non-emitting closure.
func (d *Decoder) Initialize() error {
	d.toks.Clear()
	d.pending.ClearAll()
	d.queue = d.queue[:0]
	d.framesDecoded = 0
	d.err = nil

	start := d.graph.Start()
	root := d.pool.Create(fst.Arc{NextState: start}, token.Nil, 0)
	d.toks.Upsert(start, root)
	d.initialized = true

	if err := d.processNonemitting(cutoff.Unbounded.Cost); err != nil {
		d.err = err
		return err
	}
	return nil
}

// Advance decodes frames until the scoring collaborator has no more frames
// ready or maxFrames frames have been consumed. A negative maxFrames means no
// limit.
//
// Calling Advance(ctx, d, 1) N times is equivalent to one Advance over the
// same N frames. ctx is checked between frames; a frame is never partially
// applied.
func (d *Decoder) Advance(ctx context.Context, dec decodable.Decodable, maxFrames int) error {
	if !d.initialized {
		return ErrNotInitialized
	}
	if d.err != nil {
		return d.err
	}

	target := dec.NumFramesReady()
	if maxFrames >= 0 && maxFrames < target-d.framesDecoded {
		target = d.framesDecoded + maxFrames
	}

	begin := time.Now()
	from := d.framesDecoded
	var err error
	for d.framesDecoded < target {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = d.decodeFrame(ctx, dec); err != nil {
			d.err = err
			break
		}
	}

	d.metrics.RecordAdvance(d.framesDecoded-from, time.Since(begin), err)
	d.logger.LogAdvance(ctx, from, d.framesDecoded, err)
	return err
}

// Decode initializes the decoder and decodes every frame the scoring
// collaborator has ready. It does not wait for more: on a source that is still
// accepting frames, continue with Advance and check Finished.
func (d *Decoder) Decode(ctx context.Context, dec decodable.Decodable) error {
	if err := d.Initialize(); err != nil {
		return err
	}
	return d.Advance(ctx, dec, -1)
}

// Finished reports whether the last frame of the utterance has been decoded,
// as signalled by dec.IsLastFrame. An utterance without frames is finished
// once the source says so.
func (d *Decoder) Finished(dec decodable.Decodable) bool {
	return dec.IsLastFrame(d.framesDecoded - 1)
}

// FramesDecoded returns the number of frames consumed in this utterance.
func (d *Decoder) FramesDecoded() int { return d.framesDecoded }

// Stats returns a snapshot of decoder counters.
func (d *Decoder) Stats() Stats {
	ps := d.pool.Stats()
	return Stats{
		FramesDecoded:  d.framesDecoded,
		Active:         d.toks.Len(),
		Buckets:        d.toks.Buckets(),
		LiveTokens:     ps.Live,
		TokensCreated:  ps.Created,
		TokensReleased: ps.Released,
	}
}

// Close releases every live token. The decoder may be re-initialized
// afterwards.
func (d *Decoder) Close() {
	d.toks.Clear()
	d.initialized = false
}

func (d *Decoder) decodeFrame(ctx context.Context, dec decodable.Decodable) error {
	begin := time.Now()
	fs, err := d.processEmitting(dec)
	if err != nil {
		return err
	}
	if err := d.processNonemitting(fs.Cutoff); err != nil {
		return err
	}
	fs.Active = d.toks.Len()
	fs.Duration = time.Since(begin)
	d.metrics.RecordFrame(fs)
	d.logger.LogFrame(ctx, fs)
	return nil
}

func (d *Decoder) checkArc(s fst.StateID, arc fst.Arc) error {
	if err := fst.CheckArc(s, arc, d.numStates); err != nil {
		return &GraphError{State: s, Arc: arc, Frame: d.framesDecoded, cause: err}
	}
	return nil
}
