package beamdec

import (
	"math"
	"sync/atomic"
	"time"
)

// FrameStats describes the pruning and expansion of one frame.
type FrameStats struct {
	Frame        int           // index of the frame just consumed
	Candidates   int           // entries in the previous generation
	Expanded     int           // entries admitted by the cutoff and expanded
	Active       int           // entries in the new generation after non-emitting closure
	Cutoff       float64       // cutoff passed to the non-emitting pass
	AdaptiveBeam float64       // beam actually applied to the previous generation
	Duration     time.Duration // wall time for the frame
}

// MetricsCollector defines an interface for collecting decoder metrics.
// Implement this interface to integrate with monitoring systems like Prometheus
// (see the observability package).
type MetricsCollector interface {
	// RecordFrame is called after every decoded frame.
	RecordFrame(fs FrameStats)

	// RecordAdvance is called after each Advance (and thus Decode) call.
	// frames is the number of frames consumed by the call.
	RecordAdvance(frames int, duration time.Duration, err error)

	// RecordBestPath is called after each traceback.
	RecordBestPath(labels int, ok bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFrame(FrameStats)                  {}
func (NoopMetricsCollector) RecordAdvance(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordBestPath(int, bool)                {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	Frames         atomic.Int64
	Candidates     atomic.Int64
	Expanded       atomic.Int64
	MaxActive      atomic.Int64
	FrameNanos     atomic.Int64
	Advances       atomic.Int64
	AdvanceErrors  atomic.Int64
	BestPaths      atomic.Int64
	EmptyBestPaths atomic.Int64
	lastBeamBits   atomic.Uint64
}

// RecordFrame implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFrame(fs FrameStats) {
	b.Frames.Add(1)
	b.Candidates.Add(int64(fs.Candidates))
	b.Expanded.Add(int64(fs.Expanded))
	b.FrameNanos.Add(fs.Duration.Nanoseconds())
	for {
		cur := b.MaxActive.Load()
		if int64(fs.Active) <= cur || b.MaxActive.CompareAndSwap(cur, int64(fs.Active)) {
			break
		}
	}
	b.lastBeamBits.Store(math.Float64bits(fs.AdaptiveBeam))
}

// RecordAdvance implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdvance(frames int, duration time.Duration, err error) {
	b.Advances.Add(1)
	if err != nil {
		b.AdvanceErrors.Add(1)
	}
}

// RecordBestPath implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBestPath(labels int, ok bool) {
	b.BestPaths.Add(1)
	if !ok {
		b.EmptyBestPaths.Add(1)
	}
}

// LastAdaptiveBeam returns the adaptive beam of the most recent frame.
func (b *BasicMetricsCollector) LastAdaptiveBeam() float64 {
	return math.Float64frombits(b.lastBeamBits.Load())
}

// MetricsStats is a point-in-time copy of BasicMetricsCollector.
type MetricsStats struct {
	Frames         int64
	AvgCandidates  float64
	AvgExpanded    float64
	MaxActive      int64
	AvgFrameNanos  int64
	Advances       int64
	AdvanceErrors  int64
	BestPaths      int64
	EmptyBestPaths int64
}

// GetStats returns aggregated statistics.
func (b *BasicMetricsCollector) GetStats() MetricsStats {
	s := MetricsStats{
		Frames:         b.Frames.Load(),
		MaxActive:      b.MaxActive.Load(),
		Advances:       b.Advances.Load(),
		AdvanceErrors:  b.AdvanceErrors.Load(),
		BestPaths:      b.BestPaths.Load(),
		EmptyBestPaths: b.EmptyBestPaths.Load(),
	}
	if s.Frames > 0 {
		s.AvgCandidates = float64(b.Candidates.Load()) / float64(s.Frames)
		s.AvgExpanded = float64(b.Expanded.Load()) / float64(s.Frames)
		s.AvgFrameNanos = b.FrameNanos.Load() / s.Frames
	}
	return s
}
