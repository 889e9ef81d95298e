// Package observability exports decoder metrics to Prometheus.
package observability

import (
	"time"

	"github.com/hupe1980/beamdec"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements beamdec.MetricsCollector.
type PrometheusCollector struct {
	frames       prometheus.Counter
	candidates   prometheus.Histogram
	expanded     prometheus.Histogram
	active       prometheus.Gauge
	adaptiveBeam prometheus.Gauge
	frameLatency prometheus.Histogram
	advances     *prometheus.CounterVec
	advanceTime  prometheus.Histogram
	bestPaths    *prometheus.CounterVec
	pathLength   prometheus.Histogram
}

var _ beamdec.MetricsCollector = (*PrometheusCollector)(nil)

var countBuckets = prometheus.ExponentialBuckets(1, 4, 10)

// NewPrometheusCollector creates the collector and registers its metrics
// with reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &PrometheusCollector{
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoder_frames_total",
			Help:      "Frames decoded",
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decoder_frame_candidates",
			Help:      "Tokens entering pruning per frame",
			Buckets:   countBuckets,
		}),
		expanded: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decoder_frame_expanded",
			Help:      "Tokens surviving pruning per frame",
			Buckets:   countBuckets,
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "decoder_active_states",
			Help:      "Active states after the most recent frame",
		}),
		adaptiveBeam: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "decoder_adaptive_beam",
			Help:      "Adaptive beam of the most recent frame",
		}),
		frameLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decoder_frame_duration_seconds",
			Help:      "Time spent per frame",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoder_advances_total",
			Help:      "Advance calls",
		}, []string{"status"}),
		advanceTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decoder_advance_duration_seconds",
			Help:      "Time spent per Advance call",
			Buckets:   prometheus.DefBuckets,
		}),
		bestPaths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoder_best_paths_total",
			Help:      "Best path extractions",
		}, []string{"result"}),
		pathLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decoder_best_path_labels",
			Help:      "Output labels per extracted best path",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),
	}

	reg.MustRegister(
		c.frames,
		c.candidates,
		c.expanded,
		c.active,
		c.adaptiveBeam,
		c.frameLatency,
		c.advances,
		c.advanceTime,
		c.bestPaths,
		c.pathLength,
	)
	return c
}

// RecordFrame implements beamdec.MetricsCollector.
func (c *PrometheusCollector) RecordFrame(fs beamdec.FrameStats) {
	c.frames.Inc()
	c.candidates.Observe(float64(fs.Candidates))
	c.expanded.Observe(float64(fs.Expanded))
	c.active.Set(float64(fs.Active))
	c.adaptiveBeam.Set(fs.AdaptiveBeam)
	c.frameLatency.Observe(fs.Duration.Seconds())
}

// RecordAdvance implements beamdec.MetricsCollector.
func (c *PrometheusCollector) RecordAdvance(frames int, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.advances.WithLabelValues(status).Inc()
	c.advanceTime.Observe(d.Seconds())
}

// RecordBestPath implements beamdec.MetricsCollector.
func (c *PrometheusCollector) RecordBestPath(labels int, ok bool) {
	result := "found"
	if !ok {
		result = "empty"
	}
	c.bestPaths.WithLabelValues(result).Inc()
	c.pathLength.Observe(float64(labels))
}
