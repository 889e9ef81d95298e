package beamdec

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Options are the pruning parameters of the search.
//
// The zero value is invalid; start from DefaultOptions.
type Options struct {
	// Beam is the search width in cost units relative to the best token.
	Beam float64 `yaml:"beam"`
	// MaxActive bounds the number of tokens expanded per frame.
	MaxActive int `yaml:"max_active"`
	// MinActive is the floor on tokens expanded per frame; the beam is
	// widened to reach it when more candidates exist.
	MinActive int `yaml:"min_active"`
	// BeamDelta is added to the adaptive beam whenever MaxActive or MinActive
	// overrides Beam.
	BeamDelta float64 `yaml:"beam_delta"`
	// HashRatio scales the active-state index's bucket count relative to the
	// number of active states.
	HashRatio float64 `yaml:"hash_ratio"`
}

// DefaultOptions returns the defaults: a beam of 16, no max-active bound,
// min-active 20, beam delta 0.5 and hash ratio 2.
func DefaultOptions() Options {
	return Options{
		Beam:      16.0,
		MaxActive: math.MaxInt32,
		MinActive: 20,
		BeamDelta: 0.5,
		HashRatio: 2.0,
	}
}

// Validate checks the options before any decoding begins.
func (o Options) Validate() error {
	if !(o.Beam > 0) || math.IsInf(o.Beam, 0) {
		return &OptionError{Field: "beam", Value: o.Beam, Reason: "must be positive and finite"}
	}
	if !(o.HashRatio > 0) || math.IsInf(o.HashRatio, 0) {
		return &OptionError{Field: "hash_ratio", Value: o.HashRatio, Reason: "must be positive and finite"}
	}
	if o.MaxActive < 1 {
		return &OptionError{Field: "max_active", Value: o.MaxActive, Reason: "must be at least 1"}
	}
	if o.MinActive < 0 {
		return &OptionError{Field: "min_active", Value: o.MinActive, Reason: "must not be negative"}
	}
	if o.MinActive > o.MaxActive {
		return &OptionError{Field: "min_active", Value: o.MinActive, Reason: fmt.Sprintf("exceeds max_active %d", o.MaxActive)}
	}
	if !(o.BeamDelta >= 0) || math.IsInf(o.BeamDelta, 0) {
		return &OptionError{Field: "beam_delta", Value: o.BeamDelta, Reason: "must be non-negative and finite"}
	}
	return nil
}

// ParseOptions decodes YAML on top of DefaultOptions and validates the result.
// Keys that are absent keep their default.
func ParseOptions(data []byte) (Options, error) {
	o := DefaultOptions()
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// LoadOptions reads a YAML options file.
//
// Example:
//
//	beam: 13
//	max_active: 7000
//	min_active: 200
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}
	return ParseOptions(data)
}

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	initialCapacity  int
}

// Option configures the decoder's collaborators.
type Option func(*options)

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &beamdec.BasicMetricsCollector{}
//	dec, _ := beamdec.New(graph, beamdec.DefaultOptions(), beamdec.WithMetricsCollector(metrics))
//	// ... decode ...
//	stats := metrics.GetStats()
//	fmt.Printf("Frames: %d, avg expanded: %.1f\n", stats.Frames, stats.AvgExpanded)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithInitialCapacity presizes the token pool and the active-state index for
// roughly n simultaneously live tokens. The decoder grows as needed either way.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		o.initialCapacity = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		initialCapacity:  1024,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
