package beamdec

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with decoder field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithUtterance tags every record with an utterance id.
func (l *Logger) WithUtterance(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("utterance", id),
	}
}

// LogFrame logs the pruning outcome of one frame.
func (l *Logger) LogFrame(ctx context.Context, fs FrameStats) {
	l.DebugContext(ctx, "frame decoded",
		"frame", fs.Frame,
		"candidates", fs.Candidates,
		"expanded", fs.Expanded,
		"active", fs.Active,
		"cutoff", fs.Cutoff,
		"adaptive_beam", fs.AdaptiveBeam,
	)
}

// LogAdvance logs the outcome of an Advance call.
func (l *Logger) LogAdvance(ctx context.Context, from, to int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "advance failed",
			"from_frame", from,
			"frames_decoded", to,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "advance completed",
			"from_frame", from,
			"frames_decoded", to,
		)
	}
}

// LogBestPath logs a traceback.
func (l *Logger) LogBestPath(ctx context.Context, p Path, ok bool) {
	if !ok {
		l.WarnContext(ctx, "no best path",
			"final", p.Final,
		)
		return
	}
	l.InfoContext(ctx, "best path",
		"labels", len(p.Labels),
		"cost", p.Cost,
		"final", p.Final,
	)
}
