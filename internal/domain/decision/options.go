package decision

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/okian/hallpass/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithSnapshots enables image retention for admitted taps.
func WithSnapshots(s Snapshots) Option {
	return func(e *Engine) {
		e.snapshots = s
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIDGenerator replaces the log entry id source.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer used for decision spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}
