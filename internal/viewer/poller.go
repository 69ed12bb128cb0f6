package viewer

import (
	"context"
	"time"

	"github.com/okian/hallpass/pkg/logger"
)

// Source is where the poller reads the newest entry for a gate.
type Source interface {
	Latest(ctx context.Context, gate string) (Item, bool, error)
}

// Renderer shows a view.
type Renderer interface {
	Render(v View)
}

// Poller drives one gate's display from a Source.
type Poller struct {
	gate     string
	source   Source
	display  *Display
	renderer Renderer
	interval time.Duration
	logger   logger.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets a custom logger for the poller.
func WithLogger(l logger.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPoller returns a poller that feeds display from source and renders
// every change.
func NewPoller(source Source, display *Display, renderer Renderer, opts ...PollerOption) *Poller {
	p := &Poller{
		gate:     display.gate,
		source:   source,
		display:  display,
		renderer: renderer,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("viewer")
	}
	return p
}

// Run polls until ctx is done. Feed faults never stop it.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info(ctx, "listening", logger.String("gate", p.gate), logger.Duration("interval", p.interval))
	p.renderer.Render(p.display.View())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Step(ctx)
		}
	}
}

// Step performs one poll and one timer advance, rendering if anything changed.
func (p *Poller) Step(ctx context.Context) {
	changed := false

	it, found, err := p.source.Latest(ctx, p.gate)
	switch {
	case err != nil:
		p.logger.Debug(ctx, "poll failed", logger.String("gate", p.gate), logger.Error(err))
	case found && p.display.Offer(it):
		p.logger.Debug(ctx, "new entry",
			logger.String("gate", p.gate),
			logger.String("status", it.Status),
			logger.Time("ts", it.Timestamp),
		)
		changed = true
	}

	if p.display.Tick() {
		changed = true
	}
	if changed {
		p.renderer.Render(p.display.View())
	}
}
