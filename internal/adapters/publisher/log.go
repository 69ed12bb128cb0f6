package publisher

import (
	"context"

	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/pkg/logger"
)

// Log writes each entry as a structured log line. It is the sink used when no
// broker is configured.
type Log struct {
	logger logger.Logger
}

// NewLog creates a log publisher. A nil logger uses the global "audit" logger.
func NewLog(l logger.Logger) *Log {
	if l == nil {
		l = logger.Get().Named("audit")
	}
	return &Log{logger: l}
}

// Name implements worker.Publisher.
func (p *Log) Name() string { return "log" }

// Publish implements worker.Publisher.
func (p *Log) Publish(ctx context.Context, e model.LogEntry) error { //nolint:gocritic // hugeParam: entries travel by value
	p.logger.Info(ctx, "attendance",
		logger.String("entry_id", e.ID),
		logger.String("uid", e.CredentialID),
		logger.String("gate", e.Gate),
		logger.String("status", string(e.Outcome)),
		logger.String("reason", e.Reason),
		logger.String("tap_type", string(e.TapType)),
		logger.Time("timestamp", e.Timestamp),
	)
	return nil
}
