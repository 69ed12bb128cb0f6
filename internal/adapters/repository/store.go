// Package repository defines the combined storage contract and opens the
// configured implementation.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/hallpass/internal/adapters/repository/memory"
	"github.com/okian/hallpass/internal/adapters/repository/sqlite"
	"github.com/okian/hallpass/internal/domain/attendance"
	"github.com/okian/hallpass/internal/domain/events"
	"github.com/okian/hallpass/internal/domain/roster"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Store provides identities, events and the attendance log.
type Store interface {
	roster.Store
	events.Store
	attendance.Log

	Close() error
}

// Config selects and configures a storage driver.
type Config struct {
	Driver string
	Path   string
}

// Open returns the store for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
