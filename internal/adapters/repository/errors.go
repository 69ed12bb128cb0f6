package repository

import (
	"errors"

	"github.com/okian/hallpass/internal/domain/model"
)

// Sentinel kinds for repository errors.
var (
	// ErrNotFound is the domain not-found kind, re-exported for adapter callers.
	ErrNotFound      = model.ErrNotFound
	ErrUnknownDriver = errors.New("unknown storage driver")
)
