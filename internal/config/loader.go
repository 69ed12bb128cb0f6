package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HALLPASS_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if HALLPASS_CONFIG is set
//  3. env (prefix HALLPASS_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// HALLPASS_DB_PATH -> db_path. Keys are flat, so underscores are kept.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// Not a setting.
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StorageDriver != "sqlite" && c.StorageDriver != "memory":
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	case c.StorageDriver == "sqlite" && c.DBPath == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.SnapshotDir == "":
		return fmt.Errorf("%w: snapshot_dir must not be empty", ErrInvalidConfig)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	case c.CooldownMS <= 0:
		return fmt.Errorf("%w: cooldown_ms must be positive", ErrInvalidConfig)
	case c.CooldownMaxEntries < 0:
		return fmt.Errorf("%w: cooldown_max_entries must not be negative", ErrInvalidConfig)
	case c.CooldownPruneIntervalMS <= 0:
		return fmt.Errorf("%w: cooldown_prune_interval_ms must be positive", ErrInvalidConfig)
	case c.DefaultEventDurationMS <= 0:
		return fmt.Errorf("%w: default_event_duration_ms must be positive", ErrInvalidConfig)
	case c.PublishQueueSize <= 0:
		return fmt.Errorf("%w: publish_queue_size must be positive", ErrInvalidConfig)
	case c.PublishWorkerCount <= 0:
		return fmt.Errorf("%w: publish_worker_count must be positive", ErrInvalidConfig)
	case c.KafkaProduceTimeoutMS <= 0:
		return fmt.Errorf("%w: kafka_produce_timeout_ms must be positive", ErrInvalidConfig)
	case c.KafkaBreakerThreshold <= 0 || c.KafkaBreakerCooldownMS <= 0:
		return fmt.Errorf("%w: kafka breaker settings must be positive", ErrInvalidConfig)
	case c.ViewerPollIntervalMS <= 0 || c.ViewerProcessingMS < 0 || c.ViewerDisplayMS <= 0:
		return fmt.Errorf("%w: viewer timings must be positive", ErrInvalidConfig)
	}
	return nil
}
