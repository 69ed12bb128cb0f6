// Package config defines service configuration and how it is loaded.
//
// Durations are configured in milliseconds and exposed as time.Duration
// through accessor methods.
package config

import (
	"context"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects "text" or "json" log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StorageDriver is "sqlite" or "memory".
	StorageDriver string `koanf:"storage_driver"`
	DBPath        string `koanf:"db_path"`
	// Seed loads the demo events and roster on start.
	Seed bool `koanf:"seed"`

	SnapshotDir    string `koanf:"snapshot_dir"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes"`

	CooldownMS              int `koanf:"cooldown_ms"`
	CooldownMaxEntries      int `koanf:"cooldown_max_entries"`
	CooldownPruneIntervalMS int `koanf:"cooldown_prune_interval_ms"`

	// DefaultEventDurationMS is used when an event is created without an end.
	DefaultEventDurationMS int64 `koanf:"default_event_duration_ms"`

	// PublishQueueSize bounds the audit queue; PublishWorkerCount drains it.
	PublishQueueSize   int `koanf:"publish_queue_size"`
	PublishWorkerCount int `koanf:"publish_worker_count"`

	// KafkaBrokers is a comma-separated seed list. Empty disables Kafka.
	KafkaBrokers          string `koanf:"kafka_brokers"`
	KafkaTopic            string `koanf:"kafka_topic"`
	KafkaClientID         string `koanf:"kafka_client_id"`
	KafkaProduceTimeoutMS int    `koanf:"kafka_produce_timeout_ms"`
	// After KafkaBreakerThreshold consecutive failures, produces are skipped
	// for KafkaBreakerCooldownMS.
	KafkaBreakerThreshold  int `koanf:"kafka_breaker_threshold"`
	KafkaBreakerCooldownMS int `koanf:"kafka_breaker_cooldown_ms"`

	// OTelEndpoint is an OTLP/HTTP host:port. Empty disables tracing export.
	OTelEndpoint string `koanf:"otel_endpoint"`
	ServiceName  string `koanf:"service_name"`

	ViewerPollIntervalMS int    `koanf:"viewer_poll_interval_ms"`
	ViewerProcessingMS   int    `koanf:"viewer_processing_ms"`
	ViewerDisplayMS      int    `koanf:"viewer_display_ms"`
	ViewerServerURL      string `koanf:"viewer_server_url"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		StorageDriver:           "sqlite",
		DBPath:                  "./data/hallpass.db",
		SnapshotDir:             "./live_scans",
		MaxUploadBytes:          5 << 20,
		CooldownMS:              15_000,
		CooldownMaxEntries:      100_000,
		CooldownPruneIntervalMS: 60_000,
		DefaultEventDurationMS:  24 * 60 * 60 * 1000,
		PublishQueueSize:        1024,
		PublishWorkerCount:      2,
		KafkaTopic:              "hallpass.attendance",
		KafkaClientID:           "hallpass",
		KafkaProduceTimeoutMS:   5000,
		KafkaBreakerThreshold:   5,
		KafkaBreakerCooldownMS:  30_000,
		ServiceName:             "hallpass",
		ViewerPollIntervalMS:    1000,
		ViewerProcessingMS:      1000,
		ViewerDisplayMS:         5000,
		ViewerServerURL:         "http://localhost:9080",
	}
}

func ms(n int64) time.Duration { return time.Duration(n) * time.Millisecond }

func (c *Config) Cooldown() time.Duration { return ms(int64(c.CooldownMS)) }

func (c *Config) CooldownPruneInterval() time.Duration { return ms(int64(c.CooldownPruneIntervalMS)) }

func (c *Config) DefaultEventDuration() time.Duration { return ms(c.DefaultEventDurationMS) }

func (c *Config) KafkaProduceTimeout() time.Duration { return ms(int64(c.KafkaProduceTimeoutMS)) }

func (c *Config) KafkaBreakerCooldown() time.Duration { return ms(int64(c.KafkaBreakerCooldownMS)) }

func (c *Config) ViewerPollInterval() time.Duration { return ms(int64(c.ViewerPollIntervalMS)) }

func (c *Config) ViewerProcessing() time.Duration { return ms(int64(c.ViewerProcessingMS)) }

func (c *Config) ViewerDisplay() time.Duration { return ms(int64(c.ViewerDisplayMS)) }

// Brokers splits KafkaBrokers, dropping blanks.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
