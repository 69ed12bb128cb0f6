package service

import (
	"time"

	"github.com/okian/hallpass/internal/adapters/repository"
	"github.com/okian/hallpass/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStorage selects the storage driver and database path.
func WithStorage(driver, path string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storage.Driver = driver
		}
		if path != "" {
			s.storage.Path = path
		}
	}
}

// WithStore uses an already opened store. The service does not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithSeed loads the demo events and roster into an empty store on start.
func WithSeed(seed bool) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithSnapshotDir sets where tap images are kept.
func WithSnapshotDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.snapshotDir = dir
		}
	}
}

// WithMaxUploadBytes bounds a single image upload.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithCooldown sets the re-admission window and how many credentials are tracked.
func WithCooldown(window time.Duration, maxEntries int) Option {
	return func(s *Service) {
		if window > 0 {
			s.cooldownWindow = window
		}
		if maxEntries >= 0 {
			s.cooldownMaxEntries = maxEntries
		}
	}
}

// WithDefaultEventDuration sets the window length of events created without an end.
func WithDefaultEventDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.defaultEventDuration = d
		}
	}
}

// WithQueueSize sets the capacity of the audit queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of audit publisher goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithKafka publishes audit entries to topic on brokers. No brokers keeps the
// log publisher.
func WithKafka(brokers []string, topic string) Option {
	return func(s *Service) {
		s.brokers = brokers
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithKafkaProducer tunes the Kafka publisher: client id, per-produce timeout
// and the circuit breaker that skips produces after repeated failures.
func WithKafkaProducer(clientID string, produceTimeout time.Duration, breakerThreshold int, breakerCooldown time.Duration) Option {
	return func(s *Service) {
		s.kafkaClientID = clientID
		s.produceTimeout = produceTimeout
		s.breakerThreshold = breakerThreshold
		s.breakerCooldown = breakerCooldown
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
