// Package service wires storage, the decision engine and the audit pipeline
// together and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/okian/hallpass/internal/adapters/mq/queue"
	"github.com/okian/hallpass/internal/adapters/mq/worker"
	"github.com/okian/hallpass/internal/adapters/publisher"
	"github.com/okian/hallpass/internal/adapters/repository"
	"github.com/okian/hallpass/internal/adapters/snapshot"
	"github.com/okian/hallpass/internal/domain/attendance"
	"github.com/okian/hallpass/internal/domain/cooldown"
	"github.com/okian/hallpass/internal/domain/decision"
	"github.com/okian/hallpass/internal/domain/events"
	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/internal/domain/roster"
	"github.com/okian/hallpass/pkg/logger"
	"github.com/okian/hallpass/pkg/metrics"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("service not started")
)

// Service implements the API dependencies for the access system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	ownsStore bool
	tracker   cooldown.Tracker
	engine    *decision.Engine
	feed      *attendance.Feed
	snapshots *snapshot.Store
	audit     *queue.InMemoryQueue
	pool      *worker.Pool
	kafka     *publisher.Kafka

	// Configuration
	storage              repository.Config
	seed                 bool
	snapshotDir          string
	maxUploadBytes       int64
	cooldownWindow       time.Duration
	cooldownMaxEntries   int
	defaultEventDuration time.Duration
	queueSize            int
	workerCount          int
	brokers              []string
	topic                string
	kafkaClientID        string
	produceTimeout       time.Duration
	breakerThreshold     int
	breakerCooldown      time.Duration
	clock                func() time.Time

	// State
	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storage:              repository.Config{Driver: repository.DriverSQLite, Path: "./data/hallpass.db"},
		snapshotDir:          "./live_scans",
		maxUploadBytes:       5 << 20,
		cooldownWindow:       cooldown.DefaultWindow,
		cooldownMaxEntries:   100_000,
		defaultEventDuration: 24 * time.Hour,
		queueSize:            1024,
		workerCount:          2,
		topic:                "hallpass.attendance",
		clock:                time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage and starts the engine and audit pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting access service...",
		logger.String("storage", s.storage.Driver),
	)

	if s.store == nil {
		store, err := repository.Open(ctx, s.storage)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}

	if s.seed {
		if err := s.seedDemo(ctx); err != nil {
			s.closeStore(ctx)
			return err
		}
	}

	snaps, err := snapshot.New(s.snapshotDir, snapshot.WithMaxBytes(s.maxUploadBytes))
	if err != nil {
		s.closeStore(ctx)
		return fmt.Errorf("snapshot store: %w", err)
	}
	s.snapshots = snaps

	s.tracker = cooldown.NewInMemoryTracker(
		cooldown.WithWindow(s.cooldownWindow),
		cooldown.WithMaxSize(s.cooldownMaxEntries),
	)
	s.engine = decision.New(s.tracker, s.store, s.store, s.store,
		decision.WithSnapshots(snaps),
		decision.WithClock(s.clock),
	)
	s.feed = attendance.NewFeed(s.store, s.store)

	var pub worker.Publisher = publisher.NewLog(nil)
	if len(s.brokers) > 0 {
		k, err := publisher.NewKafka(s.brokers,
			publisher.WithTopic(s.topic),
			publisher.WithClientID(s.kafkaClientID),
			publisher.WithProduceTimeout(s.produceTimeout),
			publisher.WithCircuitBreaker(s.breakerThreshold, s.breakerCooldown),
			publisher.WithKafkaLogger(s.logger.Named("kafka")),
		)
		if err != nil {
			s.closeStore(ctx)
			return fmt.Errorf("kafka publisher: %w", err)
		}
		s.kafka = k
		pub = k
	}

	s.audit = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.audit, pub)
	// The pool outlives the start request; Stop drains it.
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "access service started",
		logger.String("publisher", pub.Name()),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("cooldown", s.cooldownWindow),
	)
	return nil
}

// Stop drains the audit pipeline and closes storage.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(ctx, "stopping access service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "audit pipeline did not drain", logger.Error(err))
	}
	if s.kafka != nil {
		_ = s.kafka.Close(ctx)
	}
	s.closeStore(ctx)

	s.started = false
	s.logger.Info(ctx, "access service stopped")
}

func (s *Service) closeStore(ctx context.Context) {
	if !s.ownsStore || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "close store", logger.Error(err))
	}
	s.store = nil
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// CheckAttendance decides a reader tap. image may be nil.
func (s *Service) CheckAttendance(ctx context.Context, uid, gate string, image io.Reader) (decision.Verdict, error) {
	if !s.running() {
		return decision.Verdict{}, ErrNotStarted
	}

	tap := decision.Tap{CredentialID: uid, Gate: gate}
	if image != nil {
		token, err := s.snapshots.Stage(ctx, image)
		switch {
		case errors.Is(err, snapshot.ErrEmpty):
		case err != nil:
			// Still a decision: the gate gets an ERROR and the log one entry.
			tap.Fault = fmt.Errorf("stage snapshot: %w", err)
		default:
			tap.Snapshot = token
		}
	}
	return s.decide(ctx, tap)
}

// DetectGate decides a tap reported without an image.
func (s *Service) DetectGate(ctx context.Context, uid, gate string) (decision.Verdict, error) {
	if !s.running() {
		return decision.Verdict{}, ErrNotStarted
	}
	return s.decide(ctx, decision.Tap{CredentialID: uid, Gate: gate})
}

func (s *Service) decide(ctx context.Context, tap decision.Tap) (decision.Verdict, error) {
	v, err := s.engine.Decide(ctx, tap)
	if err != nil {
		// The verdict is still an ERROR the reader can show; nothing was stored to publish.
		return v, nil
	}
	if !s.audit.Enqueue(ctx, v.Entry) {
		s.logger.Warn(ctx, "audit queue full, entry not published",
			logger.String("entry_id", v.Entry.ID),
		)
	}
	return v, nil
}

// Latest returns the most recent decision at gate.
func (s *Service) Latest(ctx context.Context, gate string) (model.Status, bool, error) {
	if !s.running() {
		return model.Status{}, false, ErrNotStarted
	}
	return s.feed.Latest(ctx, gate)
}

// History returns recent decisions at gate, newest first.
func (s *Service) History(ctx context.Context, gate string, limit int) ([]model.Status, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.feed.Recent(ctx, gate, limit)
}

// ListEvents returns all events, newest first.
func (s *Service) ListEvents(ctx context.Context) ([]model.Event, error) {
	if !s.running() {
		return nil, ErrNotStarted
	}
	return s.store.ListEvents(ctx)
}

// CreateEvent stores an event and binds students to its venue.
func (s *Service) CreateEvent(ctx context.Context, d events.Draft, students []roster.Pair) (model.Event, int, error) {
	if !s.running() {
		return model.Event{}, 0, ErrNotStarted
	}

	ev, err := events.Build(d, time.UnixMilli(s.clock().UnixMilli()), s.defaultEventDuration)
	if err != nil {
		return model.Event{}, 0, err
	}

	var ids []model.Identity
	if len(students) > 0 {
		if ids, err = roster.Prepare(ev.Venue, students); err != nil {
			return model.Event{}, 0, err
		}
	}

	ev, err = s.store.CreateEvent(ctx, ev)
	if err != nil {
		return model.Event{}, 0, fmt.Errorf("create event: %w", err)
	}
	metrics.RecordEventCreated()

	n, err := s.store.UpsertIdentities(ctx, ids)
	if err != nil {
		return ev, 0, fmt.Errorf("upsert roster for event %d: %w", ev.ID, err)
	}
	metrics.RecordRosterUpserts(n)

	s.logger.Info(ctx, "event created",
		logger.Int64("id", ev.ID),
		logger.String("title", ev.Title),
		logger.String("venue", ev.Venue),
		logger.Int("students", n),
	)
	return ev, n, nil
}

// ImportRoster upserts uid,name CSV rows bound to venue.
func (s *Service) ImportRoster(ctx context.Context, venue string, r io.Reader) (int, error) {
	if !s.running() {
		return 0, ErrNotStarted
	}

	pairs, err := roster.ParseCSV(r)
	if err != nil {
		return 0, err
	}
	ids, err := roster.Prepare(venue, pairs)
	if err != nil {
		return 0, err
	}
	n, err := s.store.UpsertIdentities(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("upsert roster: %w", err)
	}
	metrics.RecordRosterUpserts(n)

	s.logger.Info(ctx, "roster imported", logger.String("venue", venue), logger.Int("identities", n))
	return n, nil
}

// SnapshotHandler serves kept images.
func (s *Service) SnapshotHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		snaps := s.snapshots
		s.mu.RUnlock()
		if snaps == nil {
			http.NotFound(w, r)
			return
		}
		snaps.Handler().ServeHTTP(w, r)
	})
}

// MaxUploadBytes bounds a single image upload.
func (s *Service) MaxUploadBytes() int64 { return s.maxUploadBytes }

// PruneCooldown drops expired cooldown entries.
func (s *Service) PruneCooldown(ctx context.Context) int {
	if !s.running() {
		return 0
	}
	return s.engine.PruneCooldown(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"storageDriver":    s.storage.Driver,
		"workerCount":      s.workerCount,
		"queueCapacity":    s.queueSize,
		"cooldownWindowMs": s.cooldownWindow.Milliseconds(),
	}
	if !s.started {
		return stats
	}

	stats["queueLength"] = s.audit.Len(ctx)
	stats["cooldownTracked"] = s.engine.CooldownSize()
	if n, err := s.store.CountIdentities(ctx); err == nil {
		stats["identities"] = n
	}
	if n, err := s.store.CountEntries(ctx); err == nil {
		stats["attendanceEntries"] = n
	}
	if evs, err := s.store.ListEvents(ctx); err == nil {
		stats["events"] = len(evs)
	}
	metrics.UpdateCooldownTracked(int(s.engine.CooldownSize()))
	return stats
}
