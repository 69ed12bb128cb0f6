// Package sqlite stores identities, events and the attendance log in SQLite
// (modernc.org/sqlite, no cgo). Reads go straight to the pool; writes go
// through a single writer goroutine.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/pkg/metrics"
)

const (
	memoryPath        = ":memory:"
	defaultWriterJobs = 256
	pingTimeout       = 3 * time.Second
)

// Store implements the roster, event and attendance ports on SQLite.
type Store struct {
	db     *sql.DB
	writer *writer
	clock  func() time.Time
	tracer trace.Tracer
	jobs   int
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithClock sets the clock used for creation and update times.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithWriterQueue bounds the number of writes waiting for the writer.
func WithWriterQueue(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.jobs = n
		}
	}
}

// WithTracer sets the tracer used for write spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Open opens (creating if needed) the database at path and applies
// migrations. ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		clock:  time.Now,
		tracer: otel.Tracer("github.com/okian/hallpass/internal/adapters/repository/sqlite"),
		jobs:   defaultWriterJobs,
	}
	for _, opt := range opts {
		opt(s)
	}

	dsn, err := dsnFor(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// One connection: the writer and readers take turns, and an in-memory
	// database lives exactly as long as this pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.db = db
	s.writer = newWriter(db, s.tracer, s.jobs)
	return s, nil
}

func dsnFor(path string) (string, error) {
	const pragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

	if path == memoryPath {
		return fmt.Sprintf("file:hallpass-%s?mode=memory&cache=shared&%s", uuid.NewString(), pragmas), nil
	}
	if path == "" {
		path = "./data/hallpass.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir db dir: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", path, pragmas), nil
}

// Close drains pending writes and closes the database.
func (s *Store) Close() error {
	s.writer.close()
	return s.db.Close()
}

func (s *Store) nowMillis() int64 {
	return s.clock().UnixMilli()
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

// Roster.

func (s *Store) FindIdentity(ctx context.Context, credentialID string) (model.Identity, error) {
	defer observeQuery(time.Now())

	var (
		id       model.Identity
		presence string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT credential_id, display_name, assigned_venue, presence, photo_ref
		   FROM identities WHERE credential_id = ?`, credentialID,
	).Scan(&id.CredentialID, &id.DisplayName, &id.AssignedVenue, &presence, &id.PhotoRef)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Identity{}, fmt.Errorf("identity %s: %w", credentialID, model.ErrNotFound)
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("query identity %s: %w", credentialID, err)
	}
	id.Presence = model.Presence(presence)
	return id, nil
}

func (s *Store) SetPresence(ctx context.Context, credentialID string, presence model.Presence) error {
	return s.writer.do(ctx, "set_presence", func(ctx context.Context, tx *sql.Tx) error {
		return setPresence(ctx, tx, credentialID, presence, s.nowMillis())
	})
}

func setPresence(ctx context.Context, tx *sql.Tx, credentialID string, presence model.Presence, nowMs int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE identities SET presence = ?, updated_at_ms = ? WHERE credential_id = ?`,
		string(presence), nowMs, credentialID)
	if err != nil {
		return fmt.Errorf("update presence %s: %w", credentialID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update presence %s: %w", credentialID, err)
	}
	if n == 0 {
		return fmt.Errorf("identity %s: %w", credentialID, model.ErrNotFound)
	}
	return nil
}

func (s *Store) UpsertIdentities(ctx context.Context, ids []model.Identity) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	err := s.writer.do(ctx, "upsert_identities", func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO identities (credential_id, display_name, assigned_venue, presence, photo_ref, updated_at_ms)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (credential_id) DO UPDATE SET
			     display_name   = excluded.display_name,
			     assigned_venue = excluded.assigned_venue,
			     updated_at_ms  = excluded.updated_at_ms`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		now := s.nowMillis()
		for _, id := range ids {
			presence := id.Presence
			if presence == "" {
				presence = model.PresenceOut
			}
			photo := id.PhotoRef
			if photo == "" {
				photo = model.DefaultPhotoRef
			}
			if _, err := stmt.ExecContext(ctx, id.CredentialID, id.DisplayName, id.AssignedVenue, string(presence), photo, now); err != nil {
				return fmt.Errorf("upsert identity %s: %w", id.CredentialID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *Store) CountIdentities(ctx context.Context) (int, error) {
	defer observeQuery(time.Now())

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

// Events.

func (s *Store) CreateEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	ev.CreatedAt = time.UnixMilli(s.nowMillis())
	err := s.writer.do(ctx, "create_event", func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (title, venue, start_ms, end_ms, created_at_ms) VALUES (?, ?, ?, ?, ?)`,
			ev.Title, ev.Venue, ev.Start.UnixMilli(), ev.End.UnixMilli(), ev.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		ev.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return model.Event{}, err
	}
	ev.Start = time.UnixMilli(ev.Start.UnixMilli())
	ev.End = time.UnixMilli(ev.End.UnixMilli())
	return ev, nil
}

const eventColumns = `id, title, venue, start_ms, end_ms, created_at_ms`

func scanEvent(sc interface{ Scan(...any) error }) (model.Event, error) {
	var (
		ev                        model.Event
		startMs, endMs, createdMs int64
	)
	if err := sc.Scan(&ev.ID, &ev.Title, &ev.Venue, &startMs, &endMs, &createdMs); err != nil {
		return model.Event{}, err
	}
	ev.Start = time.UnixMilli(startMs)
	ev.End = time.UnixMilli(endMs)
	ev.CreatedAt = time.UnixMilli(createdMs)
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	defer observeQuery(time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at_ms DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) NewestEventForVenue(ctx context.Context, venue string) (model.Event, error) {
	defer observeQuery(time.Now())

	ev, err := scanEvent(s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE venue = ?
		  ORDER BY created_at_ms DESC, id DESC LIMIT 1`, venue))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, fmt.Errorf("event for venue %s: %w", venue, model.ErrNotFound)
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("query event for venue %s: %w", venue, err)
	}
	return ev, nil
}

// Attendance log.

func (s *Store) Append(ctx context.Context, entry model.LogEntry) error {
	return s.writer.do(ctx, "append", func(ctx context.Context, tx *sql.Tx) error {
		return insertEntry(ctx, tx, entry)
	})
}

func (s *Store) AppendAdmit(ctx context.Context, entry model.LogEntry, presence model.Presence) error {
	return s.writer.do(ctx, "append_admit", func(ctx context.Context, tx *sql.Tx) error {
		if err := setPresence(ctx, tx, entry.CredentialID, presence, entry.Timestamp.UnixMilli()); err != nil {
			return err
		}
		return insertEntry(ctx, tx, entry)
	})
}

func insertEntry(ctx context.Context, tx *sql.Tx, e model.LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO attendance_log (entry_id, credential_id, outcome, reason, tap_type, gate, ts_ms, snapshot_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CredentialID, string(e.Outcome), e.Reason, string(e.TapType), e.Gate, e.Timestamp.UnixMilli(), e.SnapshotRef)
	if err != nil {
		return fmt.Errorf("insert attendance entry: %w", err)
	}
	return nil
}

const entryColumns = `entry_id, credential_id, outcome, reason, tap_type, gate, ts_ms, snapshot_ref`

func scanEntry(sc interface{ Scan(...any) error }) (model.LogEntry, error) {
	var (
		e                model.LogEntry
		outcome, tapType string
		tsMs             int64
	)
	if err := sc.Scan(&e.ID, &e.CredentialID, &outcome, &e.Reason, &tapType, &e.Gate, &tsMs, &e.SnapshotRef); err != nil {
		return model.LogEntry{}, err
	}
	e.Outcome = model.Outcome(outcome)
	e.TapType = model.TapType(tapType)
	e.Timestamp = time.UnixMilli(tsMs)
	return e, nil
}

func (s *Store) LatestForGate(ctx context.Context, gate string) (model.LogEntry, error) {
	defer observeQuery(time.Now())

	e, err := scanEntry(s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM attendance_log WHERE gate = ?
		  ORDER BY ts_ms DESC, seq DESC LIMIT 1`, gate))
	if errors.Is(err, sql.ErrNoRows) {
		return model.LogEntry{}, fmt.Errorf("latest for gate %s: %w", gate, model.ErrNotFound)
	}
	if err != nil {
		return model.LogEntry{}, fmt.Errorf("query latest for gate %s: %w", gate, err)
	}
	return e, nil
}

func (s *Store) RecentForGate(ctx context.Context, gate string, limit int) ([]model.LogEntry, error) {
	defer observeQuery(time.Now())

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM attendance_log WHERE gate = ?
		  ORDER BY ts_ms DESC, seq DESC LIMIT ?`, gate, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent for gate %s: %w", gate, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.LogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountEntries(ctx context.Context) (int64, error) {
	defer observeQuery(time.Now())

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attendance entries: %w", err)
	}
	return n, nil
}
