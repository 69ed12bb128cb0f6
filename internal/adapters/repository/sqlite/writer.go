package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/hallpass/pkg/metrics"
)

type txFn func(ctx context.Context, tx *sql.Tx) error

type job struct {
	ctx context.Context
	op  string
	fn  txFn
	ch  chan error
}

// writer runs every write transaction on one goroutine so appends commit in
// arrival order and SQLite never sees competing writers.
type writer struct {
	db     *sql.DB
	tracer trace.Tracer

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

func newWriter(db *sql.DB, tracer trace.Tracer, queue int) *writer {
	w := &writer{
		db:     db,
		tracer: tracer,
		jobs:   make(chan job, queue),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

// close stops accepting jobs and waits for queued ones to finish.
func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()
	<-w.done
}

// do runs fn in its own transaction. ctx only bounds the wait for a queue
// slot: once a job is accepted it runs to completion and do reports its real
// result, so callers never see an error for a write that committed.
func (w *writer) do(ctx context.Context, op string, fn txFn) error {
	ch := make(chan error, 1)

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrClosed
	}
	select {
	case w.jobs <- job{ctx: ctx, op: op, fn: fn, ch: ch}:
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	w.mu.RUnlock()

	return <-ch
}

func (w *writer) loop() {
	defer close(w.done)

	for j := range w.jobs {
		j.ch <- w.run(j)
	}
}

func (w *writer) run(j job) error {
	ctx, span := w.tracer.Start(context.WithoutCancel(j.ctx), "sqlite."+j.op, trace.WithAttributes(attribute.String("db.system", "sqlite")))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordRepositoryWriteLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	err := func() error {
		tx, err := w.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := j.fn(ctx, tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	}()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordErrorByComponent("sqlite", j.op)
	}
	return err
}
