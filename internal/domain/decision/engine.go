// Package decision turns a gate tap into an admit or deny verdict and records
// it in the attendance log.
package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/hallpass/internal/domain/attendance"
	"github.com/okian/hallpass/internal/domain/cooldown"
	"github.com/okian/hallpass/internal/domain/events"
	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/internal/domain/roster"
	"github.com/okian/hallpass/internal/domain/window"
	"github.com/okian/hallpass/pkg/logger"
	"github.com/okian/hallpass/pkg/metrics"
)

const tracerName = "github.com/okian/hallpass/internal/domain/decision"

// Tap is one credential presentation at a gate.
type Tap struct {
	CredentialID string
	Gate         string
	// Snapshot is a staged image token from the snapshot store, or "" when the
	// reader sent no image.
	Snapshot string
	// Fault is a failure met before the tap reached the engine, such as an
	// image that could not be staged. A non-nil Fault is recorded as ERROR.
	Fault error
}

// Verdict is the decision returned to the gate.
type Verdict struct {
	Outcome  model.Outcome
	Reason   string
	TapType  model.TapType
	Identity *model.Identity
	Entry    model.LogEntry
}

// Admitted reports whether the verdict let the holder through.
func (v Verdict) Admitted() bool { return v.Outcome == model.OutcomeVerified }

// Snapshots retains or discards staged tap images.
type Snapshots interface {
	// Keep moves a staged image to its permanent name for (credentialID, ts)
	// and returns the reference it is served under.
	Keep(ctx context.Context, staged, credentialID string, ts time.Time) (string, error)
	// Discard drops a staged image. Missing images are ignored.
	Discard(ctx context.Context, staged string)
	// Remove deletes a kept image by reference.
	Remove(ctx context.Context, ref string)
}

// Engine evaluates taps. Decisions for the same credential are serialized so
// at most one admit lands inside a cooldown window.
type Engine struct {
	cooldown  cooldown.Tracker
	roster    *roster.Lookup
	events    *events.Resolver
	log       attendance.Log
	snapshots Snapshots

	locks  *keyLock
	clock  func() time.Time
	newID  func() string
	logger logger.Logger
	tracer trace.Tracer
}

// New builds an engine over its collaborators.
func New(tracker cooldown.Tracker, rosterStore roster.Store, eventStore events.Store, log attendance.Log, opts ...Option) *Engine {
	e := &Engine{
		cooldown: tracker,
		roster:   roster.NewLookup(rosterStore),
		events:   events.NewResolver(eventStore),
		log:      log,
		locks:    newKeyLock(),
		clock:    time.Now,
		newID:    uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logger.Get().Named("decision")
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// now is truncated to the millisecond, the resolution the log stores.
func (e *Engine) now() time.Time {
	return time.UnixMilli(e.clock().UnixMilli())
}

// Decide runs the ordered check chain for tap and appends exactly one log
// entry. The returned verdict is always usable; err is non-nil only when the
// entry could not be recorded, in which case the verdict is ERROR.
func (e *Engine) Decide(ctx context.Context, tap Tap) (Verdict, error) {
	started := time.Now()
	cred := roster.NormalizeCredential(tap.CredentialID)
	gate := strings.TrimSpace(tap.Gate)

	// Once started, a decision runs to a recorded answer even if the caller
	// goes away; otherwise the stored entry and the verdict could disagree.
	ctx, span := e.tracer.Start(context.WithoutCancel(ctx), "decision.Decide", trace.WithAttributes(
		attribute.String("hallpass.gate", gate),
		attribute.Bool("hallpass.snapshot", tap.Snapshot != ""),
	))
	defer span.End()

	var (
		v   Verdict
		err error
	)
	if cred == "" || gate == "" {
		v, err = e.deny(ctx, cred, gate, e.now(), tap.Snapshot, model.ReasonReadError)
	} else {
		unlock := e.locks.Lock(cred)
		if tap.Fault != nil {
			v, err = e.fail(ctx, cred, gate, e.now(), tap.Snapshot, tap.Fault)
		} else {
			v, err = e.decideLocked(ctx, cred, gate, tap.Snapshot)
		}
		unlock()
	}

	span.SetAttributes(
		attribute.String("hallpass.outcome", string(v.Outcome)),
		attribute.String("hallpass.reason", v.Reason),
	)
	if v.Outcome == model.OutcomeError {
		span.SetStatus(codes.Error, v.Reason)
	}
	if err != nil {
		span.RecordError(err)
	}

	metrics.RecordDecision(string(v.Outcome), reasonLabel(v))
	metrics.RecordDecisionLatency(float64(time.Since(started).Microseconds()) / 1000)
	return v, err
}

// decideLocked must run while holding cred's lock.
func (e *Engine) decideLocked(ctx context.Context, cred, gate, snapshot string) (Verdict, error) {
	now := e.now()

	if e.cooldown.Blocked(ctx, cred, now) {
		metrics.RecordCooldownHit()
		return e.deny(ctx, cred, gate, now, snapshot, model.ReasonDoubleScan)
	}

	ident, found, err := e.roster.Resolve(ctx, cred)
	if err != nil {
		return e.fail(ctx, cred, gate, now, snapshot, err)
	}
	if !found {
		return e.deny(ctx, cred, gate, now, snapshot, model.ReasonUnregistered)
	}

	ev, found, err := e.events.Active(ctx, gate)
	if err != nil {
		return e.fail(ctx, cred, gate, now, snapshot, err)
	}
	if !found {
		return e.deny(ctx, cred, gate, now, snapshot, model.ReasonNoEvent)
	}

	if reason := window.Check(ev, now); reason != "" {
		return e.deny(ctx, cred, gate, now, snapshot, reason)
	}

	if gate != ident.AssignedVenue {
		return e.deny(ctx, cred, gate, now, snapshot, model.ReasonWrongHall)
	}

	return e.admit(ctx, ident, gate, now, snapshot)
}

func (e *Engine) admit(ctx context.Context, ident model.Identity, gate string, now time.Time, snapshot string) (Verdict, error) {
	next, tapType := ident.Presence.Toggle()
	entry := model.LogEntry{
		ID:           e.newID(),
		CredentialID: ident.CredentialID,
		Outcome:      model.OutcomeVerified,
		Reason:       model.ReasonGranted,
		TapType:      tapType,
		Gate:         gate,
		Timestamp:    now,
	}

	if snapshot != "" && e.snapshots != nil {
		ref, err := e.snapshots.Keep(ctx, snapshot, ident.CredentialID, now)
		if err != nil {
			return e.fail(ctx, ident.CredentialID, gate, now, snapshot, fmt.Errorf("keep snapshot: %w", err))
		}
		entry.SnapshotRef = ref
		metrics.RecordSnapshot("retained")
	}

	if err := e.log.AppendAdmit(ctx, entry, next); err != nil {
		metrics.RecordAttendanceAppendError()
		if entry.SnapshotRef != "" {
			e.snapshots.Remove(ctx, entry.SnapshotRef)
		}
		return e.fail(ctx, ident.CredentialID, gate, now, "", err)
	}
	metrics.RecordAttendanceAppend()

	// Armed only once the admit is durable.
	e.cooldown.Arm(ctx, ident.CredentialID, now)

	ident.Presence = next
	e.logger.Info(ctx, "access granted",
		logger.String("uid", ident.CredentialID),
		logger.String("gate", gate),
		logger.String("tap_type", string(tapType)),
	)
	return Verdict{
		Outcome:  model.OutcomeVerified,
		Reason:   model.ReasonGranted,
		TapType:  tapType,
		Identity: &ident,
		Entry:    entry,
	}, nil
}

func (e *Engine) deny(ctx context.Context, cred, gate string, now time.Time, snapshot, reason string) (Verdict, error) {
	e.discard(ctx, snapshot)
	entry := model.LogEntry{
		ID:           e.newID(),
		CredentialID: cred,
		Outcome:      model.OutcomeDenied,
		Reason:       reason,
		TapType:      model.TapDenied,
		Gate:         gate,
		Timestamp:    now,
	}
	if err := e.log.Append(ctx, entry); err != nil {
		metrics.RecordAttendanceAppendError()
		return e.unrecorded(ctx, entry, err)
	}
	metrics.RecordAttendanceAppend()

	e.logger.Info(ctx, "access denied",
		logger.String("uid", cred),
		logger.String("gate", gate),
		logger.String("reason", reason),
	)
	return Verdict{Outcome: model.OutcomeDenied, Reason: reason, TapType: model.TapDenied, Entry: entry}, nil
}

// fail records a storage or snapshot fault as an ERROR entry.
func (e *Engine) fail(ctx context.Context, cred, gate string, now time.Time, snapshot string, cause error) (Verdict, error) {
	e.discard(ctx, snapshot)
	metrics.RecordErrorByComponent("decision", "system_error")
	e.logger.Error(ctx, "decision failed",
		logger.String("uid", cred),
		logger.String("gate", gate),
		logger.Error(cause),
	)

	entry := model.LogEntry{
		ID:           e.newID(),
		CredentialID: cred,
		Outcome:      model.OutcomeError,
		Reason:       cause.Error(),
		TapType:      model.TapDenied,
		Gate:         gate,
		Timestamp:    now,
	}
	if err := e.log.Append(ctx, entry); err != nil {
		metrics.RecordAttendanceAppendError()
		return e.unrecorded(ctx, entry, err)
	}
	metrics.RecordAttendanceAppend()
	return Verdict{Outcome: model.OutcomeError, Reason: entry.Reason, TapType: model.TapDenied, Entry: entry}, nil
}

// unrecorded reports a decision whose log entry could not be stored.
func (e *Engine) unrecorded(ctx context.Context, entry model.LogEntry, err error) (Verdict, error) {
	err = fmt.Errorf("append attendance entry: %w", err)
	e.logger.Error(ctx, "attendance entry lost",
		logger.String("uid", entry.CredentialID),
		logger.String("gate", entry.Gate),
		logger.String("intended_reason", entry.Reason),
		logger.Error(err),
	)
	entry.Outcome = model.OutcomeError
	entry.Reason = err.Error()
	entry.TapType = model.TapDenied
	entry.SnapshotRef = ""
	return Verdict{Outcome: model.OutcomeError, Reason: entry.Reason, TapType: model.TapDenied, Entry: entry}, err
}

func (e *Engine) discard(ctx context.Context, snapshot string) {
	if snapshot == "" || e.snapshots == nil {
		return
	}
	e.snapshots.Discard(ctx, snapshot)
	metrics.RecordSnapshot("discarded")
}

// reasonLabel keeps metric cardinality bounded: error texts are free-form.
func reasonLabel(v Verdict) string {
	if v.Outcome == model.OutcomeError {
		return "system_error"
	}
	return v.Reason
}

// CooldownSize returns how many credentials are currently tracked.
func (e *Engine) CooldownSize() int64 {
	return e.cooldown.Size()
}

// PruneCooldown drops expired cooldown entries.
func (e *Engine) PruneCooldown(ctx context.Context) int {
	n := e.cooldown.Prune(ctx, e.now())
	metrics.UpdateCooldownTracked(int(e.cooldown.Size()))
	return n
}
