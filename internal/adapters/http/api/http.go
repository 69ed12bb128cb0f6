// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/hallpass/internal/adapters/snapshot"
	"github.com/okian/hallpass/internal/domain/decision"
	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/internal/domain/roster"
	"github.com/okian/hallpass/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AttendanceDependencies
	EventDependencies
	RosterDependencies

	// SnapshotHandler serves kept tap images under /live_scans/.
	SnapshotHandler() http.Handler
}

// AttendanceDependencies covers tap decisions and the gate feed.
type AttendanceDependencies interface {
	// CheckAttendance decides a tap. image may be nil.
	CheckAttendance(ctx context.Context, uid, gate string, image io.Reader) (decision.Verdict, error)
	DetectGate(ctx context.Context, uid, gate string) (decision.Verdict, error)
	Latest(ctx context.Context, gate string) (model.Status, bool, error)
	History(ctx context.Context, gate string, limit int) ([]model.Status, error)
	// MaxUploadBytes bounds a single image upload.
	MaxUploadBytes() int64
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	attendanceHandler *AttendanceHandler
	eventsHandler     *EventsHandler
	rosterHandler     *RosterHandler
	snapshots         http.Handler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		attendanceHandler: NewAttendanceHandler(deps),
		eventsHandler:     NewEventsHandler(deps),
		rosterHandler:     NewRosterHandler(deps),
		snapshots:         deps.SnapshotHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/api/attendance_check", MetricsMiddleware(s.attendanceHandler.HandleCheck, "attendance_check"))
	mux.HandleFunc("/api/gate_detection", MetricsMiddleware(s.attendanceHandler.HandleGateDetection, "gate_detection"))
	mux.HandleFunc("/api/attendance/latest", MetricsMiddleware(s.attendanceHandler.HandleLatest, "attendance_latest"))
	mux.HandleFunc("/api/attendance/history", MetricsMiddleware(s.attendanceHandler.HandleHistory, "attendance_history"))
	mux.HandleFunc("/api/events", MetricsMiddleware(s.eventsHandler.HandleEvents, "events"))
	mux.HandleFunc("/api/roster/import", MetricsMiddleware(s.rosterHandler.HandleImport, "roster_import"))

	mux.Handle(snapshot.URLPrefix, s.snapshots)

	logger.Get().Named("api").Debug(ctx, "api routes registered")
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isInvalidInput reports domain validation failures that map to 400.
func isInvalidInput(err error) bool {
	return errors.Is(err, ErrBadRequest) ||
		errors.Is(err, model.ErrInvalidEvent) ||
		errors.Is(err, roster.ErrMissingVenue) ||
		errors.Is(err, roster.ErrMissingUID) ||
		errors.Is(err, roster.ErrMalformedCSV)
}

// writeServiceError renders err from a dependency call with the matching status.
// 413 is only for bodies cut off by the transport limit, before any tap could
// be read; an oversized image inside an accepted body is an ERROR decision.
func writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		if !errors.Is(err, ErrPayloadTooLarge) {
			err = fmt.Errorf("%w: %w", ErrPayloadTooLarge, err)
		}
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", Wrap(op, err))
	case isInvalidInput(err):
		if !errors.Is(err, ErrBadRequest) {
			err = fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
	default:
		logger.Get().Named("api").Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", NewKind(op, ErrInternal))
	}
}
