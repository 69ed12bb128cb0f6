package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/hallpass/internal/domain/events"
	"github.com/okian/hallpass/internal/domain/model"
	"github.com/okian/hallpass/internal/domain/roster"
)

const maxEventBody = 4 << 20

// EventDependencies defines the interface for event management dependencies.
type EventDependencies interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	CreateEvent(ctx context.Context, d events.Draft, students []roster.Pair) (model.Event, int, error)
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// eventRequest mirrors the OpenAPI schema for POST /api/events.
type eventRequest struct {
	Title      string        `json:"title"`
	VenueBSSID string        `json:"venueBSSID"`
	StartTime  *time.Time    `json:"startTime,omitempty"`
	EndTime    *time.Time    `json:"endTime,omitempty"`
	Students   []roster.Pair `json:"students"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.Title) == "":
		return fmt.Errorf("%w: title", ErrMissingField)
	case strings.TrimSpace(e.VenueBSSID) == "":
		return fmt.Errorf("%w: venueBSSID", ErrMissingField)
	case e.Students == nil:
		return fmt.Errorf("%w: students", ErrMissingField)
	}
	return nil
}

func (e eventRequest) draft() events.Draft {
	d := events.Draft{Title: e.Title, Venue: e.VenueBSSID}
	if e.StartTime != nil {
		d.Start = *e.StartTime
	}
	if e.EndTime != nil {
		d.End = *e.EndTime
	}
	return d
}

type createEventResponse struct {
	Success bool        `json:"success"`
	Count   int         `json:"count"`
	Event   model.Event `json:"event"`
}

// HandleEvents handles GET and POST /api/events requests.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleCreate(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *EventsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	evs, err := h.deps.ListEvents(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	if evs == nil {
		evs = []model.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (h *EventsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_event"
	r.Body = http.MaxBytesReader(w, r.Body, maxEventBody)

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeServiceError(r.Context(), w, op, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	ev, n, err := h.deps.CreateEvent(r.Context(), req.draft(), req.Students)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, createEventResponse{Success: true, Count: n, Event: ev})
}
