package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/hallpass/internal/domain/decision"
	"github.com/okian/hallpass/internal/domain/model"
)

const (
	// multipartMemory is how much of a multipart form is held in memory before
	// spilling to temporary files.
	multipartMemory = 1 << 20
	// formOverhead allows for the non-image multipart fields and boundaries.
	formOverhead = 64 << 10
	maxJSONBody  = 64 << 10
)

// AttendanceHandler handles gate taps and the per-gate feed.
type AttendanceHandler struct {
	deps AttendanceDependencies
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(deps AttendanceDependencies) *AttendanceHandler {
	return &AttendanceHandler{deps: deps}
}

// decisionResponse is returned to readers for every verdict, ERROR included.
type decisionResponse struct {
	Status    model.Outcome `json:"status"`
	Message   string        `json:"message"`
	TapType   model.TapType `json:"tap_type"`
	Timestamp time.Time     `json:"timestamp"`
}

func newDecisionResponse(v decision.Verdict) decisionResponse { //nolint:gocritic // hugeParam: verdicts travel by value
	return decisionResponse{
		Status:    v.Outcome,
		Message:   v.Reason,
		TapType:   v.TapType,
		Timestamp: v.Entry.Timestamp,
	}
}

// statusResponse is one feed item as the viewer reads it.
type statusResponse struct {
	UID         string        `json:"uid"`
	Name        string        `json:"name"`
	PhotoURL    *string       `json:"photo_url"`
	Status      model.Outcome `json:"status"`
	Reason      string        `json:"reason"`
	TapType     model.TapType `json:"tap_type"`
	Timestamp   time.Time     `json:"timestamp"`
	SnapshotURL string        `json:"snapshot_url,omitempty"`
}

func newStatusResponse(s model.Status) statusResponse { //nolint:gocritic // hugeParam: statuses travel by value
	out := statusResponse{
		UID:         s.CredentialID,
		Name:        s.DisplayName,
		Status:      s.Outcome,
		Reason:      s.Reason,
		TapType:     s.TapType,
		Timestamp:   s.Timestamp,
		SnapshotURL: s.SnapshotRef,
	}
	if out.Name == "" {
		out.Name = "Unknown"
	}
	if s.PhotoRef != "" {
		photo := s.PhotoRef
		out.PhotoURL = &photo
	}
	return out
}

// HandleCheck handles POST /api/attendance_check requests.
// The body is a multipart form with uid, current_bssid and an optional image.
func (h *AttendanceHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	const op = "api.attendance_check"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadBytes()+formOverhead)
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		writeServiceError(ctx, w, op, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	var image io.Reader
	if r.MultipartForm != nil {
		f, _, ferr := r.FormFile("image")
		switch {
		case errors.Is(ferr, http.ErrMissingFile):
		case ferr != nil:
			writeServiceError(ctx, w, op, fmt.Errorf("%w: %w", ErrBadRequest, ferr))
			return
		default:
			defer func() { _ = f.Close() }()
			image = f
		}
	}

	v, err := h.deps.CheckAttendance(ctx, r.FormValue("uid"), r.FormValue("current_bssid"), image)
	if err != nil {
		writeServiceError(ctx, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newDecisionResponse(v))
}

type gateDetectionRequest struct {
	UID    string `json:"uid"`
	GateID string `json:"gate_id"`
}

// HandleGateDetection handles POST /api/gate_detection requests.
// JSON bodies are preferred; form encoding is also accepted.
func (h *AttendanceHandler) HandleGateDetection(w http.ResponseWriter, r *http.Request) {
	const op = "api.gate_detection"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var req gateDetectionRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeServiceError(ctx, w, op, fmt.Errorf("%w: %w", ErrBadRequest, err))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeServiceError(ctx, w, op, fmt.Errorf("%w: %w", ErrBadRequest, err))
			return
		}
		req.UID, req.GateID = r.PostFormValue("uid"), r.PostFormValue("gate_id")
	}

	v, err := h.deps.DetectGate(ctx, req.UID, req.GateID)
	if err != nil {
		writeServiceError(ctx, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newDecisionResponse(v))
}

// HandleLatest handles GET /api/attendance/latest?gate_id=G requests.
// It answers null until the gate has a decision.
func (h *AttendanceHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	const op = "api.attendance_latest"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	gate := strings.TrimSpace(r.URL.Query().Get("gate_id"))
	if gate == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrMissingField, errors.New("gate_id")))
		return
	}

	st, ok, err := h.deps.Latest(r.Context(), gate)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(st))
}

// HandleHistory handles GET /api/attendance/history?gate_id=G&limit=N requests.
func (h *AttendanceHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.attendance_history"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	gate := strings.TrimSpace(q.Get("gate_id"))
	if gate == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrMissingField, errors.New("gate_id")))
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("invalid limit")))
			return
		}
		limit = n
	}

	items, err := h.deps.History(r.Context(), gate, limit)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	out := make([]statusResponse, 0, len(items))
	for _, it := range items {
		out = append(out, newStatusResponse(it))
	}
	writeJSON(w, http.StatusOK, out)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
