package api

import (
	"context"
	"io"
	"net/http"
)

const maxRosterBody = 4 << 20

// RosterDependencies defines the interface for roster import.
type RosterDependencies interface {
	ImportRoster(ctx context.Context, venue string, r io.Reader) (int, error)
}

// RosterHandler handles roster uploads.
type RosterHandler struct {
	deps RosterDependencies
}

// NewRosterHandler creates a new roster handler.
func NewRosterHandler(deps RosterDependencies) *RosterHandler {
	return &RosterHandler{deps: deps}
}

type importResponse struct {
	Success bool   `json:"success"`
	Venue   string `json:"venue"`
	Count   int    `json:"count"`
}

// HandleImport handles POST /api/roster/import?venue=V requests with a
// uid,name CSV body.
func (h *RosterHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	const op = "api.roster_import"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	venue := r.URL.Query().Get("venue")
	r.Body = http.MaxBytesReader(w, r.Body, maxRosterBody)

	n, err := h.deps.ImportRoster(r.Context(), venue, r.Body)
	if err != nil {
		writeServiceError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Success: true, Venue: venue, Count: n})
}
