// Package site serves the embedded browser gate screen.
package site

import (
	"context"
	"errors"
	"net/http"
)

// Prefix is where the gate screen is mounted; the gate is chosen with ?gate=.
const Prefix = "/gate/"

// Error constants
var (
	ErrServe = errors.New("gate screen serve failed")
)

// Register attaches the gate screen routes to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle(Prefix, NewRootHandler())
}

// RootHandler serves the embedded gate screen files.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.StripPrefix(Prefix, http.FileServer(FS()))}
}

// ServeHTTP handles GET /gate/ requests.
func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	h.files.ServeHTTP(w, r)
}
