package viewer

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// TextRenderer writes one line per view. It is safe for concurrent use, so
// several gates can share one terminal.
type TextRenderer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextRenderer returns a renderer writing to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

// Render writes v.
func (r *TextRenderer) Render(v View) { //nolint:gocritic // hugeParam: views travel by value
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.w, Format(v))
}

// Format renders v as a single line.
func Format(v View) string { //nolint:gocritic // hugeParam: views travel by value
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", v.Gate, v.Headline)
	switch v.Phase {
	case PhaseConfirmed:
		fmt.Fprintf(&b, " | %s (%s)", v.Name, v.UID)
		if v.TapType != "" {
			fmt.Fprintf(&b, " %s", v.TapType)
		}
		if v.PhotoURL != "" {
			fmt.Fprintf(&b, " photo=%s", v.PhotoURL)
		}
	case PhaseDenied:
		fmt.Fprintf(&b, " | %s", v.Reason)
	case PhaseIdle:
		fmt.Fprintf(&b, " | listening to %s...", v.Gate)
	}
	return b.String()
}
