// Package diagnostics holds read-only operational state surfaced over
// HTTP: ambiguous-match markers the matcher emits when candidate
// resolution fails to converge on a single callsign.
package diagnostics

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/avbind/flightbind/internal/matcher"
)

const defaultCapacity = 500

// Recorder keeps the most recent ambiguous markers in a bounded ring
// buffer and implements matcher.Diagnostics.
type Recorder struct {
	mu       sync.Mutex
	markers  []matcher.AmbiguousMarker
	capacity int
}

// NewRecorder builds a Recorder retaining at most capacity markers
// (0 or negative selects the default).
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Recorder{capacity: capacity}
}

// Ambiguous implements matcher.Diagnostics.
func (r *Recorder) Ambiguous(m matcher.AmbiguousMarker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers = append(r.markers, m)
	if over := len(r.markers) - r.capacity; over > 0 {
		r.markers = r.markers[over:]
	}
}

// Snapshot returns a copy of the currently retained markers, most
// recent last.
func (r *Recorder) Snapshot() []matcher.AmbiguousMarker {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]matcher.AmbiguousMarker, len(r.markers))
	copy(out, r.markers)
	return out
}

// Handler serves the current ambiguous-marker snapshot as JSON, for
// mounting under a read-only diagnostics API route.
func (r *Recorder) Handler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(r.Snapshot())
}
