package diagnostics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avbind/flightbind/internal/matcher"
	"github.com/avbind/flightbind/internal/model"
)

func TestRecorderCapsRetainedMarkers(t *testing.T) {
	r := NewRecorder(2)
	for i := 0; i < 5; i++ {
		r.Ambiguous(matcher.AmbiguousMarker{FlightKey: "k", Route: model.Route{"EDDF", "EGLL"}, At: time.Now()})
	}
	if got := len(r.Snapshot()); got != 2 {
		t.Fatalf("expected capacity of 2 markers retained, got %d", got)
	}
}

func TestHandlerServesJSON(t *testing.T) {
	r := NewRecorder(10)
	r.Ambiguous(matcher.AmbiguousMarker{FlightKey: "LH_400_EDDF-EGLL", Route: model.Route{"EDDF", "EGLL"}})

	req := httptest.NewRequest(http.MethodGet, "/diagnostics/ambiguous", nil)
	w := httptest.NewRecorder()
	r.Handler(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
