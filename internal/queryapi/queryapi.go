// Package queryapi exposes the verified-route store read-only over
// HTTP: the full binding set, per-callsign lookups and the current
// candidate-set contents for a flight key.
package queryapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/avbind/flightbind/internal/store"
)

// ListBindings returns every currently stored verified binding.
func ListBindings(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st.AllBindings())
	}
}

// BindingsByCallsign returns every binding recorded for the {callsign}
// path parameter, across every route it has been verified against.
func BindingsByCallsign(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callsign := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "callsign")))
		if callsign == "" {
			http.Error(w, "callsign is required", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st.BindingsByCallsign(callsign))
	}
}

// candidateSets is the read-only view of a flight key's cross-cycle
// candidate state, surfaced for operational review.
type candidateSets struct {
	Candidates       []string `json:"candidates"`
	FailedCandidates []string `json:"failed_candidates"`
}

// Candidates returns the current (unexpired) candidate and
// failed-candidate sets for the {key} path parameter
// (IATA_FlightNumber_Route).
func Candidates(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if key == "" {
			http.Error(w, "key is required", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(candidateSets{
			Candidates:       setKeys(st.Candidates(key)),
			FailedCandidates: setKeys(st.FailedCandidates(key)),
		})
	}
}

func setKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
