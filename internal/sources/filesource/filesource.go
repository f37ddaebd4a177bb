// Package filesource is a minimal in-memory Source implementation used
// by tests and as the default binary's reference adapter: active-flight
// filtering, flights-of-day and supported-airlines over records kept in
// memory or loaded from a JSON fixture, standing in for the scraper
// adapters that poll real feeds.
package filesource

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/avbind/flightbind/internal/horizon"
	"github.com/avbind/flightbind/internal/model"
	"github.com/avbind/flightbind/internal/refdata"
	"github.com/avbind/flightbind/internal/routecheck"
)

// Source is a file/memory-backed schedule feed.
type Source struct {
	label   string
	engine  *routecheck.Engine
	mu      sync.RWMutex
	flights map[string]model.ScheduledFlight
}

// New creates an empty Source labeled `label`, using engine to resolve
// route lengths for the flight-horizon predicate.
func New(label string, engine *routecheck.Engine) *Source {
	return &Source{label: label, engine: engine, flights: map[string]model.ScheduledFlight{}}
}

// SourceLabel implements sources.Source.
func (s *Source) SourceLabel() string { return s.label }

// Upsert inserts or replaces a flight record, assigning a stable id if absent.
func (s *Source) Upsert(f model.ScheduledFlight) model.ScheduledFlight {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.Source = s.label
	s.flights[f.ID] = f
	return f
}

// GetActiveFlights implements sources.Source.
func (s *Source) GetActiveFlights(t time.Time) []model.ScheduledFlight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ScheduledFlight, 0, len(s.flights))
	for _, f := range s.flights {
		if !horizon.CoarsePrefilter(f, t) {
			continue
		}
		routeLen, ok := s.engine.RouteLength(f.Route)
		if !ok {
			continue
		}
		if horizon.Active(f, t, routeLen) {
			out = append(out, f)
		}
	}
	return out
}

// GetFlightsOfDay implements sources.Source.
func (s *Source) GetFlightsOfDay(day time.Time) []model.ScheduledFlight {
	begin := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := begin.Add(24 * time.Hour)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ScheduledFlight, 0)
	for _, f := range s.flights {
		inDay := func(t *time.Time) bool {
			return t != nil && !t.Before(begin) && t.Before(end)
		}
		if inDay(f.Departure) || inDay(f.Arrival) {
			out = append(out, f)
		}
	}
	return out
}

// flightRecord is the on-disk JSON shape for a ScheduledFlight: a
// "-"-joined route string and UTC second-timestamps for
// departure/arrival.
type flightRecord struct {
	ID           string `json:"id"`
	OperatorIATA string `json:"operator_iata"`
	OperatorICAO string `json:"operator_icao"`
	FlightNumber int    `json:"flight_number"`
	Route        string `json:"route"`
	Departure    *int64 `json:"departure"`
	Arrival      *int64 `json:"arrival"`
	Status       string `json:"status"`
	Cancelled    bool   `json:"cancelled"`
	Diverted     bool   `json:"diverted"`
	Redundant    bool   `json:"redundant"`
	Overlap      bool   `json:"overlap"`
}

// LoadFlights reads a JSON array of flightRecord objects from path and
// upserts each into the source, assigning stable ids where absent.
func (s *Source) LoadFlights(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var records []flightRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return 0, err
	}
	for _, r := range records {
		f := model.ScheduledFlight{
			ID:           r.ID,
			OperatorIATA: r.OperatorIATA,
			OperatorICAO: r.OperatorICAO,
			FlightNumber: r.FlightNumber,
			Route:        model.ParseRoute(r.Route),
			Status:       r.Status,
			Cancelled:    r.Cancelled,
			Diverted:     r.Diverted,
			Redundant:    r.Redundant,
			Overlap:      r.Overlap,
		}
		if r.Departure != nil {
			t := time.Unix(*r.Departure, 0).UTC()
			f.Departure = &t
		}
		if r.Arrival != nil {
			t := time.Unix(*r.Arrival, 0).UTC()
			f.Arrival = &t
		}
		// Feeds that speak only IATA get their operator ICAO resolved
		// through the reference directory, flight-number overrides included.
		if f.OperatorICAO == "" && f.OperatorIATA != "" {
			fn := r.FlightNumber
			if a, ok := s.engine.Directory.AirlineByIATA(f.OperatorIATA, refdata.AirlineHints{FlightNumber: &fn}); ok {
				f.OperatorICAO = a.ICAO
			}
		}
		s.Upsert(f)
	}
	return len(records), nil
}

// GetSupportedAirlines implements sources.Source.
func (s *Source) GetSupportedAirlines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	out := make([]string, 0)
	for _, f := range s.flights {
		if f.OperatorICAO != "" && !seen[f.OperatorICAO] {
			seen[f.OperatorICAO] = true
			out = append(out, f.OperatorICAO)
		}
	}
	return out
}

// LoadTranslationTable reads the externally maintained assumed->manual
// callsign override map from a JSON file of the form
// {"DLH400": "DLH4001"}.
func LoadTranslationTable(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	result := gjson.ParseBytes(b)
	result.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.String()
		return true
	})
	return out, nil
}

// FileRouteOracle answers "what route has this callsign historically
// flown" from a static JSON fixture `{"DLH400": "EDDF-EGLL"}`, standing
// in for real long-term route providers.
type FileRouteOracle struct {
	routes map[string]model.Route
}

// NewFileRouteOracle loads a route-oracle fixture from path.
func NewFileRouteOracle(path string) (*FileRouteOracle, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	routes := make(map[string]model.Route, len(raw))
	for k, v := range raw {
		routes[k] = model.ParseRoute(v)
	}
	return &FileRouteOracle{routes: routes}, nil
}

// GetFlightRoute implements the route-oracle interface.
func (o *FileRouteOracle) GetFlightRoute(callsign string) (model.Route, bool) {
	r, ok := o.routes[callsign]
	return r, ok
}
