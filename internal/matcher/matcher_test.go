package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/avbind/flightbind/internal/model"
	"github.com/avbind/flightbind/internal/refdata"
	"github.com/avbind/flightbind/internal/routecheck"
	"github.com/avbind/flightbind/internal/store"
)

func testDirectory() *refdata.Directory {
	d := refdata.NewDirectory()
	d.AddAirport(model.AirportRef{ICAO: "EDDF", Lat: 50.0379, Lon: 8.5622})
	d.AddAirport(model.AirportRef{ICAO: "EGLL", Lat: 51.4700, Lon: -0.4543})
	return d
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:", store.DefaultPolicy(6*time.Hour))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func directObservation(dir *refdata.Directory) model.Observation {
	a, _ := dir.Airport("EDDF")
	b, _ := dir.Airport("EGLL")
	midLat := (a.Lat + b.Lat) / 2
	midLon := (a.Lon + b.Lon) / 2
	return model.Observation{Lat: midLat, Lon: midLon, Heading: 280, OnGround: false, Operator: "DLH"}
}

// A direct snapshot hit that passes the route check is bound at tier 5.
func TestRunFlightDirectHitBindsTierDirect(t *testing.T) {
	dir := testDirectory()
	st := openTestStore(t)
	m := New(routecheck.New(dir), st, nil, nil, DefaultConfig())
	m.Now = func() time.Time { return time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC) }

	f := model.ScheduledFlight{OperatorICAO: "DLH", OperatorIATA: "LH", FlightNumber: 400, Route: model.Route{"EDDF", "EGLL"}}
	snap := model.Snapshot{Positions: map[string]model.Observation{"DLH400": directObservation(dir)}}

	m.Run(context.Background(), snap, flightSource{flights: []model.ScheduledFlight{f}})

	b, ok := st.Get("DLH400", f.Route)
	if !ok {
		t.Fatalf("expected a binding to be written")
	}
	if b.Tier != model.TierDirect {
		t.Fatalf("expected tier %d, got %d", model.TierDirect, b.Tier)
	}
}

// A flight whose assumed callsign is in the recent-bindings set (but not
// in the snapshot) is skipped before search mode: no candidates accumulate
// even though another same-operator aircraft is plausibly on the route.
func TestRunFlightRecentCallsignSkipped(t *testing.T) {
	dir := testDirectory()
	st := openTestStore(t)
	m := New(routecheck.New(dir), st, nil, nil, DefaultConfig())
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m.Now = func() time.Time { return now }

	dep := now.Add(-1 * time.Hour)
	arr := now.Add(1 * time.Hour)
	f := model.ScheduledFlight{
		OperatorICAO: "DLH", OperatorIATA: "LH", FlightNumber: 400,
		Route:     model.Route{"EDDF", "EGLL"},
		Departure: &dep, Arrival: &arr,
	}
	if _, err := st.Put(model.VerifiedBinding{Callsign: "DLH400", Route: model.Route{"EDDF", "LFPG"}, Tier: model.TierDirect, UpdatedAt: now}, false); err != nil {
		t.Fatalf("seed binding: %v", err)
	}

	snap := model.Snapshot{Positions: map[string]model.Observation{"DLH9876": directObservation(dir)}}
	m.Run(context.Background(), snap, flightSource{flights: []model.ScheduledFlight{f}})

	flightKey := model.FlightKey("LH", 400, f.Route)
	if got := st.Candidates(flightKey); len(got) != 0 {
		t.Fatalf("expected search mode not to run for a recently bound flight, got candidates %v", got)
	}
	if _, ok := st.Get("DLH9876", f.Route); ok {
		t.Fatalf("expected no binding for the skipped flight's route")
	}
}

// Search mode: an observation matching the operator prefix, not a direct
// hit, geometrically plausible and close to expected time-progress becomes
// a candidate; with no oracle configured a single first-set survivor binds
// at tier 1.
func TestRunFlightSearchModeResolvesSingleCandidate(t *testing.T) {
	dir := testDirectory()
	st := openTestStore(t)
	m := New(routecheck.New(dir), st, nil, nil, DefaultConfig())
	now := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	m.Now = func() time.Time { return now }

	dep := now.Add(-1 * time.Hour)
	arr := now.Add(1 * time.Hour)
	f := model.ScheduledFlight{
		OperatorICAO: "DLH", OperatorIATA: "LH", FlightNumber: 401,
		Route:     model.Route{"EDDF", "EGLL"},
		Departure: &dep, Arrival: &arr,
	}
	obs := directObservation(dir)
	obs.Operator = "DLH"
	snap := model.Snapshot{Positions: map[string]model.Observation{"DLH9876": obs}}

	m.Run(context.Background(), snap, flightSource{flights: []model.ScheduledFlight{f}})

	flightKey := model.FlightKey("LH", 401, f.Route)
	candidates := st.Candidates(flightKey)
	if !candidates["DLH9876"] {
		t.Fatalf("expected DLH9876 to be recorded as a candidate, got %v", candidates)
	}
	b, ok := st.Get("DLH9876", f.Route)
	if !ok {
		t.Fatalf("expected the single surviving candidate to be bound")
	}
	if b.Tier != model.TierHighConfidence {
		t.Fatalf("expected tier %d, got %d", model.TierHighConfidence, b.Tier)
	}
}

// flightSource is a minimal sources.Source stub returning a fixed flight list.
type flightSource struct {
	flights []model.ScheduledFlight
}

func (s flightSource) SourceLabel() string { return "test" }
func (s flightSource) GetActiveFlights(t time.Time) []model.ScheduledFlight {
	return s.flights
}
func (s flightSource) GetFlightsOfDay(d time.Time) []model.ScheduledFlight { return s.flights }
func (s flightSource) GetSupportedAirlines() []string                     { return []string{"DLH"} }
