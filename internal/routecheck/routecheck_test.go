package routecheck

import (
	"testing"

	"github.com/avbind/flightbind/internal/model"
	"github.com/avbind/flightbind/internal/refdata"
)

func testDirectory() *refdata.Directory {
	d := refdata.NewDirectory()
	d.AddAirport(model.AirportRef{ICAO: "EDDF", Lat: 50.0379, Lon: 8.5622})
	d.AddAirport(model.AirportRef{ICAO: "EGLL", Lat: 51.4700, Lon: -0.4543})
	d.AddAirport(model.AirportRef{ICAO: "LFPG", Lat: 49.0097, Lon: 2.5479})
	return d
}

// An on-ground observation sitting at the origin airport is plausible.
func TestCheckLegOnGroundAtOrigin(t *testing.T) {
	e := New(testDirectory())
	a, _ := e.Directory.Airport("EDDF")
	obs := model.Observation{Lat: a.Lat, Lon: a.Lon, OnGround: true, Heading: 90}
	res, ok := e.CheckLeg(obs, "EDDF", "EGLL")
	if !ok {
		t.Fatalf("expected a result")
	}
	if res.CheckFailed {
		t.Fatalf("expected success for on-ground observation at origin, got %+v", res)
	}
}

func TestCheckLegUnknownAirport(t *testing.T) {
	e := New(testDirectory())
	obs := model.Observation{Lat: 50, Lon: 8}
	if _, ok := e.CheckLeg(obs, "EDDF", "ZZZZ"); ok {
		t.Fatalf("expected absent result for unknown airport")
	}
}

func TestCheckLegIdenticalAirports(t *testing.T) {
	e := New(testDirectory())
	obs := model.Observation{Lat: 50, Lon: 8}
	if _, ok := e.CheckLeg(obs, "EDDF", "EDDF"); ok {
		t.Fatalf("expected absent result for a==b")
	}
}

// Mid-route, heading away from the destination trips the heading rule.
func TestCheckLegWrongDirectionMidFlight(t *testing.T) {
	e := New(testDirectory())
	a, _ := e.Directory.Airport("EDDF")
	b, _ := e.Directory.Airport("EGLL")
	midLat := (a.Lat + b.Lat) / 2
	midLon := (a.Lon + b.Lon) / 2
	obs := model.Observation{Lat: midLat, Lon: midLon, Heading: 180, OnGround: false}
	res, ok := e.CheckLeg(obs, "EDDF", "EGLL")
	if !ok {
		t.Fatalf("expected a result")
	}
	if !res.CheckFailed {
		t.Fatalf("expected heading-rule failure, got %+v", res)
	}
}

// Progress stays in [0,1] and deviation non-negative for an in-path observation.
func TestCheckLegInvariants(t *testing.T) {
	e := New(testDirectory())
	a, _ := e.Directory.Airport("EDDF")
	b, _ := e.Directory.Airport("EGLL")
	midLat := (a.Lat + b.Lat) / 2
	midLon := (a.Lon + b.Lon) / 2
	obs := model.Observation{Lat: midLat, Lon: midLon, Heading: 280, OnGround: false}
	res, ok := e.CheckLeg(obs, "EDDF", "EGLL")
	if !ok {
		t.Fatalf("expected a result")
	}
	if res.Progress < 0 || res.Progress > 1 {
		t.Fatalf("progress out of range: %f", res.Progress)
	}
	if res.Deviation < -1e-6 {
		t.Fatalf("deviation negative: %f", res.Deviation)
	}
}

// A multi-leg route selects a leg adjacent to the observation's
// position, not a distant leg.
func TestCheckRouteSelectsAdjacentLeg(t *testing.T) {
	e := New(testDirectory())
	b, _ := e.Directory.Airport("EGLL")
	// Observation very close to EGLL, heading roughly toward Paris (the next leg's destination).
	obs := model.Observation{Lat: b.Lat + 0.05, Lon: b.Lon + 0.1, Heading: 140, OnGround: false}
	route := model.Route{"EDDF", "EGLL", "LFPG"}
	res, ok := e.CheckRoute(obs, route)
	if !ok {
		t.Fatalf("expected a result")
	}
	// The selected leg must be one of the route's n-1 legs.
	if res.LegIndex < 0 || res.LegIndex >= route.Legs() {
		t.Fatalf("leg index out of range: %d", res.LegIndex)
	}
	if res.Deviation < -1e-6 {
		t.Fatalf("deviation negative: %f", res.Deviation)
	}
}

func TestCheckRouteRejectsTrivialRoute(t *testing.T) {
	e := New(testDirectory())
	obs := model.Observation{Lat: 50, Lon: 8}
	if _, ok := e.CheckRoute(obs, model.Route{"EDDF", "EDDF"}); ok {
		t.Fatalf("expected rejection of trivial A-A route")
	}
	if _, ok := e.CheckRoute(obs, model.Route{"EDDF"}); ok {
		t.Fatalf("expected rejection of single-code route")
	}
}

// Checking a palindrome route is invariant under reversing its codes.
func TestCheckRoutePalindromeInvariant(t *testing.T) {
	e := New(testDirectory())
	a, _ := e.Directory.Airport("EDDF")
	b, _ := e.Directory.Airport("EGLL")
	midLat := (a.Lat + b.Lat) / 2
	midLon := (a.Lon + b.Lon) / 2
	obs := model.Observation{Lat: midLat, Lon: midLon, Heading: 280, OnGround: false}

	forward := model.Route{"EDDF", "EGLL", "EDDF"}
	backward := make(model.Route, len(forward))
	for i, code := range forward {
		backward[len(forward)-1-i] = code
	}
	r1, ok1 := e.CheckRoute(obs, forward)
	r2, ok2 := e.CheckRoute(obs, backward)
	if !ok1 || !ok2 {
		t.Fatalf("expected both checks to succeed")
	}
	if r1.Deviation != r2.Deviation || r1.Progress != r2.Progress {
		t.Fatalf("palindrome route check not invariant: %+v vs %+v", r1, r2)
	}
}
