package positionfeed

import (
	"testing"
	"time"

	"github.com/avbind/flightbind/internal/callsign"
	"github.com/avbind/flightbind/internal/position"
)

func sampleState(icao, cs string, lon, lat, alt, track, vrate, speed float64, ts int64, onGround bool) []interface{} {
	return []interface{}{icao, cs, "Germany", float64(ts), float64(ts), lon, lat, alt, onGround, speed, track, vrate}
}

func TestToRawExtractsFields(t *testing.T) {
	st := sampleState("3c6444", "DLH400  ", 8.5, 50.0, 10500, 280, 0, 230, 1700000000, false)
	raw, ok := toRaw(st)
	if !ok {
		t.Fatalf("expected toRaw to succeed")
	}
	if raw.HardwareID != "3c6444" {
		t.Fatalf("expected hardware id 3c6444, got %s", raw.HardwareID)
	}
	if *raw.Lat != 50.0 || *raw.Lon != 8.5 {
		t.Fatalf("expected coordinates preserved, got lat=%v lon=%v", *raw.Lat, *raw.Lon)
	}
	if raw.ObservedAt.Unix() != 1700000000 {
		t.Fatalf("expected observed_at derived from last_contact, got %v", raw.ObservedAt)
	}
}

func TestToRawRejectsMissingCoordinates(t *testing.T) {
	st := []interface{}{"3c6444", "DLH400", "Germany", float64(1700000000), float64(1700000000), nil, nil, 10500.0, false, 230.0, 280.0, 0.0}
	if _, ok := toRaw(st); ok {
		t.Fatalf("expected toRaw to reject a state with no coordinates")
	}
}

func TestBuildSnapshotDropsInvalidAndStaleObservations(t *testing.T) {
	f := New(nil)
	f.Options = position.Options{Policy: callsign.DefaultPolicy(), FlightLevelCap: 600}
	f.MaxAge = time.Minute

	fresh := sampleState("3c6444", "DLH400", 8.5, 50.0, 10500, 280, 0, 230, time.Now().Unix(), false)
	stale := sampleState("4b1234", "BAW123", 0.1, 51.0, 10500, 280, 0, 230, time.Now().Add(-time.Hour).Unix(), false)
	malformed := []interface{}{"", "", "Germany"}

	snap := f.buildSnapshot(&statesResponse{States: [][]interface{}{fresh, stale, malformed}})
	if len(snap.Positions) != 1 {
		t.Fatalf("expected exactly one surviving observation, got %d: %+v", len(snap.Positions), snap.Positions)
	}
	if _, ok := snap.Positions["DLH400"]; !ok {
		t.Fatalf("expected DLH400 to survive, got %v", snap.Positions)
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	d := parseRetryAfter("30")
	if d != 30*time.Second {
		t.Fatalf("expected 30s, got %v", d)
	}
}

func TestNoProxyMatchSuffix(t *testing.T) {
	t.Setenv("NO_PROXY", ".internal.example.com")
	if !noProxyMatch("api.internal.example.com") {
		t.Fatalf("expected suffix match against NO_PROXY")
	}
	if noProxyMatch("example.com") {
		t.Fatalf("expected no match for unrelated host")
	}
}
