package position

import (
	"testing"
	"time"
)

func f(v float64) *float64 { return &v }
func b(v bool) *bool       { return &v }

func TestValidateAccepts(t *testing.T) {
	now := time.Now()
	raw := Raw{
		Callsign:     "DLH7K",
		HardwareID:   "3C6589",
		Lat:          f(50.0),
		Lon:          f(8.0),
		AltitudeM:    f(10000),
		Heading:      f(90),
		VerticalRate: f(0),
		GroundSpeed:  f(230),
		OnGround:     b(false),
		ObservedAt:   &now,
	}
	obs, ok := Validate(raw, DefaultOptions())
	if !ok {
		t.Fatalf("expected acceptance")
	}
	if obs.Callsign != "DLH7K" || obs.Operator != "DLH" {
		t.Fatalf("unexpected observation: %+v", obs)
	}
	altMeters := 10000.0
	wantFL := int(altMeters / 0.3048 / 100)
	if obs.FlightLevel < wantFL-1 || obs.FlightLevel > wantFL+1 {
		t.Fatalf("flight level = %d, want ~%d", obs.FlightLevel, wantFL)
	}
}

func TestValidateRejectsOnGroundByDefault(t *testing.T) {
	now := time.Now()
	raw := Raw{
		Callsign: "DLH7K", HardwareID: "3C6589",
		Lat: f(50), Lon: f(8), AltitudeM: f(0), Heading: f(0),
		VerticalRate: f(0), GroundSpeed: f(0), OnGround: b(true), ObservedAt: &now,
	}
	if _, ok := Validate(raw, DefaultOptions()); ok {
		t.Fatalf("expected rejection of on-ground observation")
	}
}

func TestValidateRejectsHighFlightLevel(t *testing.T) {
	now := time.Now()
	raw := Raw{
		Callsign: "DLH7K", HardwareID: "3C6589",
		Lat: f(50), Lon: f(8), AltitudeM: f(25000), Heading: f(0),
		VerticalRate: f(0), GroundSpeed: f(0), OnGround: b(false), ObservedAt: &now,
	}
	if _, ok := Validate(raw, DefaultOptions()); ok {
		t.Fatalf("expected rejection above flight level cap")
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	raw := Raw{Callsign: "DLH7K", HardwareID: "3C6589"}
	if _, ok := Validate(raw, DefaultOptions()); ok {
		t.Fatalf("expected rejection of incomplete observation")
	}
}

func TestValidateRejectsBadCallsign(t *testing.T) {
	now := time.Now()
	raw := Raw{
		Callsign: "123ABCD", HardwareID: "3C6589",
		Lat: f(50), Lon: f(8), AltitudeM: f(1000), Heading: f(0),
		VerticalRate: f(0), GroundSpeed: f(0), OnGround: b(false), ObservedAt: &now,
	}
	if _, ok := Validate(raw, DefaultOptions()); ok {
		t.Fatalf("expected rejection of invalid callsign")
	}
}

func TestValidateRegistryLookup(t *testing.T) {
	now := time.Now()
	opts := DefaultOptions()
	opts.Registry = func(hw string) (string, bool) {
		if hw == "3C6589" {
			return "D-ABCD", true
		}
		return "", false
	}
	raw := Raw{
		Callsign: "DLH7K", HardwareID: "3C6589",
		Lat: f(50), Lon: f(8), AltitudeM: f(1000), Heading: f(0),
		VerticalRate: f(0), GroundSpeed: f(0), OnGround: b(false), ObservedAt: &now,
	}
	obs, ok := Validate(raw, opts)
	if !ok || obs.Registration == nil || *obs.Registration != "D-ABCD" {
		t.Fatalf("expected registration lookup, got %+v ok=%v", obs, ok)
	}
}
