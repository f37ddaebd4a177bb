package refdata

import (
	"testing"

	"github.com/avbind/flightbind/internal/model"
)

func newTestDirectory() *Directory {
	d := NewDirectory()
	d.AddAirport(model.AirportRef{ICAO: "EDDF", IATA: "FRA", Name: "Frankfurt", Lat: 50.0379, Lon: 8.5622, Country: "DE", Timezone: "Europe/Berlin"})
	d.AddAirport(model.AirportRef{ICAO: "EGLL", IATA: "LHR", Name: "Heathrow", Lat: 51.4700, Lon: -0.4543, Country: "GB", Timezone: "Europe/London"})
	d.AddAirline(model.AirlineRef{ICAO: "DLH", IATA: "LH", Name: "Lufthansa"})
	d.AddAirline(model.AirlineRef{ICAO: "GEC", IATA: "LH", Name: "Lufthansa Cargo"})
	d.AddOverride(OperatorOverride{IATA: "LH", FlightNumberMin: 8000, FlightNumberMax: 8515, ICAO: "GEC", Name: "Lufthansa Cargo"})
	return d
}

func TestAirportLookup(t *testing.T) {
	d := newTestDirectory()
	a, ok := d.Airport("eddf")
	if !ok || a.IATA != "FRA" {
		t.Fatalf("expected EDDF to resolve to FRA, got %+v ok=%v", a, ok)
	}
	if _, ok := d.Airport("ZZZZ"); ok {
		t.Fatalf("expected unknown airport to be absent")
	}
}

func TestAirlineByIATACargoOverride(t *testing.T) {
	d := newTestDirectory()
	fn := 8123
	a, ok := d.AirlineByIATA("LH", AirlineHints{FlightNumber: &fn})
	if !ok || a.ICAO != "GEC" {
		t.Fatalf("expected cargo override to resolve GEC, got %+v ok=%v", a, ok)
	}
}

func TestAirlineByIATAAmbiguousWithoutHint(t *testing.T) {
	d := newTestDirectory()
	_, ok := d.AirlineByIATA("LH", AirlineHints{})
	if ok {
		t.Fatalf("expected ambiguous shared IATA without a name hint to be absent")
	}
}

func TestAirlineByIATANameSimilarity(t *testing.T) {
	d := newTestDirectory()
	a, ok := d.AirlineByIATA("LH", AirlineHints{Name: "LUFTHANSA"})
	if !ok || a.ICAO != "DLH" {
		t.Fatalf("expected exact name match to resolve DLH, got %+v ok=%v", a, ok)
	}
}
