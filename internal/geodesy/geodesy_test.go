package geodesy

import "testing"

func TestLegLengthKnownRoute(t *testing.T) {
	// EDDF (Frankfurt) -> EGLL (London Heathrow), ~650km great circle.
	d := LegLength(50.0379, 8.5622, 51.4700, -0.4543)
	if d < 600000 || d > 700000 {
		t.Fatalf("expected ~650km, got %.0fm", d)
	}
}

func TestLegLengthCoincidentPoints(t *testing.T) {
	d := LegLength(50.0, 8.0, 50.0, 8.0)
	if d != 0 {
		t.Fatalf("expected 0 for coincident points, got %f", d)
	}
}

func TestDistanceAndBearingsRoundTrip(t *testing.T) {
	dist, initial, final := DistanceAndBearings(50.0379, 8.5622, 51.4700, -0.4543)
	if dist <= 0 {
		t.Fatalf("expected positive distance, got %f", dist)
	}
	if initial < 0 || initial >= 360 {
		t.Fatalf("initial bearing out of range: %f", initial)
	}
	if final < 0 || final >= 360 {
		t.Fatalf("final bearing out of range: %f", final)
	}
}
