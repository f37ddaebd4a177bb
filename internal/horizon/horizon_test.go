package horizon

import (
	"testing"
	"time"

	"github.com/avbind/flightbind/internal/model"
)

func tp(t time.Time) *time.Time { return &t }

func TestActiveBothTimes(t *testing.T) {
	dep := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	arr := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := model.ScheduledFlight{Departure: tp(dep), Arrival: tp(arr)}
	mid := dep.Add(1 * time.Hour)
	if !Active(f, mid, 650000) {
		t.Fatalf("expected active mid-flight")
	}
	if Active(f, dep.Add(-time.Minute), 650000) {
		t.Fatalf("expected inactive before departure")
	}
	if Active(f, arr.Add(time.Minute), 650000) {
		t.Fatalf("expected inactive after arrival")
	}
}

func TestActiveDepartureOnly(t *testing.T) {
	dep := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	f := model.ScheduledFlight{Departure: tp(dep)}
	routeLen := 650000.0
	maxDur := MaxDurationSeconds(routeLen)
	within := dep.Add(time.Duration(maxDur/2) * time.Second)
	beyond := dep.Add(time.Duration(maxDur*2) * time.Second)
	if !Active(f, within, routeLen) {
		t.Fatalf("expected active within max duration of departure")
	}
	if Active(f, beyond, routeLen) {
		t.Fatalf("expected inactive well beyond max duration")
	}
}

func TestActiveCancelledExcluded(t *testing.T) {
	dep := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	arr := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := model.ScheduledFlight{Departure: tp(dep), Arrival: tp(arr), Cancelled: true}
	if Active(f, dep.Add(time.Hour), 650000) {
		t.Fatalf("expected cancelled flight to never be active")
	}
}

func TestEstimateProgressBothTimes(t *testing.T) {
	dep := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	arr := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := model.ScheduledFlight{Departure: tp(dep), Arrival: tp(arr)}
	p := EstimateProgress(f, dep.Add(time.Hour), 650000)
	if p < 0.49 || p > 0.51 {
		t.Fatalf("expected progress ~0.5, got %f", p)
	}
}
