// Package horizon decides which scheduled flights are "in the air right
// now" (C6) and estimates how far along their schedule they are.
package horizon

import (
	"time"

	"github.com/avbind/flightbind/internal/model"
)

// MaxDurationSeconds bounds how long a flight over a route of the given
// length can plausibly stay airborne: 0.00486*d + 1500, d in metres,
// result in seconds.
func MaxDurationSeconds(routeLengthM float64) float64 {
	return 0.00486*routeLengthM + 1500
}

// Active reports whether flight f is plausibly airborne at t, given the
// geodesic length of its route in metres. With both endpoints known the
// schedule window decides; with only one, MaxDurationSeconds bounds the
// window (arrival-only flights get a 300s grace past arrival).
func Active(f model.ScheduledFlight, t time.Time, routeLengthM float64) bool {
	if f.Cancelled || f.Redundant {
		return false
	}
	switch {
	case f.Departure != nil && f.Arrival != nil:
		return f.Departure.Before(t) && t.Before(*f.Arrival)
	case f.Departure != nil:
		maxDur := time.Duration(MaxDurationSeconds(routeLengthM)) * time.Second
		return f.Departure.Before(t) && f.Departure.Add(maxDur).After(t)
	case f.Arrival != nil:
		maxDur := time.Duration(MaxDurationSeconds(routeLengthM)) * time.Second
		// arrival > t-300  <=>  t < arrival+300
		// arrival - maxDur < t  <=>  t > arrival-maxDur
		return t.Before(f.Arrival.Add(300*time.Second)) && t.After(f.Arrival.Add(-maxDur))
	default:
		return false
	}
}

// EstimateProgress returns the fraction of the flight's scheduled
// duration elapsed at t.
func EstimateProgress(f model.ScheduledFlight, t time.Time, routeLengthM float64) float64 {
	switch {
	case f.Departure != nil && f.Arrival != nil:
		total := f.Arrival.Sub(*f.Departure).Seconds()
		if total == 0 {
			return 0
		}
		return t.Sub(*f.Departure).Seconds() / total
	case f.Departure != nil:
		maxDur := MaxDurationSeconds(routeLengthM)
		if maxDur == 0 {
			return 0
		}
		return t.Sub(*f.Departure).Seconds() / maxDur
	case f.Arrival != nil:
		maxDur := MaxDurationSeconds(routeLengthM)
		if maxDur == 0 {
			return 0
		}
		start := f.Arrival.Add(-time.Duration(maxDur) * time.Second)
		return t.Sub(start).Seconds() / maxDur
	default:
		return 0
	}
}

// CoarsePrefilter reports whether f's stored departure/arrival windows
// could plausibly contain t, within a generous ±24h / ±300s slack.
// Callers should still run Active for the authoritative decision.
func CoarsePrefilter(f model.ScheduledFlight, t time.Time) bool {
	if f.Departure != nil {
		if t.Before(f.Departure.Add(-24*time.Hour)) || t.After(f.Departure.Add(24*time.Hour)) {
			if f.Arrival == nil {
				return false
			}
		}
	}
	if f.Arrival != nil {
		if t.Before(f.Arrival.Add(-24*time.Hour)) || t.After(f.Arrival.Add(24*time.Hour)) {
			if f.Departure == nil {
				return false
			}
		}
	}
	if f.Departure != nil && f.Arrival != nil {
		if t.Before(f.Departure.Add(-300*time.Second)) || t.After(f.Arrival.Add(300*time.Second)) {
			return false
		}
	}
	return true
}
