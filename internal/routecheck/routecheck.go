// Package routecheck implements the geometric route-check engine (C5):
// given a position and a multi-leg route, it decides whether the
// aircraft is plausibly flying that route and on which segment.
package routecheck

import (
	"math"

	"github.com/avbind/flightbind/internal/geodesy"
	"github.com/avbind/flightbind/internal/model"
	"github.com/avbind/flightbind/internal/refdata"
)

// Plausibility thresholds, given explicit names so callers never have
// to guess at a magic number's origin.
const (
	onGroundDistanceCapM = 5000.0

	deviationCapM        = 265000.0
	deviationCapRatio    = 0.15
	deviationRatioCap    = 0.6

	headingRuleAProgressMin = 0.12
	headingRuleAProgressMax = 0.85
	headingRuleADOMinM      = 81500.0
	headingRuleADDMinM      = 77000.0
	headingRuleAErrorAngle  = 61.5

	headingRuleBProgressMin = 0.10
	headingRuleBProgressMax = 0.85
	headingRuleBDOMinM      = 25000.0
	headingRuleBDDMinM      = 41000.0
	headingRuleBErrorAngle  = 126.0

	descentTooEarlyProgress     = 0.20
	descentTooEarlyVerticalRate = -5.0

	climbTooLateProgress     = 0.80
	climbTooLateVerticalRate = 5.5
)

// LegResult is the outcome of checking one leg of a route.
type LegResult struct {
	A, B           string // airport ICAO codes bounding this leg
	LegLength      float64
	Deviation      float64
	DeviationRatio float64
	Progress       float64
	ErrorAngle     float64
	DO             float64 // distance observation -> A
	DD             float64 // distance observation -> B
	CheckFailed    bool
}

// RouteResult is the outcome of checking a multi-leg route: the single
// leg judged most representative of the aircraft's current position.
type RouteResult struct {
	LegIndex int // index into the route's leg list (0-based)
	LegResult
}

// Engine evaluates observations against routes using a reference directory
// to resolve airport codes to coordinates.
type Engine struct {
	Directory *refdata.Directory
}

// New builds a route-check engine bound to dir.
func New(dir *refdata.Directory) *Engine {
	return &Engine{Directory: dir}
}

// CheckLeg evaluates a single leg a->b against obs. Returns (nil, false)
// if a or b is unknown or a == b: the geometry is undefined and the
// caller can neither accept nor penalise.
func (e *Engine) CheckLeg(obs model.Observation, a, b string) (*LegResult, bool) {
	if a == b {
		return nil, false
	}
	airportA, ok := e.Directory.Airport(a)
	if !ok {
		return nil, false
	}
	airportB, ok := e.Directory.Airport(b)
	if !ok {
		return nil, false
	}

	legLength := geodesy.LegLength(airportA.Lat, airportA.Lon, airportB.Lat, airportB.Lon)
	if legLength == 0 {
		return nil, false
	}

	dO := geodesy.LegLength(airportA.Lat, airportA.Lon, obs.Lat, obs.Lon)
	dD := geodesy.LegLength(obs.Lat, obs.Lon, airportB.Lat, airportB.Lon)
	bearingToB := geodesy.Bearing(obs.Lat, obs.Lon, airportB.Lat, airportB.Lon)

	deviation := dO + dD - legLength
	deviationRatio := deviation / legLength
	progress := dO / (dO + dD)
	errorAngle := math.Abs(wrap180(obs.Heading - bearingToB))

	failed := false
	if obs.OnGround && dO > onGroundDistanceCapM && dD > onGroundDistanceCapM {
		failed = true
	}
	if deviation > deviationCapM && deviationRatio > deviationCapRatio {
		failed = true
	}
	if deviationRatio > deviationRatioCap {
		failed = true
	}
	if progress > headingRuleAProgressMin && progress < headingRuleAProgressMax &&
		dO > headingRuleADOMinM && dD > headingRuleADDMinM && errorAngle > headingRuleAErrorAngle {
		failed = true
	}
	if progress > headingRuleBProgressMin && progress < headingRuleBProgressMax &&
		dO > headingRuleBDOMinM && dD > headingRuleBDDMinM && errorAngle > headingRuleBErrorAngle {
		failed = true
	}
	if progress < descentTooEarlyProgress && obs.VerticalRate < descentTooEarlyVerticalRate {
		failed = true
	}
	if progress > climbTooLateProgress && obs.VerticalRate > climbTooLateVerticalRate {
		failed = true
	}

	return &LegResult{
		A: a, B: b,
		LegLength:      legLength,
		Deviation:      deviation,
		DeviationRatio: deviationRatio,
		Progress:       progress,
		ErrorAngle:     errorAngle,
		DO:             dO,
		DD:             dD,
		CheckFailed:    failed,
	}, true
}

// CheckRoute evaluates a multi-leg route and selects the leg the
// aircraft is most plausibly flying:
//   - reject if the route has < 2 codes or is a trivial A-A route;
//   - if exactly one leg succeeded, return it;
//   - else pick the leg with minimum deviation; if not failed, return it;
//   - else return the leg with minimum error angle.
func (e *Engine) CheckRoute(obs model.Observation, route model.Route) (*RouteResult, bool) {
	if route.Legs() < 1 {
		return nil, false
	}
	if len(route) == 2 && route[0] == route[1] {
		return nil, false
	}

	legs := make([]LegResult, 0, route.Legs())
	for i := 0; i < route.Legs(); i++ {
		leg, ok := e.CheckLeg(obs, route[i], route[i+1])
		if !ok {
			return nil, false
		}
		legs = append(legs, *leg)
	}

	succeeded := make([]int, 0, len(legs))
	for i, l := range legs {
		if !l.CheckFailed {
			succeeded = append(succeeded, i)
		}
	}
	if len(succeeded) == 1 {
		idx := succeeded[0]
		return &RouteResult{LegIndex: idx, LegResult: legs[idx]}, true
	}

	minDevIdx := 0
	for i, l := range legs {
		if l.Deviation < legs[minDevIdx].Deviation {
			minDevIdx = i
		}
	}
	if !legs[minDevIdx].CheckFailed {
		return &RouteResult{LegIndex: minDevIdx, LegResult: legs[minDevIdx]}, true
	}

	minErrIdx := 0
	for i, l := range legs {
		if l.ErrorAngle < legs[minErrIdx].ErrorAngle {
			minErrIdx = i
		}
	}
	return &RouteResult{LegIndex: minErrIdx, LegResult: legs[minErrIdx]}, true
}

// RouteLength sums the geodesic length of every leg in route, used by
// the flight horizon to bound plausible flight duration. Returns
// (0, false) if any airport code is unknown.
func (e *Engine) RouteLength(route model.Route) (float64, bool) {
	total := 0.0
	for i := 0; i < route.Legs(); i++ {
		a, ok := e.Directory.Airport(route[i])
		if !ok {
			return 0, false
		}
		b, ok := e.Directory.Airport(route[i+1])
		if !ok {
			return 0, false
		}
		total += geodesy.LegLength(a.Lat, a.Lon, b.Lat, b.Lon)
	}
	return total, true
}

// wrap180 normalizes an angle difference to [-180, 180).
func wrap180(deg float64) float64 {
	r := math.Mod(deg+180, 360)
	if r < 0 {
		r += 360
	}
	return r - 180
}
