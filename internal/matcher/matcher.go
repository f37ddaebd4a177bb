// Package matcher assigns callsigns to scheduled flights. For each
// active flight it first tries the assumed callsign (operator ICAO +
// flight number) and the manual translation table against the current
// position snapshot, validating any hit geometrically; failing that it
// scans the snapshot for same-operator candidates and accumulates them
// across cycles until exactly one survives the failed-set, recency and
// route-oracle filters.
package matcher

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/avbind/flightbind/internal/horizon"
	"github.com/avbind/flightbind/internal/model"
	"github.com/avbind/flightbind/internal/routecheck"
	"github.com/avbind/flightbind/internal/sources"
	"github.com/avbind/flightbind/internal/store"
	"github.com/avbind/flightbind/monitoring"
)

// RouteOracle answers "has any long-term historical source seen this
// callsign flying this route?".
type RouteOracle interface {
	GetFlightRoute(callsign string) (model.Route, bool)
}

// AmbiguousMarker is the diagnostic record emitted when candidate
// resolution cannot converge on a single callsign. No binding is
// written in that case.
type AmbiguousMarker struct {
	FlightKey string
	Route     model.Route
	First     []string
	Second    []string
	At        time.Time
}

// Diagnostics receives ambiguous markers as they are produced. Nil is
// a valid no-op sink.
type Diagnostics interface {
	Ambiguous(AmbiguousMarker)
}

// Config carries the matcher's tunable parameters.
type Config struct {
	RecentTierMin model.Tier
	RecentWindow  time.Duration // default 48h
}

// DefaultConfig returns the standard tier/window settings.
func DefaultConfig() Config {
	return Config{RecentTierMin: model.TierHighConfidence, RecentWindow: 48 * time.Hour}
}

// Matcher ties together the route-check engine, the verified-route
// store and an optional route oracle to run one matching cycle per
// call to Run.
type Matcher struct {
	Routes      *routecheck.Engine
	Store       *store.Store
	Translation map[string]string
	Oracle      RouteOracle
	Config      Config
	Diagnostics Diagnostics
	Now         func() time.Time
}

// New builds a Matcher. translation and oracle may be nil (no
// overrides / no historical confirmation available).
func New(routes *routecheck.Engine, st *store.Store, translation map[string]string, oracle RouteOracle, cfg Config) *Matcher {
	return &Matcher{
		Routes:      routes,
		Store:       st,
		Translation: translation,
		Oracle:      oracle,
		Config:      cfg,
		Now:         time.Now,
	}
}

func (m *Matcher) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func assumedCallsign(o, n string) string { return o + n }

// Run executes one matching cycle against src's currently active
// flights, reading snap as the point-in-time position publication.
// Flights are processed one at a time within a source; a later flight
// observes the prior flight's writes.
func (m *Matcher) Run(ctx context.Context, snap model.Snapshot, src sources.Source) {
	start := time.Now()
	label := src.SourceLabel()
	_, span := monitoring.StartCycleSpan(ctx, label)
	defer span.End()
	defer func() {
		monitoring.MatcherCycleDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	t := m.now()
	recent := m.Store.RecentCallsigns(m.Config.RecentTierMin, m.Config.RecentWindow, t)
	for _, f := range src.GetActiveFlights(t) {
		m.runFlight(snap, f, recent, t)
	}
}

func (m *Matcher) runFlight(snap model.Snapshot, f model.ScheduledFlight, recent map[string]bool, t time.Time) {
	n := strconv.Itoa(f.FlightNumber)
	assumed := assumedCallsign(f.OperatorICAO, n)
	translated, hasTranslation := m.Translation[assumed]

	var candidate string
	var candidateObs model.Observation
	var tier model.Tier
	haveCandidate := false

	assumedObs, assumedSeen := snap.Positions[assumed]
	translatedObs, translatedSeen := snap.Positions[translated]

	switch {
	case assumedSeen:
		candidate, candidateObs, tier = assumed, assumedObs, model.TierDirect
		haveCandidate = true
	case recent[assumed]:
		return
	case hasTranslation && translatedSeen:
		candidate, candidateObs, tier = translated, translatedObs, model.TierTranslated
		haveCandidate = true
	case hasTranslation && recent[translated]:
		return
	}

	if haveCandidate {
		result, ok := m.Routes.CheckRoute(candidateObs, f.Route)
		if !ok {
			return // geometry undefined: cannot verify now
		}
		if result.CheckFailed {
			if err := m.Store.IncreaseError(candidate, f.Route); err != nil {
				log.Printf("matcher: increase error for %s: %v", candidate, err)
			}
			return
		}
		m.bind(candidate, f, tier, t)
		return
	}

	m.searchMode(snap, f, recent, t)
}

func (m *Matcher) searchMode(snap model.Snapshot, f model.ScheduledFlight, recent map[string]bool, t time.Time) {
	flightKey := model.FlightKey(f.OperatorIATA, f.FlightNumber, f.Route)
	routeLen, haveLen := m.Routes.RouteLength(f.Route)
	timeProgress := 0.0
	if haveLen {
		timeProgress = horizon.EstimateProgress(f, t, routeLen)
	}

	for callsign, obs := range snap.Positions {
		if obs.Operator != f.OperatorICAO || recent[callsign] {
			continue
		}
		result, ok := m.Routes.CheckRoute(obs, f.Route)
		if !ok {
			continue
		}
		if result.CheckFailed {
			if err := m.Store.AddFailedCandidate(flightKey, callsign); err != nil {
				log.Printf("matcher: add failed candidate %s: %v", callsign, err)
			}
			if err := m.Store.IncreaseError(callsign, f.Route); err != nil {
				log.Printf("matcher: increase error for %s: %v", callsign, err)
			}
			continue
		}
		delta := result.Progress - timeProgress
		if delta > -0.4 && delta < 0.2 {
			if err := m.Store.AddCandidate(flightKey, callsign); err != nil {
				log.Printf("matcher: add candidate %s: %v", callsign, err)
			}
		}
	}

	if !haveLen || timeProgress <= 0.1 || timeProgress >= 1 {
		return
	}
	m.resolveCandidates(flightKey, f, recent, t)
}

// resolveCandidates splits the accumulated candidate set into a
// preferred set (never geometrically ruled out) and a fallback set
// (ruled out at some cycle but re-observed as plausible), then binds
// only when exactly one callsign survives the oracle filter.
func (m *Matcher) resolveCandidates(flightKey string, f model.ScheduledFlight, recent map[string]bool, t time.Time) {
	candidates := m.Store.Candidates(flightKey)
	failed := m.Store.FailedCandidates(flightKey)

	first := make([]string, 0, len(candidates))
	second := make([]string, 0, len(candidates))
	for cs := range candidates {
		if recent[cs] {
			continue
		}
		if failed[cs] {
			second = append(second, cs)
			continue
		}
		first = append(first, cs)
	}

	firstOK := m.filterByOracle(first, f.Route)
	if len(firstOK) == 1 {
		m.bind(firstOK[0], f, model.TierHighConfidence, t)
		return
	}
	secondOK := m.filterByOracle(second, f.Route)
	if len(firstOK) == 0 && len(secondOK) == 1 {
		m.bind(secondOK[0], f, model.TierLowConfidence, t)
		return
	}

	monitoring.MatcherAmbiguousTotal.WithLabelValues(f.Source).Inc()
	if m.Diagnostics != nil {
		m.Diagnostics.Ambiguous(AmbiguousMarker{
			FlightKey: flightKey,
			Route:     f.Route,
			First:     firstOK,
			Second:    secondOK,
			At:        t,
		})
	}
}

// filterByOracle keeps only callsigns the route oracle has seen flying
// route r. With no oracle configured, every candidate passes — the
// absence of a historical-route provider never blocks tier 0/1 resolution.
func (m *Matcher) filterByOracle(candidates []string, r model.Route) []string {
	if m.Oracle == nil {
		return candidates
	}
	out := make([]string, 0, len(candidates))
	for _, cs := range candidates {
		if route, ok := m.Oracle.GetFlightRoute(cs); ok && route.String() == r.String() {
			out = append(out, cs)
		}
	}
	return out
}

func (m *Matcher) bind(callsign string, f model.ScheduledFlight, tier model.Tier, t time.Time) {
	binding := model.VerifiedBinding{
		Callsign:     callsign,
		Route:        f.Route,
		Source:       f.Source,
		OperatorICAO: f.OperatorICAO,
		OperatorIATA: f.OperatorIATA,
		FlightNumber: f.FlightNumber,
		Tier:         tier,
		UpdatedAt:    t,
	}
	accepted, err := m.Store.Put(binding, false)
	if err != nil {
		log.Printf("matcher: put binding %s: %v", callsign, err)
		return
	}
	if accepted {
		monitoring.MatcherBindingsTotal.WithLabelValues(f.Source, strconv.Itoa(int(tier))).Inc()
	}
}
