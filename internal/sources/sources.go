// Package sources defines the capability interface that every schedule
// feed adapter (airport, airline, civil-aviation agency) implements.
// Concrete scraper adapters with their per-feed format quirks live
// elsewhere; the matcher is parametric over this interface.
package sources

import (
	"time"

	"github.com/avbind/flightbind/internal/model"
)

// Source is the capability set every schedule/status feed adapter exposes.
type Source interface {
	// SourceLabel is the stable name attached to bindings this source produces.
	SourceLabel() string
	// GetActiveFlights returns ScheduledFlight records plausibly airborne at t.
	GetActiveFlights(t time.Time) []model.ScheduledFlight
	// GetFlightsOfDay returns records whose departure or arrival falls
	// within the given UTC day.
	GetFlightsOfDay(day time.Time) []model.ScheduledFlight
	// GetSupportedAirlines returns the distinct operator ICAOs this source covers.
	GetSupportedAirlines() []string
}
