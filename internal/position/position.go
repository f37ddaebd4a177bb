// Package position turns a raw aircraft state into a usable
// Observation: the callsign must normalise, every kinematic field must
// be present, on-ground states are rejected unless permitted, and the
// derived flight level must stay under the cap.
package position

import (
	"math"
	"time"

	"github.com/avbind/flightbind/internal/callsign"
	"github.com/avbind/flightbind/internal/model"
)

// Raw is a single raw aircraft state as published by the position feed
// (out-of-scope client; this is the shape it hands to the validator).
type Raw struct {
	Callsign     string
	HardwareID   string
	Lat          *float64
	Lon          *float64
	AltitudeM    *float64
	Heading      *float64
	VerticalRate *float64
	GroundSpeed  *float64
	OnGround     *bool
	ObservedAt   *time.Time
}

// RegistryLookup resolves a hardware id to a registration, e.g. a local
// table refreshed occasionally from an online source. Returns ("", false)
// when unknown; implementations must not block the validator for long.
type RegistryLookup func(hardwareID string) (registration string, ok bool)

// Options configures Validate.
type Options struct {
	Policy         callsign.Policy
	AllowOnGround  bool
	FlightLevelCap int
	Registry       RegistryLookup
}

// DefaultOptions rejects on-ground observations and caps the flight
// level at 600.
func DefaultOptions() Options {
	return Options{
		Policy:         callsign.DefaultPolicy(),
		AllowOnGround:  false,
		FlightLevelCap: 600,
	}
}

// Validate normalises raw into an Observation, or returns (nil, false)
// if any required field is missing or any invariant fails.
func Validate(raw Raw, opts Options) (*model.Observation, bool) {
	cs, ok := callsign.Normalize(raw.Callsign, opts.Policy)
	if !ok {
		return nil, false
	}
	if raw.Lat == nil || raw.Lon == nil || raw.AltitudeM == nil || raw.Heading == nil ||
		raw.VerticalRate == nil || raw.GroundSpeed == nil || raw.ObservedAt == nil ||
		raw.HardwareID == "" || raw.OnGround == nil {
		return nil, false
	}
	if *raw.OnGround && !opts.AllowOnGround {
		return nil, false
	}

	flCap := opts.FlightLevelCap
	if flCap == 0 {
		flCap = 600
	}
	fl := int(math.Round(*raw.AltitudeM / 0.3048 / 100))
	if fl > flCap {
		return nil, false
	}

	obs := &model.Observation{
		Callsign:     cs.Canonical,
		Operator:     cs.Operator,
		HardwareID:   raw.HardwareID,
		Lat:          *raw.Lat,
		Lon:          *raw.Lon,
		AltitudeM:    *raw.AltitudeM,
		FlightLevel:  fl,
		Heading:      *raw.Heading,
		VerticalRate: *raw.VerticalRate,
		GroundSpeed:  *raw.GroundSpeed,
		OnGround:     *raw.OnGround,
		ObservedAt:   *raw.ObservedAt,
		SuffixInt:    cs.SuffixInt,
	}

	if opts.Registry != nil {
		if reg, ok := opts.Registry(raw.HardwareID); ok {
			obs.Registration = &reg
		}
	}

	return obs, true
}
