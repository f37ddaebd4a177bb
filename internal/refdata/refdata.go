// Package refdata is the read-only airport and airline reference
// directory consumed by the route-check engine and the matcher. Tables
// are loaded from YAML once at startup and never mutated afterward.
package refdata

import (
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/avbind/flightbind/internal/model"
)

// OperatorOverride hard-overrides the resolved airline for an IATA code
// within a flight-number range, e.g. Lufthansa Cargo: LH + [8000,8515].
// Overrides are table entries, never special cases in lookup code.
type OperatorOverride struct {
	IATA            string `yaml:"iata"`
	FlightNumberMin int    `yaml:"flight_number_min"`
	FlightNumberMax int    `yaml:"flight_number_max"`
	ICAO            string `yaml:"icao"`
	Name            string `yaml:"name"`
}

func (o OperatorOverride) matches(iata string, flightNumber int) bool {
	return o.IATA == iata && flightNumber >= o.FlightNumberMin && flightNumber <= o.FlightNumberMax
}

type airportFile struct {
	Airports []model.AirportRef `yaml:"airports"`
}

type airlineFile struct {
	Airlines  []model.AirlineRef `yaml:"airlines"`
	Overrides []OperatorOverride `yaml:"overrides"`
}

// Directory is the queryable reference directory.
type Directory struct {
	airportsByICAO map[string]model.AirportRef
	airportsByIATA map[string]model.AirportRef
	airlinesByICAO map[string]model.AirlineRef
	airlinesByIATA map[string][]model.AirlineRef
	overrides      []OperatorOverride
}

// NewDirectory builds an empty directory; use LoadAirports/LoadAirlines
// or the Add* methods (as the tests do) to populate it.
func NewDirectory() *Directory {
	return &Directory{
		airportsByICAO: map[string]model.AirportRef{},
		airportsByIATA: map[string]model.AirportRef{},
		airlinesByICAO: map[string]model.AirlineRef{},
		airlinesByIATA: map[string][]model.AirlineRef{},
	}
}

// LoadAirports reads a YAML airport table from path and merges it in.
func (d *Directory) LoadAirports(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f airportFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return err
	}
	for _, a := range f.Airports {
		d.AddAirport(a)
	}
	return nil
}

// LoadAirlines reads a YAML airline table (plus operator overrides) from
// path and merges it in.
func (d *Directory) LoadAirlines(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f airlineFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return err
	}
	for _, a := range f.Airlines {
		d.AddAirline(a)
	}
	d.overrides = append(d.overrides, f.Overrides...)
	return nil
}

// AddAirport inserts or replaces an airport record.
func (d *Directory) AddAirport(a model.AirportRef) {
	d.airportsByICAO[strings.ToUpper(a.ICAO)] = a
	if a.IATA != "" {
		d.airportsByIATA[strings.ToUpper(a.IATA)] = a
	}
}

// AddAirline inserts an airline record (IATA codes may be shared by
// several ICAOs, e.g. codeshares, so AddAirline appends rather than
// replaces in the IATA index).
func (d *Directory) AddAirline(a model.AirlineRef) {
	d.airlinesByICAO[strings.ToUpper(a.ICAO)] = a
	if a.IATA != "" {
		iata := strings.ToUpper(a.IATA)
		d.airlinesByIATA[iata] = append(d.airlinesByIATA[iata], a)
	}
}

// AddOverride registers a manual operator override.
func (d *Directory) AddOverride(o OperatorOverride) {
	d.overrides = append(d.overrides, o)
}

// Airport resolves a four-letter ICAO airport code.
func (d *Directory) Airport(code string) (model.AirportRef, bool) {
	a, ok := d.airportsByICAO[strings.ToUpper(code)]
	return a, ok
}

// AirportByIATA resolves a three-letter IATA airport code.
func (d *Directory) AirportByIATA(code string) (model.AirportRef, bool) {
	a, ok := d.airportsByIATA[strings.ToUpper(code)]
	return a, ok
}

// AirlineByICAO resolves a three-letter ICAO operator code.
func (d *Directory) AirlineByICAO(code string) (model.AirlineRef, bool) {
	a, ok := d.airlinesByICAO[strings.ToUpper(code)]
	return a, ok
}

// AirlineByIATA resolves a two-letter IATA operator code, disambiguating
// with `hints` when the code is shared by multiple ICAOs. Overrides are
// checked first (flight-number-gated); name-similarity tie-break is the
// length-normalised longest-common-subsequence ratio of the uppercased
// names, rounded to 3 decimals, highest ratio wins, ties return absent.
func (d *Directory) AirlineByIATA(iata string, hints AirlineHints) (model.AirlineRef, bool) {
	iata = strings.ToUpper(iata)
	if hints.FlightNumber != nil {
		for _, o := range d.overrides {
			if o.matches(iata, *hints.FlightNumber) {
				if a, ok := d.airlinesByICAO[strings.ToUpper(o.ICAO)]; ok {
					return a, true
				}
				return model.AirlineRef{ICAO: o.ICAO, IATA: iata, Name: o.Name}, true
			}
		}
	}

	candidates := d.airlinesByIATA[iata]
	switch len(candidates) {
	case 0:
		return model.AirlineRef{}, false
	case 1:
		return candidates[0], true
	}
	if hints.Name == "" {
		return model.AirlineRef{}, false
	}
	return bestByNameSimilarity(candidates, hints.Name)
}

// AirlineHints disambiguates a shared IATA code.
type AirlineHints struct {
	Name         string
	FlightNumber *int
}

func bestByNameSimilarity(candidates []model.AirlineRef, name string) (model.AirlineRef, bool) {
	type scored struct {
		ratio float64
		ref   model.AirlineRef
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		scoredList = append(scoredList, scored{ratio: nameSimilarity(c.Name, name), ref: c})
	}
	sort.SliceStable(scoredList, func(i, j int) bool { return scoredList[i].ratio > scoredList[j].ratio })
	if len(scoredList) >= 2 && scoredList[0].ratio == scoredList[1].ratio {
		return model.AirlineRef{}, false // tie, return absent
	}
	if scoredList[0].ratio == 0 {
		return model.AirlineRef{}, false
	}
	return scoredList[0].ref, true
}

// nameSimilarity is the length-normalised ratio of the longest matching
// subsequence between the uppercased names, rounded to 3 decimals.
func nameSimilarity(a, b string) float64 {
	a = strings.ToUpper(a)
	b = strings.ToUpper(b)
	if a == "" || b == "" {
		return 0
	}
	lcs := longestCommonSubsequence(a, b)
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	ratio := 2 * float64(lcs) / float64(total)
	return roundTo3(ratio)
}

func longestCommonSubsequence(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func roundTo3(v float64) float64 {
	scaled := v*1000 + 0.5
	return float64(int(scaled)) / 1000
}
