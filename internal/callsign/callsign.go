// Package callsign normalises and validates raw callsign strings against
// the Eurocontrol CSS ZG00 shape: three-letter operator, a digit, then
// either up to three more digits, up to two more digits plus one
// letter, or zero/one digit plus two letters.
package callsign

import (
	"strconv"
	"strings"
)

// Policy controls which callsigns Normalize accepts.
type Policy struct {
	// AcceptedOperators, if non-nil, restricts the operator ICAO to this set.
	AcceptedOperators map[string]bool
	// AllowNumericSuffix disallows purely numeric suffixes when false.
	AllowNumericSuffix bool
	// AllowAlphanumericSuffix disallows letter-bearing suffixes when false.
	AllowAlphanumericSuffix bool
}

// DefaultPolicy accepts any operator and both suffix shapes.
func DefaultPolicy() Policy {
	return Policy{AllowNumericSuffix: true, AllowAlphanumericSuffix: true}
}

// Result is the canonicalised callsign record.
type Result struct {
	Canonical string
	Operator  string
	SuffixInt *int // non-nil iff the suffix is purely numeric
}

// Normalize trims and uppercases raw, validates its shape against policy,
// strips leading zeros from the suffix and rebuilds the canonical form.
// Returns (Result{}, false) on any rejection.
func Normalize(raw string, policy Policy) (Result, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) < 4 {
		return Result{}, false
	}
	operator := s[:3]
	for _, r := range operator {
		if r < 'A' || r > 'Z' {
			return Result{}, false
		}
	}
	rest := s[3:]
	if len(rest) == 0 || rest[0] < '0' || rest[0] > '9' {
		return Result{}, false
	}

	shape, ok := classifySuffix(rest)
	if !ok {
		return Result{}, false
	}

	if policy.AcceptedOperators != nil && !policy.AcceptedOperators[operator] {
		return Result{}, false
	}

	// The canonical suffix must begin with a nonzero digit: an all-zero
	// digit run (with or without trailing letters) has no canonical form.
	stripped := stripLeadingZeros(rest)
	if stripped == "" || stripped[0] < '1' || stripped[0] > '9' {
		return Result{}, false
	}

	var suffixInt *int
	if shape == shapeNumeric {
		if !policy.AllowNumericSuffix {
			return Result{}, false
		}
		n, err := strconv.Atoi(stripped)
		if err != nil {
			return Result{}, false
		}
		suffixInt = &n
	} else {
		if !policy.AllowAlphanumericSuffix {
			return Result{}, false
		}
	}

	return Result{
		Canonical: operator + stripped,
		Operator:  operator,
		SuffixInt: suffixInt,
	}, true
}

type suffixShape int

const (
	shapeNumeric suffixShape = iota
	shapeAlphanumeric
)

// classifySuffix validates `rest` (the part after the operator's three
// letters) against the CSS ZG00 suffix shapes:
//   - digit + up to 3 more digits  (pure numeric, 1-4 digits total)
//   - digit + up to 2 more digits + exactly 1 letter
//   - digit + 0 or 1 more digit + exactly 2 letters
func classifySuffix(rest string) (suffixShape, bool) {
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	letters := rest[digits:]
	for _, r := range letters {
		if r < 'A' || r > 'Z' {
			return 0, false
		}
	}
	switch len(letters) {
	case 0:
		if digits >= 1 && digits <= 4 {
			return shapeNumeric, true
		}
	case 1:
		if digits >= 1 && digits <= 3 {
			return shapeAlphanumeric, true
		}
	case 2:
		if digits >= 1 && digits <= 2 {
			return shapeAlphanumeric, true
		}
	}
	return 0, false
}

// stripLeadingZeros removes leading '0' characters from s (letters are
// never '0', so this only ever consumes the leading digit run).
func stripLeadingZeros(s string) string {
	i := 0
	for i < len(s) && s[i] == '0' {
		i++
	}
	return s[i:]
}
