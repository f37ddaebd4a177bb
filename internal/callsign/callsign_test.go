package callsign

import "testing"

func TestNormalizeAlphanumericSuffix(t *testing.T) {
	r, ok := Normalize("  dlh007K ", DefaultPolicy())
	if !ok {
		t.Fatalf("expected acceptance")
	}
	if r.Canonical != "DLH7K" {
		t.Fatalf("canonical = %q, want DLH7K", r.Canonical)
	}
	if r.Operator != "DLH" {
		t.Fatalf("operator = %q, want DLH", r.Operator)
	}
	if r.SuffixInt != nil {
		t.Fatalf("expected no integer suffix, got %v", *r.SuffixInt)
	}
}

func TestNormalizeNumericSuffix(t *testing.T) {
	r, ok := Normalize("BAW0123", DefaultPolicy())
	if !ok {
		t.Fatalf("expected acceptance")
	}
	if r.Canonical != "BAW123" {
		t.Fatalf("canonical = %q, want BAW123", r.Canonical)
	}
	if r.SuffixInt == nil || *r.SuffixInt != 123 {
		t.Fatalf("expected integer suffix 123, got %v", r.SuffixInt)
	}
}

func TestNormalizeRejectsBadShape(t *testing.T) {
	if _, ok := Normalize("123ABCD", DefaultPolicy()); ok {
		t.Fatalf("expected rejection")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	r1, ok := Normalize("DLH007K", DefaultPolicy())
	if !ok {
		t.Fatalf("expected acceptance")
	}
	r2, ok := Normalize(r1.Canonical, DefaultPolicy())
	if !ok {
		t.Fatalf("expected canonical form to re-validate")
	}
	if r2.Canonical != r1.Canonical {
		t.Fatalf("not idempotent: %q -> %q", r1.Canonical, r2.Canonical)
	}
}

func TestNormalizeOperatorRestriction(t *testing.T) {
	policy := DefaultPolicy()
	policy.AcceptedOperators = map[string]bool{"BAW": true}
	if _, ok := Normalize("DLH7K", policy); ok {
		t.Fatalf("expected rejection for operator outside accepted set")
	}
	if _, ok := Normalize("BAW123", policy); !ok {
		t.Fatalf("expected acceptance for accepted operator")
	}
}

func TestNormalizeSuffixPolicyGates(t *testing.T) {
	policy := DefaultPolicy()
	policy.AllowNumericSuffix = false
	if _, ok := Normalize("BAW123", policy); ok {
		t.Fatalf("expected rejection when numeric suffixes disallowed")
	}
	policy = DefaultPolicy()
	policy.AllowAlphanumericSuffix = false
	if _, ok := Normalize("DLH7K", policy); ok {
		t.Fatalf("expected rejection when alphanumeric suffixes disallowed")
	}
}

func TestNormalizeAllZeroSuffixRejected(t *testing.T) {
	if _, ok := Normalize("DLH0000", DefaultPolicy()); ok {
		t.Fatalf("expected rejection for all-zero suffix")
	}
}

func TestNormalizeZeroDigitRunBeforeLettersRejected(t *testing.T) {
	// Stripping the zeros would leave a suffix starting with a letter,
	// which has no digit and therefore no canonical form.
	for _, raw := range []string{"DLH0A", "DLH00AK", "DLH0KA"} {
		if r, ok := Normalize(raw, DefaultPolicy()); ok {
			t.Fatalf("expected rejection for %q, got %+v", raw, r)
		}
	}
}
