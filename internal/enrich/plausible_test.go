// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import "testing"

func ip(v int) *int { return &v }

func TestValidateDates(t *testing.T) {
	tests := []struct {
		name         string
		birth, death *int
		wantBirth    *int
		wantDeath    *int
		wantReason   string
	}{
		{"plausible modern", ip(1828), ip(1910), ip(1828), ip(1910), ""},
		{"plausible bc", ip(-428), ip(-348), ip(-428), ip(-348), ""},
		{"bc to ad", ip(-43), ip(17), ip(-43), ip(17), ""},

		// Rule 1: sign error on death.
		{"flip death sign", ip(1828), ip(-1910), ip(1828), ip(1910), "flipped_death_sign"},
		{"unfixable negative death", ip(1828), ip(-348), ip(1828), nil, "dropped_negative_death"},

		// Rule 2: implausible BC birth with AD death.
		{"bogus bc birth", ip(-428), ip(1910), nil, ip(1910), "dropped_mismatched_bc_birth"},

		// Rule 3: inverted BC pair.
		{"flip both signs", ip(-17), ip(-43), ip(17), ip(43), "flipped_both_signs"},
		{"unfixable inverted bc", ip(-100), ip(-500), nil, nil, "dropped_inverted_bc_pair"},

		// Rule 4: death before birth.
		{"death before birth", ip(1910), ip(1828), nil, nil, "dropped_death_before_birth"},

		// Rule 5: implausible span.
		{"lifespan over 200", ip(1500), ip(1800), nil, nil, "dropped_implausible_lifespan"},
		{"bc lifespan over 200", ip(-800), ip(-500), nil, nil, "dropped_implausible_lifespan"},

		// Single-sided pairs pass through untouched.
		{"birth only", ip(1828), nil, ip(1828), nil, ""},
		{"death only", nil, ip(1910), nil, ip(1910), ""},
		{"both nil", nil, nil, nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, d, reason := ValidateDates(tt.birth, tt.death)
			if !ptrEq(b, tt.wantBirth) {
				t.Errorf("birth = %v, want %v", intOrNil(b), intOrNil(tt.wantBirth))
			}
			if !ptrEq(d, tt.wantDeath) {
				t.Errorf("death = %v, want %v", intOrNil(d), intOrNil(tt.wantDeath))
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

// TestValidateDatesInvariant sweeps pairs and checks the output
// invariant: both nil, or a span within [0,200] under sign
// conventions, or an unmodified already-valid input.
func TestValidateDatesInvariant(t *testing.T) {
	years := []int{-3000, -800, -428, -348, -120, -43, -17, 17, 120, 476, 1492, 1828, 1910, 2020}
	for _, by := range years {
		for _, dy := range years {
			b, d, reason := ValidateDates(ip(by), ip(dy))
			if b == nil && d == nil {
				continue
			}
			if b == nil || d == nil {
				// Half-nulled pairs only come out of a correction.
				if reason == "" {
					t.Errorf("(%d,%d): half-nulled without a reason", by, dy)
				}
				continue
			}
			span := *d - *b
			if span < 0 || span > maxSpan {
				t.Errorf("(%d,%d) -> (%d,%d): span %d violates invariant (reason %q)",
					by, dy, *b, *d, span, reason)
			}
		}
	}
}

func ptrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
