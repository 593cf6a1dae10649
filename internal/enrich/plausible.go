// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich fills in missing publication years and author
// biographies through an ordered cascade of sources, and guards every
// externally sourced date pair with a plausibility validator before it
// reaches a cache or the output.
package enrich

import "log/slog"

// maxLifespan is the longest lifespan accepted when repairing sign
// errors. maxSpan is the absolute bound above which a pair is treated
// as a wrong-entity match.
const (
	maxLifespan = 120
	maxSpan     = 200
)

// ValidateDates checks a (birth, death) year pair sourced from the web
// or an LLM and repairs or nulls implausible values. AD years are
// positive, BC years negative. The returned reason is "" when the pair
// was already plausible; otherwise it names the applied correction.
//
// The rules, in order, each firing only when its precondition holds:
//
//  1. birth>0, death<0: a sign error on death; flip if the flipped
//     lifespan is plausible, else drop death.
//  2. birth<0, death>0: a legitimate BC-to-AD life if the span is
//     plausible, else drop birth.
//  3. both negative with death numerically below birth: flip both if
//     plausible, else drop both.
//  4. both positive with birth after death: impossible, drop both
//     (almost always a wrong-person match).
//  5. any surviving pair spanning more than 200 years: drop both.
//
// Local-catalog values bypass this function; catalogs are assumed
// pre-validated.
func ValidateDates(birth, death *int) (*int, *int, string) {
	if birth == nil || death == nil {
		return birth, death, ""
	}
	b, d := *birth, *death

	// Rule 1: sign error on death.
	if b > 0 && d < 0 {
		if span := -d - b; span > 0 && span <= maxLifespan {
			flipped := -d
			return intPtr(b), intPtr(flipped), "flipped_death_sign"
		}
		return intPtr(b), nil, "dropped_negative_death"
	}

	// Rule 2: BC birth, AD death.
	if b < 0 && d > 0 {
		if span := -b + d; span < maxLifespan {
			return intPtr(b), intPtr(d), ""
		}
		return nil, intPtr(d), "dropped_mismatched_bc_birth"
	}

	// Rule 3: both BC with death before birth under the negative-year
	// convention.
	if b < 0 && d < 0 && d < b {
		if span := -d - (-b); span > 0 && span <= maxLifespan {
			return intPtr(-b), intPtr(-d), "flipped_both_signs"
		}
		return nil, nil, "dropped_inverted_bc_pair"
	}

	// Rule 4: died before born.
	if b > 0 && d > 0 && b > d {
		return nil, nil, "dropped_death_before_birth"
	}

	// Rule 5: implausible lifespan.
	if d-b > maxSpan {
		return nil, nil, "dropped_implausible_lifespan"
	}

	return intPtr(b), intPtr(d), ""
}

// validateAndLog runs ValidateDates and logs any correction at WARN.
// Corrections are never errors; a partially nulled pair is still a
// usable result.
func validateAndLog(name string, birth, death *int) (*int, *int) {
	b, d, reason := ValidateDates(birth, death)
	if reason != "" {
		slog.Warn("implausible dates corrected",
			"name", name,
			"birth", intOrNil(birth), "death", intOrNil(death),
			"corrected_birth", intOrNil(b), "corrected_death", intOrNil(d),
			"reason", reason)
	}
	return b, d
}

func intPtr(v int) *int { return &v }

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
