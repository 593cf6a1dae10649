// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fuzzy provides the string-similarity scoring shared by
// candidate ranking, the match-validator fallback threshold, and the
// author-cache surname lookup.
package fuzzy

import (
	"regexp"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

var wordPattern = regexp.MustCompile(`\w+`)

// TokenSortRatio tokenizes both strings, lowercases and sorts the
// tokens, and returns the similarity of the rejoined forms as an
// integer in [0,100]. Word order therefore does not matter:
// "Tolstoy, Leo" and "Leo Tolstoy" score 100.
func TokenSortRatio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return int(Ratio(tokenSort(a), tokenSort(b)) * 100)
}

// Ratio returns the normalized Levenshtein similarity of two strings
// in [0,1].
func Ratio(a, b string) float64 {
	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	return strutil.Similarity(a, b, lev)
}

func tokenSort(s string) string {
	tokens := wordPattern.FindAllString(strings.ToLower(s), -1)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
