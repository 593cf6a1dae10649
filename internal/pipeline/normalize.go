// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// titleArticles are dropped from the front of titles before grouping.
// Deliberately broader than the search-time list: "on" and "de" show up
// as the first word of classical titles often enough to split groups.
var titleArticles = []string{
	"the ", "a ", "an ", "de ", "on ", "les ", "la ", "le ", "il ", "el ",
}

var stripAccents = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeAuthor reduces an author name to its cache-key form:
// accents stripped, lowercased, "Last, First" flipped to "First Last",
// periods removed, whitespace collapsed, and "St"/"Saint" honorifics
// dropped. Idempotent, and index-order and natural-order spellings of
// the same name normalize identically.
func NormalizeAuthor(name string) string {
	if folded, _, err := transform.String(stripAccents, name); err == nil {
		name = folded
	}
	name = strings.ToLower(name)
	if last, first, ok := strings.Cut(name, ","); ok && !strings.Contains(first, ",") {
		name = first + " " + last
	}
	name = strings.ReplaceAll(name, ".", "")
	name = strings.ReplaceAll(name, ",", "")
	name = strings.Join(strings.Fields(name), " ")

	for _, prefix := range []string{"st ", "saint "} {
		if strings.HasPrefix(name, prefix) {
			name = name[len(prefix):]
		}
	}
	return name
}

// NormalizeTitle reduces a title to its grouping form: lowercased,
// leading article dropped, punctuation removed, whitespace collapsed.
// Idempotent.
func NormalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range titleArticles {
			if strings.HasPrefix(t, prefix) {
				t = t[len(prefix):]
				stripped = true
			}
		}
	}

	var b strings.Builder
	for _, r := range t {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
