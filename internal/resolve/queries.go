// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/citation-engine/internal/llm"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// leadingArticles are stripped from the front of titles, longest match
// first within each language group.
var leadingArticles = []string{
	"the ", "a ", "an ",
	"le ", "la ", "les ", "l'", "un ", "une ",
	"der ", "die ", "das ", "ein ", "eine ",
	"el ", "los ", "las ",
	"il ", "lo ", "i ", "gli ",
	"o ", "os ", "as ",
}

// subtitleSeparators split a title from its subtitle on first match.
var subtitleSeparators = []string{": ", " — ", " – ", " - "}

// nameParticles are dropped from author names to match catalogs that
// index "Goethe" rather than "von Goethe".
var nameParticles = []string{
	"von ", "de ", "la ", "van ", "du ", "di ", "del ", "della ", "al-", "ibn ",
}

// QueryGenerator produces search query variants for a citation. The
// first attempt is rule-based and free: title and author permutations
// plus alias-table expansions. Later attempts ask the model for
// broader alternatives, since the cheap variants already failed.
type QueryGenerator struct {
	Aliases *AliasTable
	LLM     llm.Completer
}

// Generate returns the deduplicated query list for the given attempt.
func (g *QueryGenerator) Generate(ctx context.Context, cit types.Citation, attempt int) ([]types.SearchQuery, error) {
	if attempt == 0 {
		return g.deterministic(cit), nil
	}
	return g.fromModel(ctx, cit, attempt)
}

// deterministic builds the attempt-zero variants without any model or
// network calls.
func (g *QueryGenerator) deterministic(cit types.Citation) []types.SearchQuery {
	title := strings.TrimSpace(cit.TitleOrEmpty())
	author := strings.TrimSpace(cit.Author)
	canonical := strings.TrimSpace(cit.CanonicalAuthor)

	var pairs [][2]string
	if title != "" {
		pairs = g.bookVariants(title, author, canonical)
	} else {
		pairs = g.authorVariants(author, canonical)
	}

	seen := map[[2]string]bool{}
	var out []types.SearchQuery
	for _, p := range pairs {
		t, a := strings.TrimSpace(p[0]), strings.TrimSpace(p[1])
		key := [2]string{strings.ToLower(t), strings.ToLower(a)}
		if (t == "" && a == "") || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, types.SearchQuery{Title: t, Author: a})
	}
	return out
}

func (g *QueryGenerator) bookVariants(title, author, canonical string) [][2]string {
	pairs := [][2]string{{title, author}}

	noSubtitle, hasSubtitle := stripSubtitle(title)
	noArticle, hasArticle := stripLeadingArticle(title)

	if hasSubtitle {
		pairs = append(pairs, [2]string{noSubtitle, author})
	}
	if hasArticle {
		pairs = append(pairs, [2]string{noArticle, author})
	}
	if hasSubtitle && hasArticle {
		if both, ok := stripLeadingArticle(noSubtitle); ok && !strings.EqualFold(both, noSubtitle) {
			pairs = append(pairs, [2]string{both, author})
		}
	}

	surname, hasSurname := lastName(author)
	if hasSurname {
		pairs = append(pairs, [2]string{title, surname})
		if hasSubtitle {
			pairs = append(pairs, [2]string{noSubtitle, surname})
		}
	}
	if author != "" && g.Aliases != nil {
		for _, variant := range g.Aliases.Variants(author) {
			pairs = append(pairs, [2]string{title, variant})
		}
	}
	if swapped, ok := swapCommaFormat(author); ok {
		pairs = append(pairs, [2]string{title, swapped})
	}
	if bare, ok := stripParticles(author); ok {
		pairs = append(pairs, [2]string{title, bare})
	}
	if canonical != "" && !strings.EqualFold(canonical, author) {
		pairs = append(pairs, [2]string{title, canonical})
	}
	return pairs
}

func (g *QueryGenerator) authorVariants(author, canonical string) [][2]string {
	var pairs [][2]string
	if author != "" {
		pairs = append(pairs, [2]string{"", author})
	}
	if surname, ok := lastName(author); ok {
		pairs = append(pairs, [2]string{"", surname})
	}
	if author != "" && g.Aliases != nil {
		for _, variant := range g.Aliases.Variants(author) {
			pairs = append(pairs, [2]string{"", variant})
		}
	}
	if bare, ok := stripParticles(author); ok {
		pairs = append(pairs, [2]string{"", bare})
	}
	if swapped, ok := swapCommaFormat(author); ok {
		pairs = append(pairs, [2]string{"", swapped})
	}
	if canonical != "" && !strings.EqualFold(canonical, author) {
		pairs = append(pairs, [2]string{"", canonical})
	}
	return pairs
}

type queryList struct {
	Queries []types.SearchQuery `json:"queries"`
}

// fromModel asks the model for query variants on retry attempts.
func (g *QueryGenerator) fromModel(ctx context.Context, cit types.Citation, attempt int) ([]types.SearchQuery, error) {
	raw, err := json.Marshal(cit)
	if err != nil {
		return nil, fmt.Errorf("marshaling citation: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a bibliography expert. Generate search queries for this citation.\n")
	fmt.Fprintf(&b, "Citation: %s\n", raw)
	fmt.Fprintf(&b, "Retry Attempt: %d\n\n", attempt)
	b.WriteString("Previous searches failed. Generate BROADER, FUZZIER, or ALTERNATIVE queries.\n")

	if cit.HasTitle() {
		b.WriteString(
			"The citation has a title. Generate structured queries to find this BOOK.\n" +
				"For each query, provide:\n" +
				"- 'title': The book title to search for (try exact, no subtitle, spelling corrections).\n" +
				"- 'author': The author name to filter by (try exact, last name only, variations).\n" +
				"  Always include the author if known, to filter out same-titled books by others.\n")
	} else {
		b.WriteString(
			"The citation is AUTHOR ONLY. Generate queries to find this AUTHOR.\n" +
				"For each query, provide:\n" +
				"- 'author': The author name to search for (variations, removing initials).\n" +
				"- 'title': Leave empty.\n")
	}
	b.WriteString("\nRespond with a JSON object: {\"queries\": [{\"title\": \"...\", \"author\": \"...\"}]}\n")

	var list queryList
	if err := llm.CompleteJSON(ctx, g.LLM, b.String(), 0, &list); err != nil {
		return nil, fmt.Errorf("generating queries (attempt %d): %w", attempt, err)
	}

	var out []types.SearchQuery
	for _, q := range list.Queries {
		q.Title = strings.TrimSpace(q.Title)
		q.Author = strings.TrimSpace(q.Author)
		if !q.IsEmpty() {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("model returned no usable queries")
	}
	return out, nil
}

// stripSubtitle drops everything from the first subtitle separator on.
func stripSubtitle(title string) (string, bool) {
	for _, sep := range subtitleSeparators {
		if idx := strings.Index(title, sep); idx > 0 {
			return strings.TrimSpace(title[:idx]), true
		}
	}
	return "", false
}

// stripLeadingArticle removes a leading article in any supported
// language.
func stripLeadingArticle(title string) (string, bool) {
	lower := strings.ToLower(title)
	for _, article := range leadingArticles {
		if strings.HasPrefix(lower, article) {
			if stripped := strings.TrimSpace(title[len(article):]); stripped != "" {
				return stripped, true
			}
		}
	}
	return "", false
}

// lastName extracts the final word of a multi-word name.
func lastName(author string) (string, bool) {
	parts := strings.Fields(author)
	if len(parts) < 2 {
		return "", false
	}
	return parts[len(parts)-1], true
}

// swapCommaFormat converts "Last, First" to "First Last".
func swapCommaFormat(author string) (string, bool) {
	before, after, found := strings.Cut(author, ", ")
	if !found {
		return "", false
	}
	before, after = strings.TrimSpace(before), strings.TrimSpace(after)
	if before == "" || after == "" {
		return "", false
	}
	return after + " " + before, true
}

// stripParticles removes nobiliary particles, whether mid-name or
// leading.
func stripParticles(author string) (string, bool) {
	lower := strings.ToLower(author)
	for _, particle := range nameParticles {
		if idx := strings.Index(lower, " "+particle); idx >= 0 {
			before := strings.TrimSpace(author[:idx])
			after := strings.TrimSpace(author[idx+1+len(particle):])
			result := strings.TrimSpace(before + " " + after)
			if result != "" && !strings.EqualFold(result, author) {
				return result, true
			}
		}
	}
	for _, particle := range nameParticles {
		if strings.HasPrefix(lower, particle) {
			if result := strings.TrimSpace(author[len(particle):]); result != "" {
				return result, true
			}
		}
	}
	return "", false
}
