// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/citation-engine/internal/llm"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// BookLookup is the catalog surface the cascade needs for books.
type BookLookup interface {
	BookByID(ctx context.Context, id string) (map[string]any, bool)
}

// PersonSearcher is the catalog surface the cascade needs for persons.
type PersonSearcher interface {
	SearchPersons(ctx context.Context, q types.SearchQuery, limit int) []types.Candidate
}

// WebSource is the free-text lookup surface. Implementations return raw
// date-bearing text; parsing and rejection happen here.
type WebSource interface {
	GetOriginalPublicationDate(ctx context.Context, title, author string) (string, error)
	GetPersonDates(ctx context.Context, name string) (string, error)
}

// Enricher fills in publication years and author biographies by
// consulting sources in fixed order: durable cache, local catalog, web
// lookup, model knowledge. The first source that answers wins; the
// answer is written back to the cache so later citations skip the
// slower sources.
type Enricher struct {
	Dates   *DatesCache
	Authors *AuthorsCache
	Books   BookLookup     // may be nil
	Persons PersonSearcher // may be nil
	Web     WebSource      // nil when web lookup is disabled
	LLM     llm.Completer  // may be nil
}

var yearPattern = regexp.MustCompile(`-?\d{3,4}`)

// Flush persists both caches.
func (e *Enricher) Flush() error {
	if err := e.Dates.Flush(); err != nil {
		return err
	}
	return e.Authors.Flush()
}

// BookYear returns the original publication year for a book. The
// catalog step is skipped for synthetic ids, which have no catalog row.
func (e *Enricher) BookYear(ctx context.Context, bookID, title, author string) (int, bool) {
	if y, ok := e.Dates.Get(bookID); ok {
		return y, true
	}

	if e.Books != nil && !syntheticID(bookID) {
		if row, ok := e.Books.BookByID(ctx, bookID); ok {
			if y := anyToIntPtr(row["publication_year"]); y != nil {
				e.Dates.Put(bookID, *y)
				return *y, true
			}
		}
	}

	if e.Web != nil {
		text, err := e.Web.GetOriginalPublicationDate(ctx, title, author)
		if err != nil {
			slog.Warn("web publication date lookup failed", "title", title, "error", err)
		} else if y, ok := parseYearText(text); ok {
			e.Dates.Put(bookID, y)
			return y, true
		}
	}

	if e.LLM != nil {
		if y, ok := e.llmBookYear(ctx, title, author); ok {
			e.Dates.Put(bookID, y)
			return y, true
		}
	}

	return 0, false
}

func (e *Enricher) llmBookYear(ctx context.Context, title, author string) (int, bool) {
	prompt := fmt.Sprintf(`What year was the book %q by %s originally published?

Answer with the year alone. Use a negative number for BC dates
(for example -800 for 800 BC). If you do not know, answer "unknown".`,
		title, author)

	reply, err := e.LLM.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("model publication date lookup failed", "title", title, "error", err)
		return 0, false
	}
	m := yearPattern.FindString(reply)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// AuthorBio returns biographical metadata for an author. Cached entries
// are returned as stored, even if written before the current validation
// rules existed; the fix-dates maintenance command repairs those.
func (e *Enricher) AuthorBio(ctx context.Context, name string) (map[string]any, bool) {
	if bio, ok := e.Authors.Get(name); ok {
		return bio, true
	}

	if e.Persons != nil {
		cands := e.Persons.SearchPersons(ctx, types.SearchQuery{Author: name}, 1)
		if len(cands) > 0 && cands[0].Score == 100 {
			bio := map[string]any{}
			setBioYears(bio, cands[0].BirthYear, cands[0].DeathYear)
			e.Authors.Put(name, bio)
			return bio, true
		}
	}

	if e.Web != nil {
		if bio, ok := e.webAuthorBio(ctx, name); ok {
			e.Authors.Put(name, bio)
			return bio, true
		}
	}

	if e.LLM != nil {
		if bio, ok := e.llmAuthorBio(ctx, name); ok {
			// Validated here so the values used by this caller are
			// already clean, and again inside Put with the rest.
			birth, death := bioYears(bio)
			vb, vd := validateAndLog(name, birth, death)
			setBioYears(bio, vb, vd)
			e.Authors.Put(name, bio)
			return bio, true
		}
	}

	return nil, false
}

func (e *Enricher) webAuthorBio(ctx context.Context, name string) (map[string]any, bool) {
	text, err := e.Web.GetPersonDates(ctx, name)
	if err != nil {
		slog.Warn("web person dates lookup failed", "name", name, "error", err)
		return nil, false
	}
	if rejectWebText(text) {
		return nil, false
	}

	birth := yearNear(text, "born")
	death := yearNear(text, "died")
	if birth == nil && death == nil {
		return nil, false
	}
	bio := map[string]any{}
	setBioYears(bio, birth, death)
	return bio, true
}

func (e *Enricher) llmAuthorBio(ctx context.Context, name string) (map[string]any, bool) {
	prompt := fmt.Sprintf(`Provide biographical metadata for the author %q.

Respond with a JSON object:
{"birth_year": <int or null>, "death_year": <int or null>, "main_genre": <string or null>, "nationality": <string or null>}

Use negative years for BC dates. Use null for anything you do not know.`,
		name)

	var bio map[string]any
	if err := llm.CompleteJSON(ctx, e.LLM, prompt, 0, &bio); err != nil {
		slog.Warn("model author bio lookup failed", "name", name, "error", err)
		return nil, false
	}
	for _, k := range []string{"birth_year", "death_year", "main_genre", "nationality"} {
		if bio[k] == nil {
			delete(bio, k)
		}
	}
	if len(bio) == 0 {
		return nil, false
	}
	return bio, true
}

// EnrichSource fills missing source-document metadata: authors and
// publication year from the catalog row when the source has a catalog
// id, then the year from the model as a last resort.
func (e *Enricher) EnrichSource(ctx context.Context, src *types.SourceMetadata) {
	if e.Books != nil && src.BookID != "" && !syntheticID(src.BookID) {
		if row, ok := e.Books.BookByID(ctx, src.BookID); ok {
			if len(src.Authors) == 0 {
				src.Authors = toStrings(row["authors"])
			}
			if src.PublicationYear == nil {
				src.PublicationYear = anyToIntPtr(row["publication_year"])
			}
		}
	}
	if src.PublicationYear == nil && src.Title != "" && e.LLM != nil {
		if y, ok := e.llmBookYear(ctx, src.Title, strings.Join(src.Authors, ", ")); ok {
			src.PublicationYear = intPtr(y)
		}
	}
}

func toStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	}
	return nil
}

// syntheticID reports whether the id was minted by the fallback
// resolver or added by hand, meaning no catalog row exists for it.
func syntheticID(id string) bool {
	return strings.HasPrefix(id, "web_") || strings.HasPrefix(id, "manual_")
}

// parseYearText pulls a year out of free text, negating it when the
// text marks it as BC.
func parseYearText(text string) (int, bool) {
	m := yearPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	upper := strings.ToUpper(text)
	if y > 0 && (strings.Contains(upper, "BC") || strings.Contains(upper, "BCE")) {
		y = -y
	}
	return y, true
}

// yearNear finds the first year after the given marker word, so
// "born 1828" and "born in 1828" both parse.
func yearNear(text, marker string) *int {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, marker)
	if idx < 0 {
		return nil
	}
	window := text[idx:]
	if len(window) > 40 {
		window = window[:40]
	}
	m := yearPattern.FindString(window)
	if m == "" {
		return nil
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	if strings.Contains(strings.ToUpper(window), "BC") && y > 0 {
		y = -y
	}
	return intPtr(y)
}

// rejectWebText filters out responses that are not usable prose: raw
// HTML dumps and the API's own error markers.
func rejectWebText(text string) bool {
	if text == "" {
		return true
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "<") || strings.Contains(trimmed, "<html") {
		return true
	}
	lower := strings.ToLower(trimmed)
	return strings.Contains(lower, "error:") || strings.Contains(lower, "may refer to:")
}
