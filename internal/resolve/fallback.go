// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/citation-engine/internal/enrich"
	"github.com/pdiddy/citation-engine/internal/llm"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Fallback resolves citations the catalogs could not, from the model's
// own knowledge. It runs only after the machine gives up, so a wrong
// answer here replaces nothing, it only fills a gap.
type Fallback struct {
	LLM llm.Completer
}

type fallbackVerdict struct {
	MatchType string         `json:"match_type"`
	Metadata  map[string]any `json:"metadata"`
}

// Resolve asks the model to identify the citation. The source document
// is included as context: knowing the citing work pins down ambiguous
// names (the Cicero quoted by a Renaissance treatise is the orator, not
// a modern namesake).
func (f *Fallback) Resolve(ctx context.Context, cit types.Citation, src types.SourceMetadata) (types.ResolutionResult, error) {
	var b strings.Builder
	b.WriteString("You are a bibliography expert. A citation could not be resolved against our catalogs.\n")
	b.WriteString("Identify it from your own knowledge.\n\n")

	fmt.Fprintf(&b, "The citation appears in: %q", src.Title)
	if len(src.Authors) > 0 {
		fmt.Fprintf(&b, " by %s", strings.Join(src.Authors, ", "))
	}
	if src.PublicationYear != nil {
		fmt.Fprintf(&b, " (%d)", *src.PublicationYear)
	}
	b.WriteString("\n\n")

	if cit.HasTitle() {
		fmt.Fprintf(&b, "Cited work: %q by %s\n", *cit.Title, cit.Author)
	} else {
		fmt.Fprintf(&b, "Cited author: %s\n", cit.Author)
	}

	b.WriteString(`
Respond with a JSON object:
{"match_type": "book" | "person" | "not_found", "metadata": {...}}

For a book, metadata should carry "title", "authors" (list), and
"original_year" if known. For a person, carry "title" (the canonical
name), "birth_year", and "death_year". Use negative years for BC dates.
Use "not_found" if you do not recognize the citation.
`)

	var verdict fallbackVerdict
	if err := llm.CompleteJSON(ctx, f.LLM, b.String(), 0, &verdict); err != nil {
		return types.ResolutionResult{}, fmt.Errorf("fallback resolution: %w", err)
	}

	matchType := types.MatchType(verdict.MatchType)
	switch matchType {
	case types.MatchBook, types.MatchPerson:
	case types.MatchNotFound:
		return types.ResolutionResult{MatchType: types.MatchNotFound, Metadata: map[string]any{}}, nil
	default:
		return types.ResolutionResult{}, fmt.Errorf("fallback returned unknown match type %q", verdict.MatchType)
	}

	meta := verdict.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	sanitizeFallbackDates(cit.Author, meta)

	return types.ResolutionResult{
		MatchType: matchType,
		Metadata:  meta,
		Reasoning: "Resolved from model knowledge.",
	}, nil
}

// sanitizeFallbackDates runs any birth/death pair in the metadata
// through the plausibility rules before the result can reach caches or
// artifacts.
func sanitizeFallbackDates(name string, meta map[string]any) {
	birth := metaYear(meta, "birth_year")
	death := metaYear(meta, "death_year")
	if birth == nil && death == nil {
		return
	}
	vb, vd, reason := enrich.ValidateDates(birth, death)
	if reason != "" {
		slog.Warn("corrected implausible fallback dates",
			"name", name, "reason", reason,
			"birth", intOr(birth), "death", intOr(death))
	}
	setMetaYear(meta, "birth_year", vb)
	setMetaYear(meta, "death_year", vd)
}

func intOr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func metaYear(meta map[string]any, key string) *int {
	switch v := meta[key].(type) {
	case float64:
		y := int(v)
		return &y
	case int:
		return &v
	}
	return nil
}

func setMetaYear(meta map[string]any, key string, v *int) {
	if v == nil {
		delete(meta, key)
		return
	}
	meta[key] = *v
}
