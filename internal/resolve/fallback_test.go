// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"testing"

	"github.com/pdiddy/citation-engine/pkg/types"
)

func TestFallbackBookVerdict(t *testing.T) {
	f := &Fallback{LLM: &stubCompleter{replies: []string{
		`{"match_type": "book", "metadata": {"title": "Meditations", "authors": ["Marcus Aurelius"], "original_year": 180}}`,
	}}}

	res, err := f.Resolve(context.Background(), types.Citation{
		Title:  strPtr("Meditations"),
		Author: "Marcus Aurelius",
	}, types.SourceMetadata{Title: "A History of Stoicism"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.MatchType != types.MatchBook {
		t.Fatalf("MatchType = %q", res.MatchType)
	}
	if res.Metadata["title"] != "Meditations" {
		t.Fatalf("metadata = %v", res.Metadata)
	}
}

func TestFallbackValidatesPersonDates(t *testing.T) {
	// Death year with a slipped sign; the plausibility rules flip it.
	f := &Fallback{LLM: &stubCompleter{replies: []string{
		`{"match_type": "person", "metadata": {"title": "Seneca the Younger", "birth_year": -4, "death_year": -65}}`,
	}}}

	res, err := f.Resolve(context.Background(), types.Citation{Author: "Seneca"}, types.SourceMetadata{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.MatchType != types.MatchPerson {
		t.Fatalf("MatchType = %q", res.MatchType)
	}
	if res.Metadata["birth_year"] != 4 || res.Metadata["death_year"] != 65 {
		t.Fatalf("dates not corrected: %v", res.Metadata)
	}
}

func TestFallbackNotFound(t *testing.T) {
	f := &Fallback{LLM: &stubCompleter{replies: []string{
		`{"match_type": "not_found", "metadata": {}}`,
	}}}

	res, err := f.Resolve(context.Background(), types.Citation{Author: "Uncle Vanya's Neighbor"}, types.SourceMetadata{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.MatchType != types.MatchNotFound {
		t.Fatalf("MatchType = %q", res.MatchType)
	}
}

func TestFallbackUnknownVerdictIsError(t *testing.T) {
	f := &Fallback{LLM: &stubCompleter{replies: []string{
		`{"match_type": "maybe", "metadata": {}}`,
	}}}

	if _, err := f.Resolve(context.Background(), types.Citation{Author: "Anyone"}, types.SourceMetadata{}); err == nil {
		t.Fatal("unknown verdict accepted")
	}
}
