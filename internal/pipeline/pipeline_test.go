// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdiddy/citation-engine/pkg/types"
)

type stubResolver struct {
	results map[string]types.ResolutionResult
	calls   int
}

func (s *stubResolver) Resolve(_ context.Context, cit types.Citation) types.ResolutionResult {
	s.calls++
	if res, ok := s.results[cit.Author]; ok {
		return res
	}
	return types.ResolutionResult{MatchType: types.MatchNotFound, Metadata: map[string]any{}}
}

type stubFallback struct {
	result types.ResolutionResult
	err    error
	calls  int
}

func (s *stubFallback) Resolve(_ context.Context, _ types.Citation, _ types.SourceMetadata) (types.ResolutionResult, error) {
	s.calls++
	// Metadata maps are mutated downstream; hand out a copy per call.
	meta := map[string]any{}
	for k, v := range s.result.Metadata {
		meta[k] = v
	}
	return types.ResolutionResult{
		MatchType: s.result.MatchType,
		Metadata:  meta,
		Reasoning: s.result.Reasoning,
	}, s.err
}

type stubEnricher struct {
	bios  map[string]map[string]any
	years map[string]int
}

func (s *stubEnricher) BookYear(_ context.Context, bookID, _, _ string) (int, bool) {
	y, ok := s.years[bookID]
	return y, ok
}

func (s *stubEnricher) AuthorBio(_ context.Context, name string) (map[string]any, bool) {
	bio, ok := s.bios[name]
	return bio, ok
}

func (s *stubEnricher) EnrichSource(_ context.Context, _ *types.SourceMetadata) {}

func (s *stubEnricher) Flush() error { return nil }

func newOrchestrator(r Resolver, f FallbackResolver, e Enricher) *Orchestrator {
	return &Orchestrator{
		Resolver:        r,
		Fallback:        f,
		Enricher:        e,
		CheckpointEvery: 5,
		CacheSimilarity: 0.9,
		Out:             &bytes.Buffer{},
	}
}

func personResult(name string, pageID string) types.ResolutionResult {
	return types.ResolutionResult{
		MatchType: types.MatchPerson,
		Metadata:  map[string]any{"page_id": pageID, "title": name},
	}
}

func TestRunAuthorCacheShortCircuits(t *testing.T) {
	resolver := &stubResolver{results: map[string]types.ResolutionResult{
		"Plutarch": personResult("Plutarch", "24517"),
	}}
	o := newOrchestrator(resolver, &stubFallback{}, &stubEnricher{})

	doc := types.Document{
		Source: types.SourceMetadata{Title: "Essays"},
		Citations: []types.CitationRecord{
			{Raw: types.Citation{Author: "Plutarch", Count: 1}},
			{Raw: types.Citation{Author: "Plutarch", Count: 2}},
			{Raw: types.Citation{Author: "plutarch", Count: 1}},
		},
	}

	artifact := filepath.Join(t.TempDir(), "essays.json")
	out, stats, err := o.Run(context.Background(), doc, artifact)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if resolver.calls != 1 {
		t.Fatalf("resolver called %d times; want 1", resolver.calls)
	}
	if stats.CacheHits != 2 {
		t.Fatalf("cache hits = %d; want 2", stats.CacheHits)
	}
	if len(out.Citations) != 3 {
		t.Fatalf("citations = %d", len(out.Citations))
	}
	// The cached clones keep their own raw citation.
	if out.Citations[1].Raw.Count != 2 {
		t.Errorf("cache hit lost its raw data: %+v", out.Citations[1].Raw)
	}
}

func TestRunFallbackMintsSyntheticID(t *testing.T) {
	fallback := &stubFallback{result: types.ResolutionResult{
		MatchType: types.MatchBook,
		Metadata:  map[string]any{"title": "Meditations", "authors": []any{"Marcus Aurelius"}},
	}}
	o := newOrchestrator(&stubResolver{}, fallback, &stubEnricher{})

	title := "Meditations"
	doc := types.Document{
		Source:    types.SourceMetadata{Title: "A History of Stoicism"},
		Citations: []types.CitationRecord{{Raw: types.Citation{Title: &title, Author: "Marcus Aurelius", Count: 1}}},
	}

	artifact := filepath.Join(t.TempDir(), "stoicism.json")
	out, stats, err := o.Run(context.Background(), doc, artifact)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.FallbackTriggered != 1 || stats.FallbackSuccess != 1 {
		t.Fatalf("fallback stats = %+v", stats)
	}
	rec := out.Citations[0]
	if rec.Edge.TargetType != "book" {
		t.Fatalf("target type = %q", rec.Edge.TargetType)
	}
	want := SyntheticBookID("Meditations", "Marcus Aurelius")
	if rec.Edge.TargetBookID != want {
		t.Fatalf("book id = %q; want %q", rec.Edge.TargetBookID, want)
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "essays.json")

	// A prior interrupted run resolved Plato already.
	prior := []types.CitationRecord{{
		Raw:         types.Citation{Author: "Plato", Count: 1},
		PersonMatch: map[string]any{"page_id": "26591", "title": "Plato"},
		Edge: types.Edge{
			TargetType:   "person",
			TargetPerson: map[string]any{"page_id": "26591", "title": "Plato"},
		},
	}}
	src := types.SourceMetadata{Title: "Essays"}
	if err := saveCheckpoint(checkpointPath(artifact), src, prior); err != nil {
		t.Fatalf("saveCheckpoint: %v", err)
	}

	resolver := &stubResolver{results: map[string]types.ResolutionResult{
		"Aristotle": personResult("Aristotle", "308"),
	}}
	o := newOrchestrator(resolver, &stubFallback{}, &stubEnricher{})

	doc := types.Document{
		Source: src,
		Citations: []types.CitationRecord{
			{Raw: types.Citation{Author: "Plato", Count: 1}},
			{Raw: types.Citation{Author: "Aristotle", Count: 1}},
		},
	}

	out, stats, err := o.Run(context.Background(), doc, artifact)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Plato came from the checkpoint; only Aristotle hit the resolver.
	if resolver.calls != 1 {
		t.Fatalf("resolver called %d times; want 1", resolver.calls)
	}
	if stats.WorkflowSuccess != 2 {
		t.Fatalf("workflow success = %d; want 2", stats.WorkflowSuccess)
	}
	if len(out.Citations) != 2 {
		t.Fatalf("citations = %d", len(out.Citations))
	}

	if _, err := os.Stat(checkpointPath(artifact)); !os.IsNotExist(err) {
		t.Error("checkpoint not removed after completion")
	}

	data, err := os.ReadFile(artifact)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	var persisted types.Document
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("parsing artifact: %v", err)
	}
	if len(persisted.Citations) != 2 {
		t.Fatalf("persisted citations = %d", len(persisted.Citations))
	}
}

func TestRunEnrichmentFillsPersonDates(t *testing.T) {
	resolver := &stubResolver{results: map[string]types.ResolutionResult{
		"Leo Tolstoy": personResult("Leo Tolstoy", "53010"),
	}}
	enricher := &stubEnricher{bios: map[string]map[string]any{
		"Leo Tolstoy": {"birth_year": 1828, "death_year": 1910},
	}}
	o := newOrchestrator(resolver, &stubFallback{}, enricher)

	doc := types.Document{
		Source:    types.SourceMetadata{Title: "Essays"},
		Citations: []types.CitationRecord{{Raw: types.Citation{Author: "Leo Tolstoy", Count: 1}}},
	}

	out, stats, err := o.Run(context.Background(), doc, filepath.Join(t.TempDir(), "essays.json"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.EnrichmentSuccess != 1 {
		t.Fatalf("enrichment success = %d", stats.EnrichmentSuccess)
	}
	person := out.Citations[0].Edge.TargetPerson
	if person == nil || person["birth_year"] != 1828 || person["death_year"] != 1910 {
		t.Fatalf("target person = %v", person)
	}
}

func TestRunEmptyDocumentWritesEmptyArtifact(t *testing.T) {
	o := newOrchestrator(&stubResolver{}, &stubFallback{}, &stubEnricher{})
	artifact := filepath.Join(t.TempDir(), "empty.json")

	out, stats, err := o.Run(context.Background(), types.Document{
		Source: types.SourceMetadata{Title: "Empty"},
	}, artifact)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total != 0 || len(out.Citations) != 0 {
		t.Fatalf("stats = %+v, citations = %d", stats, len(out.Citations))
	}
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}
