// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/citation-engine/pkg/types"
)

type stubBooks struct {
	cands []types.Candidate
	calls atomic.Int32
}

func (s *stubBooks) SearchBooks(_ context.Context, _ types.SearchQuery, _ int) []types.Candidate {
	s.calls.Add(1)
	return s.cands
}

type stubPersons struct {
	cands []types.Candidate
	calls atomic.Int32
}

func (s *stubPersons) SearchPersons(_ context.Context, _ types.SearchQuery, _ int) []types.Candidate {
	s.calls.Add(1)
	return s.cands
}

func newMachine(books *stubBooks, persons *stubPersons, queryLLM, validateLLM *stubCompleter) *Machine {
	return &Machine{
		Books:       books,
		Persons:     persons,
		Queries:     &QueryGenerator{LLM: queryLLM},
		Validator:   &Validator{LLM: validateLLM, FuzzyAccept: 70},
		MaxAttempts: 3,
		Timeout:     30 * time.Second,
	}
}

func TestResolveRetriesAtMostThreeTimes(t *testing.T) {
	queryLLM := &stubCompleter{replies: []string{
		`{"queries": [{"author": "Psellus"}]}`,
		`{"queries": [{"author": "Michael Psellus"}]}`,
		`{"queries": [{"author": "Psellos"}]}`,
	}}
	m := newMachine(&stubBooks{}, &stubPersons{}, queryLLM, &stubCompleter{})

	res := m.Resolve(context.Background(), types.Citation{Author: "Psellus, Michael"})

	if res.MatchType != types.MatchNotFound {
		t.Fatalf("MatchType = %q", res.MatchType)
	}
	if res.RetryCount != 3 {
		t.Fatalf("RetryCount = %d; want 3", res.RetryCount)
	}
	// The first pass is rule-based; the model generates queries only
	// for the three retries.
	if queryLLM.calls != 3 {
		t.Fatalf("query model called %d times; want 3", queryLLM.calls)
	}
}

func TestResolveBookOutranksPerson(t *testing.T) {
	books := &stubBooks{cands: []types.Candidate{{
		Kind: types.KindBook, ID: "b1", Title: "Confessions", Score: 92,
		Raw: map[string]any{"book_id": "b1", "title": "Confessions"},
	}}}
	persons := &stubPersons{cands: []types.Candidate{{
		Kind: types.KindPerson, ID: "p1", Title: "Augustine of Hippo", Score: 100,
		Raw: map[string]any{"page_id": "p1", "title": "Augustine of Hippo"},
	}}}
	validateLLM := &stubCompleter{replies: []string{
		`{"reasoning": "title match", "index": 0}`,
		`{"reasoning": "name match", "index": 0}`,
	}}

	m := newMachine(books, persons, &stubCompleter{}, validateLLM)
	res := m.Resolve(context.Background(), types.Citation{
		Title:  strPtr("Confessions"),
		Author: "Augustine",
	})

	if res.MatchType != types.MatchBook {
		t.Fatalf("MatchType = %q; want book", res.MatchType)
	}
	if res.Metadata["book_id"] != "b1" {
		t.Fatalf("metadata = %v", res.Metadata)
	}
	if _, ok := res.Metadata["wikipedia_match"]; !ok {
		t.Error("person selection not carried alongside the book match")
	}
	if res.RetryCount != 0 {
		t.Errorf("RetryCount = %d", res.RetryCount)
	}
}

func TestResolvePersonOnlyMatch(t *testing.T) {
	persons := &stubPersons{cands: []types.Candidate{{
		Kind: types.KindPerson, ID: "p2", Title: "Plato", Score: 100,
		Raw: map[string]any{"page_id": "p2", "title": "Plato", "birth_year": -428},
	}}}
	validateLLM := &stubCompleter{replies: []string{
		`{"reasoning": "name match", "index": 0}`,
	}}

	m := newMachine(&stubBooks{}, persons, &stubCompleter{}, validateLLM)
	res := m.Resolve(context.Background(), types.Citation{Author: "Plato"})

	if res.MatchType != types.MatchPerson {
		t.Fatalf("MatchType = %q; want person", res.MatchType)
	}
	if res.Metadata["page_id"] != "p2" {
		t.Fatalf("metadata = %v", res.Metadata)
	}
}

func TestResolveTimeoutBecomesError(t *testing.T) {
	m := newMachine(&stubBooks{}, &stubPersons{}, &stubCompleter{}, &stubCompleter{})
	m.Timeout = time.Nanosecond

	res := m.Resolve(context.Background(), types.Citation{Author: "Anyone"})

	if res.MatchType != types.MatchError {
		t.Fatalf("MatchType = %q; want error", res.MatchType)
	}
}

func TestResolveQueryGenerationErrorTerminates(t *testing.T) {
	// Deterministic pass yields nothing to find, and the retry model is
	// broken; the run must end as an error, not hang.
	queryLLM := &stubCompleter{} // no scripted replies: every call fails
	m := newMachine(&stubBooks{}, &stubPersons{}, queryLLM, &stubCompleter{})

	res := m.Resolve(context.Background(), types.Citation{Author: "Nobody"})
	if res.MatchType != types.MatchError {
		t.Fatalf("MatchType = %q; want error", res.MatchType)
	}
}

func TestDedupCandidatesKeepsBestScore(t *testing.T) {
	cands := []types.Candidate{
		{ID: "a", Score: 50},
		{ID: "b", Score: 90},
		{ID: "a", Score: 80},
		{ID: "c", Score: 70},
	}
	got := dedupCandidates(cands, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "a" || got[1].Score != 80 {
		t.Fatalf("got %+v", got)
	}
}
