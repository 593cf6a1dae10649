// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve matches informal citations against the book and
// person catalogs: query generation, candidate search, model
// validation, and the retry loop tying them together.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// BookSearcher is the book-catalog surface the machine needs.
type BookSearcher interface {
	SearchBooks(ctx context.Context, q types.SearchQuery, limit int) []types.Candidate
}

// PersonSearcher is the person-catalog surface the machine needs.
type PersonSearcher interface {
	SearchPersons(ctx context.Context, q types.SearchQuery, limit int) []types.Candidate
}

// machineState names the phases of one resolution pass. The machine is
// a plain loop over these states; retries re-enter stateQueries with a
// bumped attempt counter.
type machineState int

const (
	stateQueries machineState = iota
	stateSearch
	stateValidate
	stateAggregate
)

// searched holds the per-catalog candidate lists produced by
// stateSearch and consumed by stateValidate.
type searched struct {
	books   []types.Candidate
	persons []types.Candidate
}

// validated holds the per-catalog selections.
type validated struct {
	book          *types.Candidate
	person        *types.Candidate
	bookReasons   string
	personReasons string
}

// Machine resolves one citation at a time against both catalogs.
type Machine struct {
	Books     BookSearcher
	Persons   PersonSearcher
	Queries   *QueryGenerator
	Validator *Validator

	// MaxAttempts bounds the retry counter; the total number of passes
	// is MaxAttempts+1 (the free deterministic pass plus retries).
	MaxAttempts int
	// Timeout bounds one citation end to end.
	Timeout time.Duration
	// Limit is the per-catalog candidate cap.
	Limit int
}

// Resolve runs the citation through the state loop. It never returns an
// error: failures become a result with MatchError so one bad citation
// cannot sink a document run.
func (m *Machine) Resolve(ctx context.Context, cit types.Citation) types.ResolutionResult {
	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	limit := m.Limit
	if limit <= 0 {
		limit = 5
	}

	attempt := 0
	state := stateQueries

	var queries []types.SearchQuery
	var found searched
	var picked validated

	for {
		if err := ctx.Err(); err != nil {
			return errorResult(attempt, fmt.Errorf("resolution timed out: %w", err))
		}

		switch state {
		case stateQueries:
			qs, err := m.Queries.Generate(ctx, cit, attempt)
			if err != nil {
				return errorResult(attempt, err)
			}
			if len(qs) == 0 {
				return errorResult(attempt, errors.New("no queries generated"))
			}
			queries = qs
			state = stateSearch

		case stateSearch:
			found = m.search(ctx, queries, limit)
			state = stateValidate

		case stateValidate:
			var err error
			picked, err = m.validate(ctx, cit, found)
			if err != nil {
				return errorResult(attempt, err)
			}
			state = stateAggregate

		case stateAggregate:
			if result, done := aggregate(picked, attempt); done {
				return result
			}
			if attempt >= m.MaxAttempts {
				return types.ResolutionResult{
					MatchType:  types.MatchNotFound,
					Metadata:   map[string]any{},
					RetryCount: attempt,
					Reasoning:  "Max retries exceeded.",
				}
			}
			attempt++
			slog.Debug("retrying resolution", "author", cit.Author, "attempt", attempt)
			state = stateQueries
		}
	}
}

// search fans every query out to both catalogs concurrently and merges
// the per-query results, deduplicated by id and capped at limit.
func (m *Machine) search(ctx context.Context, queries []types.SearchQuery, limit int) searched {
	var (
		mu      sync.Mutex
		books   []types.Candidate
		persons []types.Candidate
		wg      sync.WaitGroup
	)

	for _, q := range queries {
		wg.Add(2)
		go func(q types.SearchQuery) {
			defer wg.Done()
			got := m.Books.SearchBooks(ctx, q, limit)
			mu.Lock()
			books = append(books, got...)
			mu.Unlock()
		}(q)
		go func(q types.SearchQuery) {
			defer wg.Done()
			// Person pages are searched by name only; a book title in
			// the query would drag the match toward the wrong pages.
			got := m.Persons.SearchPersons(ctx, types.SearchQuery{Author: q.Author}, limit)
			mu.Lock()
			persons = append(persons, got...)
			mu.Unlock()
		}(q)
	}
	wg.Wait()

	return searched{
		books:   dedupCandidates(books, limit),
		persons: dedupCandidates(persons, limit),
	}
}

// validate runs the model over each non-empty candidate list
// independently.
func (m *Machine) validate(ctx context.Context, cit types.Citation, found searched) (validated, error) {
	var out validated
	var err error

	out.book, out.bookReasons, err = m.Validator.Select(ctx, cit, found.books, "books")
	if err != nil {
		return out, fmt.Errorf("validating book candidates: %w", err)
	}
	out.person, out.personReasons, err = m.Validator.Select(ctx, cit, found.persons, "persons")
	if err != nil {
		return out, fmt.Errorf("validating person candidates: %w", err)
	}
	return out, nil
}

// aggregate turns the selections into a final result. A book match
// outranks a person match; neither means retry.
func aggregate(picked validated, attempt int) (types.ResolutionResult, bool) {
	switch {
	case picked.book != nil:
		meta := cloneMeta(picked.book.Raw)
		if picked.person != nil {
			meta["wikipedia_match"] = picked.person.Raw
		}
		return types.ResolutionResult{
			MatchType:  types.MatchBook,
			Metadata:   meta,
			RetryCount: attempt,
			Reasoning:  picked.bookReasons,
		}, true

	case picked.person != nil:
		return types.ResolutionResult{
			MatchType:  types.MatchPerson,
			Metadata:   cloneMeta(picked.person.Raw),
			RetryCount: attempt,
			Reasoning:  picked.personReasons,
		}, true
	}
	return types.ResolutionResult{}, false
}

// dedupCandidates keeps the best-scoring entry per id, sorted by score
// descending and capped at limit.
func dedupCandidates(cands []types.Candidate, limit int) []types.Candidate {
	best := map[string]types.Candidate{}
	var order []string
	for _, c := range cands {
		prev, ok := best[c.ID]
		if !ok {
			order = append(order, c.ID)
			best[c.ID] = c
			continue
		}
		if c.Score > prev.Score {
			best[c.ID] = c
		}
	}

	out := make([]types.Candidate, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func errorResult(attempt int, err error) types.ResolutionResult {
	slog.Warn("resolution error", "error", err)
	return types.ResolutionResult{
		MatchType:  types.MatchError,
		Metadata:   map[string]any{},
		RetryCount: attempt,
		Reasoning:  err.Error(),
	}
}

func cloneMeta(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
