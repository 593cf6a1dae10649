// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/citation-engine/internal/llm"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Validator asks the model which candidate, if any, matches the
// citation. When the model rejects every candidate or cannot answer at
// all, the best fuzzy score decides, provided it clears the acceptance
// threshold. Model judgment and lexical scoring disagree often enough
// that a low-confidence model "no" must not override a very strong
// lexical match.
type Validator struct {
	LLM llm.Completer
	// FuzzyAccept is the minimum candidate score for the fuzzy
	// fallback.
	FuzzyAccept int
}

// Select returns the chosen candidate and the model's reasoning, or nil
// when no candidate matches. A model rejection (-1 or an out-of-range
// index) and transport or parse failures both fall back to the fuzzy
// score.
func (v *Validator) Select(ctx context.Context, cit types.Citation, cands []types.Candidate, source string) (*types.Candidate, string, error) {
	if len(cands) == 0 {
		return nil, "No candidates found.", nil
	}

	decision, err := v.ask(ctx, cit, cands, source)
	if err != nil {
		slog.Warn("match validation failed, using fuzzy fallback",
			"source", source, "author", cit.Author, "error", err)
		return v.fuzzyFallback(cands, "validation unavailable")
	}

	if decision.Index < 0 || decision.Index >= len(cands) {
		return v.fuzzyFallback(cands, "model rejected candidates")
	}
	return &cands[decision.Index], decision.Reasoning, nil
}

func (v *Validator) ask(ctx context.Context, cit types.Citation, cands []types.Candidate, source string) (types.MatchDecision, error) {
	raw, err := json.Marshal(cit)
	if err != nil {
		return types.MatchDecision{}, fmt.Errorf("marshaling citation: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a bibliography expert. Validate these candidates against the citation.\n")
	fmt.Fprintf(&b, "Citation: %s\n", raw)
	fmt.Fprintf(&b, "Candidates (%s):\n", source)
	for i, c := range cands {
		row, err := json.Marshal(c.Raw)
		if err != nil {
			return types.MatchDecision{}, fmt.Errorf("marshaling candidate %d: %w", i, err)
		}
		fmt.Fprintf(&b, "[%d] %s\n", i, row)
	}
	b.WriteString("\nAnalyze the candidates. Which one is the correct match?\n")
	b.WriteString("Return the index of the best match, or -1 if none are good.\n")
	b.WriteString("Respond with a JSON object: {\"reasoning\": \"...\", \"index\": <int>}\n")

	var decision types.MatchDecision
	if err := llm.CompleteJSON(ctx, v.LLM, b.String(), 0, &decision); err != nil {
		return types.MatchDecision{}, err
	}
	return decision, nil
}

// fuzzyFallback picks the highest-scoring candidate if it clears the
// threshold. Candidates arrive sorted by score, so the first one is the
// best.
func (v *Validator) fuzzyFallback(cands []types.Candidate, cause string) (*types.Candidate, string, error) {
	best := &cands[0]
	for i := range cands {
		if cands[i].Score > best.Score {
			best = &cands[i]
		}
	}
	if best.Score < v.FuzzyAccept {
		return nil, fmt.Sprintf("%s; best fuzzy score %d below %d", cause, best.Score, v.FuzzyAccept), nil
	}
	return best, fmt.Sprintf("%s; accepted on fuzzy score %d", cause, best.Score), nil
}
