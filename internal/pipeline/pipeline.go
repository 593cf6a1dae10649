// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates the resolution of one document's
// citations: cache short-circuits, the resolution machine, the
// knowledge fallback, enrichment, checkpointing, and the final
// deduplicated artifact.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// Resolver is the catalog resolution surface, normally the resolve
// state machine.
type Resolver interface {
	Resolve(ctx context.Context, cit types.Citation) types.ResolutionResult
}

// FallbackResolver resolves from model knowledge when the catalogs
// fail.
type FallbackResolver interface {
	Resolve(ctx context.Context, cit types.Citation, src types.SourceMetadata) (types.ResolutionResult, error)
}

// Enricher fills publication years and author biographies.
type Enricher interface {
	BookYear(ctx context.Context, bookID, title, author string) (int, bool)
	AuthorBio(ctx context.Context, name string) (map[string]any, bool)
	EnrichSource(ctx context.Context, src *types.SourceMetadata)
	Flush() error
}

// Orchestrator processes one document end to end. Instances are not
// safe for concurrent use; run documents in parallel with one
// Orchestrator each, sharing the Enricher.
type Orchestrator struct {
	Resolver Resolver
	Fallback FallbackResolver
	Enricher Enricher

	// CheckpointEvery is the number of results between checkpoint
	// writes.
	CheckpointEvery int
	// CacheSimilarity is the author-cache fuzzy threshold.
	CacheSimilarity float64
	// Out receives progress lines and the summary report.
	Out io.Writer
}

// Run resolves every citation in the document and writes the artifact
// to artifactPath. An interrupted earlier run is resumed from its
// checkpoint; a completed run deletes it.
func (o *Orchestrator) Run(ctx context.Context, doc types.Document, artifactPath string) (types.Document, types.ResolutionStats, error) {
	stats := types.ResolutionStats{Total: len(doc.Citations)}

	o.Enricher.EnrichSource(ctx, &doc.Source)

	if len(doc.Citations) == 0 {
		out := types.Document{Source: doc.Source, Citations: []types.CitationRecord{}}
		return out, stats, writeArtifact(artifactPath, out)
	}

	cpPath := checkpointPath(artifactPath)
	results := loadCheckpoint(cpPath)
	if len(results) > 0 {
		fmt.Fprintf(o.Out, "resuming from checkpoint: %d already processed\n", len(results))
	}

	processed := map[[2]string]bool{}
	cache := newAuthorCache(o.CacheSimilarity)
	for i := range results {
		raw := results[i].Raw
		processed[[2]string{raw.Author, raw.TitleOrEmpty()}] = true
		if raw.Author != "" {
			cache.add(raw.Author, &results[i])
		}
		if resolvedType(results[i].Edge.TargetType) {
			stats.WorkflowSuccess++
		}
	}

	for _, in := range doc.Citations {
		cit := in.Raw
		if processed[[2]string{cit.Author, cit.TitleOrEmpty()}] {
			continue
		}
		if err := ctx.Err(); err != nil {
			// Persist progress before surfacing the cancellation.
			if saveErr := saveCheckpoint(cpPath, doc.Source, results); saveErr != nil {
				slog.Warn("checkpoint save on cancel failed", "error", saveErr)
			}
			return types.Document{}, stats, fmt.Errorf("document run interrupted: %w", err)
		}

		rec := o.processCitation(ctx, cit, doc.Source, cache, &stats)
		results = append(results, rec)

		if cit.Author != "" && rec.Edge.TargetType != string(types.MatchError) {
			cache.add(cit.Author, &results[len(results)-1])
		}

		if o.CheckpointEvery > 0 && len(results)%o.CheckpointEvery == 0 {
			if err := saveCheckpoint(cpPath, doc.Source, results); err != nil {
				slog.Warn("checkpoint save failed", "error", err)
			}
		}
	}

	o.printSummary(stats)

	if err := o.Enricher.Flush(); err != nil {
		slog.Warn("flushing enrichment caches failed", "error", err)
	}

	deduped, merges := Deduplicate(results)
	if len(merges) > 0 {
		fmt.Fprintf(o.Out, "deduplicated %d citation groups\n", len(merges))
	}

	out := types.Document{Source: doc.Source, Citations: deduped}
	if err := writeArtifact(artifactPath, out); err != nil {
		return types.Document{}, stats, err
	}
	removeCheckpoint(cpPath)
	return out, stats, nil
}

// processCitation runs one citation through cache, machine, fallback,
// and enrichment, returning the finished record.
func (o *Orchestrator) processCitation(ctx context.Context, cit types.Citation, src types.SourceMetadata, cache *authorCache, stats *types.ResolutionStats) types.CitationRecord {
	// Author-only citations can reuse an earlier resolution wholesale;
	// titled citations are edition-specific and always resolve.
	if !cit.HasTitle() && cit.Author != "" {
		if hit := cache.lookup(cit.Author); hit != nil {
			stats.CacheHits++
			slog.Info("author cache hit", "author", cit.Author)
			clone := cloneRecord(hit)
			clone.Raw = cit
			return clone
		}
	}

	res := o.Resolver.Resolve(ctx, cit)
	matchType := res.MatchType
	metadata := res.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	switch {
	case matchType == types.MatchError:
		stats.WorkflowError++
	case matchType.Resolved():
		stats.WorkflowSuccess++
	}

	if !matchType.Resolved() {
		stats.FallbackTriggered++
		slog.Info("fallback triggered",
			"title", cit.TitleOrEmpty(), "author", cit.Author, "reason", matchType)

		fres, err := o.Fallback.Resolve(ctx, cit, src)
		if err != nil {
			slog.Warn("fallback failed", "author", cit.Author, "error", err)
		} else if fres.MatchType.Resolved() {
			stats.FallbackSuccess++
			matchType = fres.MatchType
			metadata = fres.Metadata
			if matchType == types.MatchBook && metadata["book_id"] == nil {
				metadata["book_id"] = SyntheticBookID(cit.TitleOrEmpty(), cit.Author)
			}
		}
	}

	bookID := metaString(metadata, "book_id")
	wikiMatch, _ := metadata["wikipedia_match"].(map[string]any)
	if matchType == types.MatchPerson && wikiMatch == nil {
		wikiMatch = metadata
	}

	o.enrichCitation(ctx, cit, matchType, metadata, bookID, &wikiMatch, stats)

	var authorIDs []string
	if id := metaString(metadata, "author_id"); id != "" {
		authorIDs = append(authorIDs, id)
	} else if ids, ok := metadata["author_ids"].([]any); ok {
		for _, v := range ids {
			authorIDs = append(authorIDs, fmt.Sprint(v))
		}
	}

	rec := types.CitationRecord{
		Raw:         cit,
		PersonMatch: wikiMatch,
		Edge: types.Edge{
			TargetType:      string(matchType),
			TargetBookID:    bookID,
			TargetAuthorIDs: authorIDs,
			TargetPerson:    wikiMatch,
		},
	}
	if matchType == types.MatchBook {
		rec.CatalogMatch = metadata
	}
	return rec
}

// enrichCitation adds the publication year and author dates, skipping
// whatever the resolution already supplied.
func (o *Orchestrator) enrichCitation(ctx context.Context, cit types.Citation, matchType types.MatchType, metadata map[string]any, bookID string, wikiMatch *map[string]any, stats *types.ResolutionStats) {
	targetTitle := metaString(metadata, "title")
	if targetTitle == "" {
		targetTitle = cit.TitleOrEmpty()
	}
	targetAuthor := firstAuthor(metadata)
	if targetAuthor == "" {
		targetAuthor = cit.Author
	}

	if matchType == types.MatchBook && targetTitle != "" && metadata["original_year"] == nil {
		if year, ok := o.Enricher.BookYear(ctx, bookID, targetTitle, targetAuthor); ok {
			metadata["original_year"] = year
		}
	}

	if targetAuthor == "" || matchType == types.MatchError {
		return
	}
	bio, ok := o.Enricher.AuthorBio(ctx, targetAuthor)
	if !ok {
		return
	}
	stats.EnrichmentSuccess++

	if *wikiMatch == nil {
		*wikiMatch = map[string]any{"title": targetAuthor}
	}
	for _, key := range []string{"birth_year", "death_year"} {
		if bio[key] != nil && (*wikiMatch)[key] == nil {
			(*wikiMatch)[key] = bio[key]
		}
	}
	if genre := bio["main_genre"]; genre != nil && (*wikiMatch)["main_genre"] == nil {
		(*wikiMatch)["main_genre"] = genre
	}
}

// SyntheticBookID mints a stable id for a book resolved outside the
// catalog, from the normalized title and author.
func SyntheticBookID(title, author string) string {
	slug := NormalizeTitle(title) + "|" + NormalizeAuthor(author)
	sum := sha256.Sum256([]byte(slug))
	return fmt.Sprintf("web_%x", sum[:4])
}

func (o *Orchestrator) printSummary(stats types.ResolutionStats) {
	pct := 0
	if stats.Total > 0 {
		pct = 100 * stats.WorkflowSuccess / stats.Total
	}
	fmt.Fprintln(o.Out)
	fmt.Fprintln(o.Out, "==================================================")
	fmt.Fprintln(o.Out, "           RESOLUTION SUMMARY")
	fmt.Fprintln(o.Out, "==================================================")
	fmt.Fprintf(o.Out, "  Total Citations:    %d\n", stats.Total)
	fmt.Fprintf(o.Out, "  Cache Hits:         %d\n", stats.CacheHits)
	fmt.Fprintf(o.Out, "  Workflow Success:   %d (%d%%)\n", stats.WorkflowSuccess, pct)
	fmt.Fprintf(o.Out, "  Not Found:          %d\n", stats.NotFound())
	fmt.Fprintf(o.Out, "  Errors:             %d\n", stats.WorkflowError)
	fmt.Fprintf(o.Out, "  Fallback Triggered: %d\n", stats.FallbackTriggered)
	fmt.Fprintf(o.Out, "  Fallback Success:   %d\n", stats.FallbackSuccess)
	fmt.Fprintf(o.Out, "  Authors Enriched:   %d\n", stats.EnrichmentSuccess)
	fmt.Fprintln(o.Out, "==================================================")
	fmt.Fprintln(o.Out)
}

// writeArtifact writes the document as indented JSON.
func writeArtifact(path string, doc types.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}

func resolvedType(targetType string) bool {
	return types.MatchType(targetType).Resolved()
}

// cloneRecord deep-copies a record through JSON, so cache hits never
// share mutable maps with the original.
func cloneRecord(rec *types.CitationRecord) types.CitationRecord {
	data, err := json.Marshal(rec)
	if err != nil {
		return *rec
	}
	var out types.CitationRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return *rec
	}
	return out
}

func metaString(meta map[string]any, key string) string {
	switch v := meta[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int:
		return fmt.Sprintf("%d", v)
	}
	return ""
}

func firstAuthor(meta map[string]any) string {
	switch v := meta["authors"].(type) {
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	case string:
		return v
	}
	return ""
}
