// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"log/slog"
	"strings"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// Merge describes one dedup group collapse, for reporting.
type Merge struct {
	Author  string
	Title   string
	Members int
	KeptID  string
}

// Deduplicate collapses citations of the same work that resolved to
// different catalog editions. Citations are grouped by normalized
// (author, title); groups whose members all share one book id are left
// alone. Within a collapsing group the keeper is the record with a real
// catalog id over a synthetic one, then the higher raw count. Contexts
// and commentaries are unioned, counts summed.
func Deduplicate(citations []types.CitationRecord) ([]types.CitationRecord, []Merge) {
	type groupKey struct{ author, title string }

	groups := map[groupKey][]int{}
	var keys []groupKey
	for i, rec := range citations {
		title := rec.Raw.TitleOrEmpty()
		if title == "" {
			continue
		}
		author := rec.Raw.CanonicalAuthor
		if author == "" {
			author = rec.Raw.Author
		}
		key := groupKey{
			author: strings.ToLower(author),
			title:  NormalizeTitle(title),
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], i)
	}

	removed := map[int]bool{}
	var merges []Merge

	for _, key := range keys {
		indices := groups[key]
		if len(indices) < 2 || singleBookID(citations, indices) {
			continue
		}

		keeper := indices[0]
		for _, idx := range indices[1:] {
			keeper = pickKeeper(citations, keeper, idx)
		}
		for _, idx := range indices {
			if idx == keeper {
				continue
			}
			mergeInto(&citations[keeper], &citations[idx])
			removed[idx] = true
		}

		merge := Merge{
			Author:  key.author,
			Title:   key.title,
			Members: len(indices),
			KeptID:  citations[keeper].Edge.TargetBookID,
		}
		merges = append(merges, merge)
		slog.Warn("merged duplicate citations",
			"author", merge.Author, "title", merge.Title,
			"members", merge.Members, "kept_book_id", merge.KeptID)
	}

	if len(removed) == 0 {
		return citations, nil
	}
	out := make([]types.CitationRecord, 0, len(citations)-len(removed))
	for i, rec := range citations {
		if !removed[i] {
			out = append(out, rec)
		}
	}
	return out, merges
}

// singleBookID reports whether every member of the group points at the
// same book, in which case there is nothing to merge.
func singleBookID(citations []types.CitationRecord, indices []int) bool {
	first := citations[indices[0]].Edge.TargetBookID
	for _, idx := range indices[1:] {
		if citations[idx].Edge.TargetBookID != first {
			return false
		}
	}
	return true
}

// realID reports whether a book id came from the catalog rather than
// the fallback resolver.
func realID(id string) bool {
	return id != "" && !strings.HasPrefix(id, "web_")
}

// pickKeeper chooses between two group members: real id beats
// synthetic, then the higher raw count wins, ties keeping the earlier
// record.
func pickKeeper(citations []types.CitationRecord, a, b int) int {
	realA := realID(citations[a].Edge.TargetBookID)
	realB := realID(citations[b].Edge.TargetBookID)
	if realA != realB {
		if realA {
			return a
		}
		return b
	}
	if citations[b].Raw.Count > citations[a].Raw.Count {
		return b
	}
	return a
}

// mergeInto folds the duplicate's raw data into the keeper.
func mergeInto(keeper, dupe *types.CitationRecord) {
	keeper.Raw.Contexts = unionStrings(keeper.Raw.Contexts, dupe.Raw.Contexts)
	keeper.Raw.Commentaries = unionStrings(keeper.Raw.Commentaries, dupe.Raw.Commentaries)
	keeper.Raw.Count += dupe.Raw.Count
}

func unionStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			base = append(base, s)
		}
	}
	return base
}
