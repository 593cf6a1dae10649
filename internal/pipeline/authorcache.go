// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"strings"

	"github.com/pdiddy/citation-engine/internal/fuzzy"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// authorCache remembers fully resolved results by author, so an
// author-only citation repeated later in the same document skips
// resolution entirely. Scoped to one document run; never persisted.
type authorCache struct {
	entries map[string]*types.CitationRecord
	// similarity is the minimum fuzzy ratio for a near-miss key hit.
	similarity float64
}

func newAuthorCache(similarity float64) *authorCache {
	return &authorCache{
		entries:    map[string]*types.CitationRecord{},
		similarity: similarity,
	}
}

// add stores a result under the normalized author name, and under the
// bare surname too so "Plutarch" hits a record stored for "Lucius
// Plutarch".
func (c *authorCache) add(author string, rec *types.CitationRecord) {
	key := NormalizeAuthor(author)
	if key == "" {
		return
	}
	c.entries[key] = rec
	if parts := strings.Fields(key); len(parts) > 1 {
		c.entries[parts[len(parts)-1]] = rec
	}
}

// lookup finds a cached record by exact normalized key, then by fuzzy
// comparison against every stored key. The best-scoring key wins, with
// the lexically smaller key breaking ties, so repeated runs hit the
// same record.
func (c *authorCache) lookup(author string) *types.CitationRecord {
	key := NormalizeAuthor(author)
	if key == "" {
		return nil
	}
	if rec, ok := c.entries[key]; ok {
		return rec
	}
	var bestKey string
	var bestScore float64
	for stored := range c.entries {
		score := fuzzy.Ratio(key, stored)
		if score < c.similarity {
			continue
		}
		if bestKey == "" || score > bestScore || (score == bestScore && stored < bestKey) {
			bestKey = stored
			bestScore = score
		}
	}
	if bestKey == "" {
		return nil
	}
	return c.entries[bestKey]
}
