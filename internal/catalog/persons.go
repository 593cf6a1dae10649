// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/pdiddy/citation-engine/internal/fuzzy"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// PersonCatalog searches the notable-persons FTS index. Rows carry the
// person record as JSON: page id, article title, birth/death years,
// and categories.
type PersonCatalog struct {
	db *sql.DB
}

// OpenPersons opens the persons catalog at path.
func OpenPersons(path string) (*PersonCatalog, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return &PersonCatalog{db: db}, nil
}

// Close releases the database connection.
func (c *PersonCatalog) Close() error { return c.db.Close() }

// SearchPersons looks the query's author name up in the persons index.
// The FTS query over-fetches so exact-title matches can be promoted
// ahead of lexically similar but more obscure pages, then fuzzy scores
// against the queried name decide the final order.
func (c *PersonCatalog) SearchPersons(ctx context.Context, q types.SearchQuery, limit int) []types.Candidate {
	name := q.Author
	if name == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	fetch := limit * 10
	if fetch < 50 {
		fetch = 50
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM people_fts WHERE people_fts MATCH ? ORDER BY rank LIMIT ?`,
		phrase("title", name), fetch)
	if err != nil {
		slog.Warn("person catalog query failed", "name", name, "error", err)
		return nil
	}
	defer rows.Close()

	var candidates []types.Candidate
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			continue
		}
		cand, ok := personCandidate(data)
		if !ok {
			continue
		}
		cand.Score = fuzzy.TokenSortRatio(name, cand.Title)
		if strings.EqualFold(cand.Title, name) {
			cand.Score = 100
		}
		candidates = append(candidates, cand)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func personCandidate(data []byte) (types.Candidate, bool) {
	var row map[string]any
	if err := json.Unmarshal(data, &row); err != nil {
		return types.Candidate{}, false
	}
	id := stringField(row, "page_id")
	title := stringField(row, "title")
	if title == "" {
		return types.Candidate{}, false
	}
	return types.Candidate{
		Kind:      types.KindPerson,
		ID:        id,
		Title:     title,
		BirthYear: toIntPtr(row["birth_year"]),
		DeathYear: toIntPtr(row["death_year"]),
		Raw:       row,
	}, true
}
