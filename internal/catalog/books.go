// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pdiddy/citation-engine/internal/fuzzy"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// BookCatalog searches the books FTS index. Each row stores the full
// book record as JSON in the data column; title and authors are the
// indexed columns.
type BookCatalog struct {
	db *sql.DB
}

// OpenBooks opens the books catalog at path.
func OpenBooks(path string) (*BookCatalog, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return &BookCatalog{db: db}, nil
}

// Close releases the database connection.
func (c *BookCatalog) Close() error { return c.db.Close() }

// SearchBooks runs a fuzzy-ranked lookup for the query. Title and
// author clauses are ANDed; when the strict query matches nothing and
// the author has multiple words, each word becomes its own author
// clause so initials and name-order differences still match. Results
// are scored against the query by token-sort similarity and come back
// in deterministic order: score descending, FTS rank order for ties.
func (c *BookCatalog) SearchBooks(ctx context.Context, q types.SearchQuery, limit int) []types.Candidate {
	if q.IsEmpty() {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var clauses []string
	if q.Title != "" {
		clauses = append(clauses, phrase("title", q.Title))
	}
	if q.Author != "" {
		clauses = append(clauses, phrase("authors", q.Author))
	}

	rows := c.query(ctx, strings.Join(clauses, " AND "), limit)
	if len(rows) == 0 && q.Author != "" {
		if fallback := tokenizedAuthorQuery(q); fallback != "" {
			rows = c.query(ctx, fallback, limit)
		}
	}

	candidates := make([]types.Candidate, 0, len(rows))
	for i, raw := range rows {
		cand, ok := bookCandidate(raw)
		if !ok {
			continue
		}
		against := q.Title
		target := cand.Title
		if against == "" {
			against = q.Author
			target = strings.Join(cand.Authors, " ")
		}
		cand.Score = fuzzy.TokenSortRatio(against, target)
		cand.Raw["fts_order"] = i
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

// BookByID returns the full record for a catalog book id. The id lives
// inside the unindexed data column, so this is a json_extract scan, not
// an FTS match. Catalogs are small enough that this stays fast.
func (c *BookCatalog) BookByID(ctx context.Context, id string) (map[string]any, bool) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM books_fts WHERE json_extract(data, '$.book_id') = ? LIMIT 1`,
		id).Scan(&data)
	if err != nil {
		if err != sql.ErrNoRows {
			slog.Warn("book catalog id lookup failed", "book_id", id, "error", err)
		}
		return nil, false
	}
	var row map[string]any
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, false
	}
	return row, true
}

// tokenizedAuthorQuery builds the relaxed query: the title clause, if
// any, plus one authors clause per author token longer than one rune.
func tokenizedAuthorQuery(q types.SearchQuery) string {
	tokens := strings.Fields(q.Author)
	if len(tokens) < 2 {
		return ""
	}
	var clauses []string
	if q.Title != "" {
		clauses = append(clauses, phrase("title", q.Title))
	}
	added := 0
	for _, tok := range tokens {
		if len(tok) > 1 {
			clauses = append(clauses, phrase("authors", tok))
			added++
		}
	}
	if added == 0 {
		return ""
	}
	return strings.Join(clauses, " AND ")
}

func (c *BookCatalog) query(ctx context.Context, match string, limit int) []json.RawMessage {
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM books_fts WHERE books_fts MATCH ? ORDER BY rank LIMIT ?`,
		match, limit*4)
	if err != nil {
		// Syntax errors from hostile titles and missing tables both
		// land here; the contract is an empty result either way.
		slog.Warn("book catalog query failed", "match", match, "error", err)
		return nil
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			continue
		}
		out = append(out, json.RawMessage(data))
	}
	return out
}

func bookCandidate(data json.RawMessage) (types.Candidate, bool) {
	var row map[string]any
	if err := json.Unmarshal(data, &row); err != nil {
		return types.Candidate{}, false
	}
	id := stringField(row, "book_id")
	title := stringField(row, "title")
	if id == "" || title == "" {
		return types.Candidate{}, false
	}
	return types.Candidate{
		Kind:    types.KindBook,
		ID:      id,
		Title:   title,
		Authors: toStrings(row["authors"]),
		Year:    toIntPtr(row["publication_year"]),
		Raw:     row,
	}, true
}

func stringField(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
