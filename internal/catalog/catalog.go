// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog reads the two reference catalogs, books and notable
// persons, and answers fuzzy-ranked candidate searches against their
// SQLite FTS5 indices. Catalogs are read-only at resolution time; an
// unreachable or empty catalog produces an empty candidate list, never
// an error.
package catalog

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultLimit is the candidate count returned per search.
const DefaultLimit = 5

// open connects to an existing catalog database in read-only mode.
func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	return db, nil
}

// ftsEscape doubles embedded quotes so user text can be wrapped in an
// FTS5 quoted phrase.
func ftsEscape(text string) string {
	return strings.ReplaceAll(text, `"`, `""`)
}

// phrase wraps text as a column-filtered FTS5 phrase clause.
func phrase(column, text string) string {
	return fmt.Sprintf(`%s : "%s"`, column, ftsEscape(text))
}

func toIntPtr(v any) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case int:
		return &n
	case string:
		var i int
		if _, err := fmt.Sscanf(n, "%d", &i); err == nil {
			return &i
		}
	}
	return nil
}

func toStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
