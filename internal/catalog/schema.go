// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// CreateBooksSchema creates the books FTS5 index. Used by the external
// index builders and by tests; resolution itself only reads.
func CreateBooksSchema(db *sql.DB) error {
	_, err := db.Exec(
		`CREATE VIRTUAL TABLE IF NOT EXISTS books_fts USING fts5(title, authors, data UNINDEXED)`)
	if err != nil {
		return fmt.Errorf("creating books schema: %w", err)
	}
	return nil
}

// CreatePersonsSchema creates the persons FTS5 index.
func CreatePersonsSchema(db *sql.DB) error {
	_, err := db.Exec(
		`CREATE VIRTUAL TABLE IF NOT EXISTS people_fts USING fts5(title, data UNINDEXED)`)
	if err != nil {
		return fmt.Errorf("creating persons schema: %w", err)
	}
	return nil
}

// InsertBook adds one book row. The record must carry book_id and
// title; authors is a list of names.
func InsertBook(db *sql.DB, record map[string]any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling book record: %w", err)
	}
	title, _ := record["title"].(string)
	var authors string
	for _, a := range toStrings(record["authors"]) {
		if authors != "" {
			authors += "; "
		}
		authors += a
	}
	_, err = db.Exec(`INSERT INTO books_fts (title, authors, data) VALUES (?, ?, ?)`,
		title, authors, string(data))
	if err != nil {
		return fmt.Errorf("inserting book: %w", err)
	}
	return nil
}

// InsertPerson adds one person row keyed by article title.
func InsertPerson(db *sql.DB, record map[string]any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling person record: %w", err)
	}
	title, _ := record["title"].(string)
	_, err = db.Exec(`INSERT INTO people_fts (title, data) VALUES (?, ?)`,
		title, string(data))
	if err != nil {
		return fmt.Errorf("inserting person: %w", err)
	}
	return nil
}
