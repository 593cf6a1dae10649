// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/pdiddy/citation-engine/pkg/types"
)

func newBooksDB(t *testing.T) (*BookCatalog, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := CreateBooksSchema(db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	cat, err := OpenBooks(path)
	if err != nil {
		t.Fatalf("OpenBooks: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat, db
}

func insertBooks(t *testing.T, db *sql.DB, records ...map[string]any) {
	t.Helper()
	for _, r := range records {
		if err := InsertBook(db, r); err != nil {
			t.Fatalf("InsertBook: %v", err)
		}
	}
}

func TestSearchBooksRankedByFuzzyScore(t *testing.T) {
	cat, db := newBooksDB(t)
	insertBooks(t, db,
		map[string]any{"book_id": "1", "title": "War and Peace", "authors": []any{"Leo Tolstoy"}, "publication_year": 1869},
		map[string]any{"book_id": "2", "title": "War and Peace and War", "authors": []any{"Peter Turchin"}, "publication_year": 2006},
	)

	got := cat.SearchBooks(context.Background(), types.SearchQuery{Title: "War and Peace", Author: "Tolstoy"}, 5)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (author clause filters Turchin)", len(got))
	}
	if got[0].ID != "1" {
		t.Errorf("id = %q, want 1", got[0].ID)
	}
	if got[0].Score != 100 {
		t.Errorf("score = %d, want 100", got[0].Score)
	}
	if got[0].Year == nil || *got[0].Year != 1869 {
		t.Errorf("year = %v, want 1869", got[0].Year)
	}
}

func TestSearchBooksAuthorTokenFallback(t *testing.T) {
	cat, db := newBooksDB(t)
	insertBooks(t, db,
		map[string]any{"book_id": "7", "title": "The Brothers Karamazov", "authors": []any{"Fyodor Dostoevsky"}},
	)

	// "Dostoevsky Fyodor M." is not a phrase match for "Fyodor
	// Dostoevsky"; the tokenized fallback still finds it.
	got := cat.SearchBooks(context.Background(),
		types.SearchQuery{Title: "The Brothers Karamazov", Author: "Dostoevsky Fyodor"}, 5)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != "7" {
		t.Errorf("id = %q, want 7", got[0].ID)
	}
}

func TestSearchBooksEmptyQueryAndEmptyCatalog(t *testing.T) {
	cat, _ := newBooksDB(t)

	if got := cat.SearchBooks(context.Background(), types.SearchQuery{}, 5); got != nil {
		t.Errorf("empty query: got %v, want nil", got)
	}
	if got := cat.SearchBooks(context.Background(), types.SearchQuery{Title: "Anything"}, 5); len(got) != 0 {
		t.Errorf("empty catalog: got %d candidates, want 0", len(got))
	}
}

func TestSearchBooksMissingCatalogIsNotAnError(t *testing.T) {
	cat, err := OpenBooks(filepath.Join(t.TempDir(), "missing.db"))
	if err != nil {
		t.Fatalf("OpenBooks: %v", err)
	}
	defer cat.Close()

	// The table does not exist; the contract is an empty list.
	got := cat.SearchBooks(context.Background(), types.SearchQuery{Title: "The Republic"}, 5)
	if len(got) != 0 {
		t.Errorf("got %d candidates, want 0", len(got))
	}
}

func TestSearchPersonsExactTitleWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := CreatePersonsSchema(db); err != nil {
		t.Fatalf("schema: %v", err)
	}
	people := []map[string]any{
		{"page_id": 22151, "title": "Plato", "birth_year": -428, "death_year": -348},
		{"page_id": 900001, "title": "Plato (comic poet)", "birth_year": -450},
	}
	for _, p := range people {
		if err := InsertPerson(db, p); err != nil {
			t.Fatalf("InsertPerson: %v", err)
		}
	}

	cat, err := OpenPersons(path)
	if err != nil {
		t.Fatalf("OpenPersons: %v", err)
	}
	defer cat.Close()

	got := cat.SearchPersons(context.Background(), types.SearchQuery{Author: "Plato"}, 5)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Title != "Plato" {
		t.Errorf("first = %q, want exact title promoted", got[0].Title)
	}
	if got[0].BirthYear == nil || *got[0].BirthYear != -428 {
		t.Errorf("birth = %v, want -428", got[0].BirthYear)
	}
	if got[0].DeathYear == nil || *got[0].DeathYear != -348 {
		t.Errorf("death = %v, want -348", got[0].DeathYear)
	}
}
