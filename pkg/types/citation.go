// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data model for the citation
// resolution pipeline: raw citations handed down by the extraction
// stage, intermediate search and match structures, and the resolved
// records written to per-document artifacts.
package types

// Citation is a single reference extracted from a source text. Title is
// nil for author-only citations ("as Plutarch writes..."). Produced
// upstream; the resolution engine never mutates it.
type Citation struct {
	Title           *string  `json:"title"`
	Author          string   `json:"author"`
	CanonicalAuthor string   `json:"canonical_author,omitempty"`
	Contexts        []string `json:"contexts"`
	Commentaries    []string `json:"commentaries"`
	Count           int      `json:"count"`
}

// HasTitle reports whether the citation names a specific work.
func (c Citation) HasTitle() bool {
	return c.Title != nil && *c.Title != ""
}

// TitleOrEmpty returns the title, or "" when absent.
func (c Citation) TitleOrEmpty() string {
	if c.Title == nil {
		return ""
	}
	return *c.Title
}

// SearchQuery is one title/author pair tried against the catalogs.
// Generated per resolution attempt and never persisted.
type SearchQuery struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
}

// IsEmpty reports whether the query contains no searchable terms.
func (q SearchQuery) IsEmpty() bool {
	return q.Title == "" && q.Author == ""
}

// CandidateKind distinguishes book-catalog rows from person-catalog rows.
type CandidateKind string

const (
	KindBook   CandidateKind = "book"
	KindPerson CandidateKind = "person"
)

// Candidate is a catalog row under consideration for a citation,
// carrying a fuzzy similarity score in [0,100].
type Candidate struct {
	Kind      CandidateKind  `json:"kind"`
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Authors   []string       `json:"authors,omitempty"`
	Year      *int           `json:"year,omitempty"`
	BirthYear *int           `json:"birth_year,omitempty"`
	DeathYear *int           `json:"death_year,omitempty"`
	Score     int            `json:"score"`
	Raw       map[string]any `json:"raw,omitempty"`
}

// MatchDecision is the structured verdict of the LLM match validator:
// the index of the selected candidate, or -1 for "none of these".
type MatchDecision struct {
	Reasoning string `json:"reasoning"`
	Index     int    `json:"index"`
}

// MatchType is the terminal classification of a resolution attempt.
type MatchType string

const (
	MatchBook     MatchType = "book"
	MatchPerson   MatchType = "person"
	MatchNotFound MatchType = "not_found"
	MatchError    MatchType = "error"
	// MatchUnknown appears only on records produced before resolution
	// completed; it triggers the fallback resolver like not_found does.
	MatchUnknown MatchType = "unknown"
)

// Resolved reports whether the match type is a terminal success.
func (m MatchType) Resolved() bool {
	return m == MatchBook || m == MatchPerson
}

// ResolutionResult is the outcome of the state machine or the fallback
// resolver for one citation. Metadata holds the selected catalog row
// (book fields for MatchBook, person fields for MatchPerson).
type ResolutionResult struct {
	MatchType  MatchType      `json:"match_type"`
	Metadata   map[string]any `json:"metadata"`
	RetryCount int            `json:"retry_count"`
	Reasoning  string         `json:"reasoning,omitempty"`
}

// SourceMetadata describes the source document whose citations are
// being resolved.
type SourceMetadata struct {
	Title           string   `json:"title"`
	Authors         []string `json:"authors"`
	PublicationYear *int     `json:"publication_year,omitempty"`
	BookID          string   `json:"book_id,omitempty"`
}

// Edge links a source document to a resolved citation target. Exactly
// one of the target fields is meaningful for a given TargetType.
type Edge struct {
	TargetType      string         `json:"target_type"`
	TargetBookID    string         `json:"target_book_id,omitempty"`
	TargetAuthorIDs []string       `json:"target_author_ids"`
	TargetPerson    map[string]any `json:"target_person,omitempty"`
}

// CitationRecord is one fully processed citation: the raw input, the
// catalog matches, and the output edge. The JSON field names are the
// wire format consumed by the registration and visualization stages.
type CitationRecord struct {
	Raw          Citation       `json:"raw"`
	CatalogMatch map[string]any `json:"goodreads_match"`
	PersonMatch  map[string]any `json:"wikipedia_match"`
	Edge         Edge           `json:"edge"`
}

// Document is the per-source-document artifact.
type Document struct {
	Source    SourceMetadata   `json:"source"`
	Citations []CitationRecord `json:"citations"`
}

// Checkpoint is the resumable snapshot written during a document run.
// Complete is false for every checkpoint written mid-run; the file is
// deleted, never flipped, on successful completion.
type Checkpoint struct {
	Source    SourceMetadata   `json:"source"`
	Citations []CitationRecord `json:"citations"`
	Complete  bool             `json:"complete"`
}

// ResolutionStats is the per-document summary surfaced to the user.
type ResolutionStats struct {
	Total             int `json:"total"`
	CacheHits         int `json:"cache_hits"`
	WorkflowSuccess   int `json:"workflow_success"`
	WorkflowError     int `json:"workflow_error"`
	FallbackTriggered int `json:"fallback_triggered"`
	FallbackSuccess   int `json:"fallback_success"`
	EnrichmentSuccess int `json:"enrichment_success"`
}

// NotFound returns the count of citations that ended unresolved.
func (s ResolutionStats) NotFound() int {
	n := s.Total - s.WorkflowSuccess - s.WorkflowError - s.CacheHits
	if n < 0 {
		return 0
	}
	return n
}
