// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "citation-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LLMConfig holds settings for the OpenAI-compatible completion endpoint
// shared by query generation, match validation, fallback resolution, and
// enrichment.
type LLMConfig struct {
	// BaseURL is the API base (e.g. "https://openrouter.ai/api/v1").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is the authentication key for the endpoint.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Model is the model identifier (e.g. "deepseek/deepseek-v3.2").
	Model string `json:"model" yaml:"model"`

	// MaxRetries is the number of re-ask attempts for malformed
	// structured output (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// CatalogConfig locates the two reference catalogs.
type CatalogConfig struct {
	// BooksDB is the path to the books FTS index (SQLite).
	BooksDB string `json:"books_db" yaml:"books_db"`

	// PersonsDB is the path to the notable-persons FTS index (SQLite).
	PersonsDB string `json:"persons_db" yaml:"persons_db"`
}

// ResolverConfig holds settings for the per-citation resolution workflow.
type ResolverConfig struct {
	// MaxAttempts bounds query-generation attempts per citation (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// WorkflowTimeout is the wall-clock budget for resolving one
	// citation end to end (default 120s). Exceeding it yields an
	// error verdict for that citation only.
	WorkflowTimeout time.Duration `json:"workflow_timeout" yaml:"workflow_timeout"`

	// FuzzyAcceptScore is the minimum fuzzy score at which a top
	// candidate is accepted when the validator declines to choose
	// (default 70).
	FuzzyAcceptScore int `json:"fuzzy_accept_score" yaml:"fuzzy_accept_score"`

	// AuthorCacheSimilarity is the surname similarity threshold for
	// fuzzy author-cache hits (default 0.9). A tuning knob, not a
	// constant.
	AuthorCacheSimilarity float64 `json:"author_cache_similarity" yaml:"author_cache_similarity"`

	// AliasFile is the YAML alias table (canonical name -> variants).
	AliasFile string `json:"alias_file" yaml:"alias_file"`
}

// EnrichmentConfig locates the durable enrichment caches.
type EnrichmentConfig struct {
	// DatesFile maps book id -> original publication year.
	DatesFile string `json:"dates_file" yaml:"dates_file"`

	// AuthorsFile maps author name -> biographical metadata.
	AuthorsFile string `json:"authors_file" yaml:"authors_file"`
}

// WebLookupConfig holds settings for the encyclopedia web collaborator.
type WebLookupConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIBase is the encyclopedia API endpoint
	// (default "https://en.wikipedia.org/w/api.php").
	APIBase string `json:"api_base" yaml:"api_base"`

	// Disabled skips web lookups entirely; the cascade falls through
	// to the LLM source.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// PipelineConfig groups all stage configurations for a resolution run.
type PipelineConfig struct {
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Catalogs   CatalogConfig    `json:"catalogs" yaml:"catalogs"`
	Resolver   ResolverConfig   `json:"resolver" yaml:"resolver"`
	Enrichment EnrichmentConfig `json:"enrichment" yaml:"enrichment"`
	WebLookup  WebLookupConfig  `json:"web_lookup" yaml:"web_lookup"`

	// OutputDir receives per-document artifacts and checkpoints.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Concurrency is the number of documents resolved in parallel by
	// the batch command (default 1). Citations within one document are
	// always sequential.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// CheckpointEvery is the number of results between checkpoint
	// writes (default 5).
	CheckpointEvery int `json:"checkpoint_every" yaml:"checkpoint_every"`
}

// Normalize fills zero values with defaults.
func (c *PipelineConfig) Normalize() {
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 3
	}
	if c.Resolver.MaxAttempts <= 0 {
		c.Resolver.MaxAttempts = 3
	}
	if c.Resolver.WorkflowTimeout <= 0 {
		c.Resolver.WorkflowTimeout = 120 * time.Second
	}
	if c.Resolver.FuzzyAcceptScore <= 0 {
		c.Resolver.FuzzyAcceptScore = 70
	}
	if c.Resolver.AuthorCacheSimilarity <= 0 {
		c.Resolver.AuthorCacheSimilarity = 0.9
	}
	if c.WebLookup.APIBase == "" {
		c.WebLookup.APIBase = "https://en.wikipedia.org/w/api.php"
	}
	if c.WebLookup.Timeout <= 0 {
		c.WebLookup.Timeout = 20 * time.Second
	}
	if c.WebLookup.UserAgent == "" {
		c.WebLookup.UserAgent = "citation-engine/0.1"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 5
	}
}
