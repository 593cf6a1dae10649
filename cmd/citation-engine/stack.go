// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/pdiddy/citation-engine/internal/catalog"
	"github.com/pdiddy/citation-engine/internal/enrich"
	"github.com/pdiddy/citation-engine/internal/llm"
	"github.com/pdiddy/citation-engine/internal/pipeline"
	"github.com/pdiddy/citation-engine/internal/resolve"
	"github.com/pdiddy/citation-engine/internal/webinfo"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// pipelineConfig assembles the run configuration from the viper config
// file, environment, and loaded secrets.
func pipelineConfig() types.PipelineConfig {
	cfg := types.PipelineConfig{
		LLM: types.LLMConfig{
			BaseURL:    viper.GetString("llm.base_url"),
			APIKey:     secretDefault("llm-api-key", viper.GetString("llm.api_key")),
			Model:      viper.GetString("llm.model"),
			MaxRetries: viper.GetInt("llm.max_retries"),
		},
		Catalogs: types.CatalogConfig{
			BooksDB:   viper.GetString("catalogs.books_db"),
			PersonsDB: viper.GetString("catalogs.persons_db"),
		},
		Resolver: types.ResolverConfig{
			MaxAttempts:           viper.GetInt("resolver.max_attempts"),
			WorkflowTimeout:       viper.GetDuration("resolver.workflow_timeout"),
			FuzzyAcceptScore:      viper.GetInt("resolver.fuzzy_accept_score"),
			AuthorCacheSimilarity: viper.GetFloat64("resolver.author_cache_similarity"),
			AliasFile:             viper.GetString("resolver.alias_file"),
		},
		Enrichment: types.EnrichmentConfig{
			DatesFile:   viper.GetString("enrichment.dates_file"),
			AuthorsFile: viper.GetString("enrichment.authors_file"),
		},
		WebLookup: types.WebLookupConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("web_lookup.timeout"),
				UserAgent: secretDefault("wiki-user-agent", viper.GetString("web_lookup.user_agent")),
			},
			APIBase:  viper.GetString("web_lookup.api_base"),
			Disabled: viper.GetBool("web_lookup.disabled"),
		},
		OutputDir:       viper.GetString("output_dir"),
		Concurrency:     viper.GetInt("concurrency"),
		CheckpointEvery: viper.GetInt("checkpoint_every"),
	}
	if cfg.Enrichment.DatesFile == "" {
		cfg.Enrichment.DatesFile = "datasets/original_publication_dates.json"
	}
	if cfg.Enrichment.AuthorsFile == "" {
		cfg.Enrichment.AuthorsFile = "datasets/authors_metadata.json"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "out"
	}
	cfg.Normalize()
	return cfg
}

// stack bundles the wired pipeline components for one process.
type stack struct {
	cfg      types.PipelineConfig
	books    *catalog.BookCatalog
	persons  *catalog.PersonCatalog
	enricher *enrich.Enricher
	machine  *resolve.Machine
	fallback *resolve.Fallback
}

// buildStack wires catalogs, the model client, the web client, and the
// enrichment caches into ready-to-run resolution components. Catalog
// paths that do not exist are tolerated: searches against them return
// empty, per the resolution contract.
func buildStack(cfg types.PipelineConfig) (*stack, error) {
	books, err := catalog.OpenBooks(cfg.Catalogs.BooksDB)
	if err != nil {
		return nil, fmt.Errorf("opening books catalog: %w", err)
	}
	persons, err := catalog.OpenPersons(cfg.Catalogs.PersonsDB)
	if err != nil {
		return nil, fmt.Errorf("opening persons catalog: %w", err)
	}

	completer := llm.NewClient(cfg.LLM)

	aliases, err := resolve.LoadAliases(cfg.Resolver.AliasFile)
	if err != nil {
		return nil, err
	}

	enricher := &enrich.Enricher{
		Dates:   enrich.LoadDatesCache(cfg.Enrichment.DatesFile),
		Authors: enrich.LoadAuthorsCache(cfg.Enrichment.AuthorsFile),
		Books:   books,
		Persons: persons,
		LLM:     completer,
	}
	if !cfg.WebLookup.Disabled {
		enricher.Web = webinfo.New(cfg.WebLookup)
	}

	machine := &resolve.Machine{
		Books:       books,
		Persons:     persons,
		Queries:     &resolve.QueryGenerator{Aliases: aliases, LLM: completer},
		Validator:   &resolve.Validator{LLM: completer, FuzzyAccept: cfg.Resolver.FuzzyAcceptScore},
		MaxAttempts: cfg.Resolver.MaxAttempts,
		Timeout:     cfg.Resolver.WorkflowTimeout,
	}

	return &stack{
		cfg:      cfg,
		books:    books,
		persons:  persons,
		enricher: enricher,
		machine:  machine,
		fallback: &resolve.Fallback{LLM: completer},
	}, nil
}

// orchestrator builds a per-document orchestrator on the shared stack.
func (s *stack) orchestrator(out io.Writer) *pipeline.Orchestrator {
	return &pipeline.Orchestrator{
		Resolver:        s.machine,
		Fallback:        s.fallback,
		Enricher:        s.enricher,
		CheckpointEvery: s.cfg.CheckpointEvery,
		CacheSimilarity: s.cfg.Resolver.AuthorCacheSimilarity,
		Out:             out,
	}
}

func (s *stack) Close() {
	if s.books != nil {
		s.books.Close()
	}
	if s.persons != nil {
		s.persons.Close()
	}
}
