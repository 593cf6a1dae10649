// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve one document's citations against the catalogs",
	Long: `Resolve reads a preprocessed citations file, resolves each citation
against the book and person catalogs (with model fallback for misses),
enriches the results, and writes the final artifact to the output
directory. An interrupted run resumes from its checkpoint.`,
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	inputPath, _ := cmd.Flags().GetString("input")
	if inputPath == "" {
		return fmt.Errorf("--input is required")
	}
	metaPath, _ := cmd.Flags().GetString("source-meta")
	outDir, _ := cmd.Flags().GetString("out")

	cfg := pipelineConfig()
	if outDir != "" {
		cfg.OutputDir = outDir
	}

	doc, err := loadDocument(inputPath, metaPath)
	if err != nil {
		return err
	}

	st, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	artifact := artifactPath(cfg.OutputDir, inputPath, doc.Source)
	_, stats, err := st.orchestrator(os.Stdout).Run(context.Background(), doc, artifact)
	if err != nil {
		return err
	}

	fmt.Printf("wrote %s (%d citations, %d unresolved)\n",
		artifact, stats.Total, stats.NotFound())
	return nil
}

// loadDocument reads the citations file and, when given, the separate
// source metadata file. The citations file may be a full document
// (source + citations) or a bare citation list.
func loadDocument(inputPath, metaPath string) (types.Document, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return types.Document{}, fmt.Errorf("reading input: %w", err)
	}

	var doc types.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		var bare []types.Citation
		if listErr := json.Unmarshal(data, &bare); listErr != nil {
			return types.Document{}, fmt.Errorf("parsing input: %w", err)
		}
		doc = types.Document{Citations: recordsFromCitations(bare)}
	}

	if metaPath != "" {
		metaData, err := os.ReadFile(metaPath)
		if err != nil {
			return types.Document{}, fmt.Errorf("reading source metadata: %w", err)
		}
		if err := json.Unmarshal(metaData, &doc.Source); err != nil {
			return types.Document{}, fmt.Errorf("parsing source metadata: %w", err)
		}
	}
	return doc, nil
}

func recordsFromCitations(cits []types.Citation) []types.CitationRecord {
	out := make([]types.CitationRecord, len(cits))
	for i, c := range cits {
		out[i] = types.CitationRecord{Raw: c}
	}
	return out
}

// artifactPath derives the output filename: the source book id when
// present, otherwise the input file stem.
func artifactPath(outDir, inputPath string, src types.SourceMetadata) string {
	stem := src.BookID
	if stem == "" {
		base := filepath.Base(inputPath)
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return filepath.Join(outDir, stem+".json")
}

func init() {
	resolveCmd.Flags().String("input", "", "preprocessed citations JSON file")
	resolveCmd.Flags().String("source-meta", "", "source document metadata JSON file")
	resolveCmd.Flags().String("out", "", "output directory (default from config)")

	rootCmd.AddCommand(resolveCmd)
}
