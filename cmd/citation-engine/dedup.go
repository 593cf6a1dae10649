// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/internal/pipeline"
	"github.com/pdiddy/citation-engine/pkg/types"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Merge duplicate citations in resolved artifacts",
	Long: `Dedup re-runs duplicate detection over already-written artifacts.
Citations that resolved to the same work under differently-phrased
titles are merged: the record with a real catalog id (or the higher
occurrence count) is kept and absorbs the contexts and counts of the
rest. With --dry-run the merges are reported without rewriting files.`,
	RunE: runDedup,
}

func runDedup(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = pipelineConfig().OutputDir
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	artifacts, err := listCitationFiles(dir)
	if err != nil {
		return err
	}

	var totalMerges int
	for _, path := range artifacts {
		merges, err := dedupArtifact(path, dryRun)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		totalMerges += len(merges)
		for _, m := range merges {
			fmt.Printf("%s: merged %q by %s (%d -> %s)\n",
				filepath.Base(path), m.Title, m.Author, m.Members, m.KeptID)
		}
	}

	verb := "applied"
	if dryRun {
		verb = "found"
	}
	fmt.Printf("%s %d merges across %d artifacts\n", verb, totalMerges, len(artifacts))
	return nil
}

func dedupArtifact(path string, dryRun bool) ([]pipeline.Merge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	var doc types.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing artifact: %w", err)
	}

	deduped, merges := pipeline.Deduplicate(doc.Citations)
	if len(merges) == 0 || dryRun {
		return merges, nil
	}

	doc.Citations = deduped
	sort.Slice(merges, func(i, j int) bool { return merges[i].Title < merges[j].Title })

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding artifact: %w", err)
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("writing artifact: %w", err)
	}
	return merges, nil
}

func init() {
	dedupCmd.Flags().String("dir", "", "artifact directory (default from config)")
	dedupCmd.Flags().Bool("dry-run", false, "report merges without rewriting artifacts")

	rootCmd.AddCommand(dedupCmd)
}
