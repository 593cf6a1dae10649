// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Resolve every citations file in a directory",
	Long: `Batch lists the *.json citation files in a directory and resolves
each one, running up to --concurrency documents at a time. All documents
share one enrichment layer so catalog and web lookups are cached across
the whole batch. Checkpoint files from interrupted runs are skipped as
inputs and picked up as resume points by their own documents.`,
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	inputDir, _ := cmd.Flags().GetString("input-dir")
	if inputDir == "" {
		return fmt.Errorf("--input-dir is required")
	}

	cfg := pipelineConfig()
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		cfg.Concurrency = n
	}

	inputs, err := listCitationFiles(inputDir)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Printf("no citation files in %s\n", inputDir)
		return nil
	}

	st, err := buildStack(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	type docResult struct {
		input string
		err   error
	}

	ch := make(chan docResult, len(inputs))
	sem := make(chan struct{}, cfg.Concurrency)
	var wg sync.WaitGroup

	for _, input := range inputs {
		wg.Add(1)
		go func(input string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			doc, err := loadDocument(input, "")
			if err != nil {
				ch <- docResult{input: input, err: err}
				return
			}
			artifact := artifactPath(cfg.OutputDir, input, doc.Source)
			_, _, err = st.orchestrator(os.Stdout).Run(context.Background(), doc, artifact)
			ch <- docResult{input: input, err: err}
		}(input)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var failed int
	for r := range ch {
		if r.err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "warning: %s failed: %v\n", r.input, r.err)
		}
	}

	fmt.Printf("batch complete: %d documents, %d failed\n", len(inputs), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(inputs))
	}
	return nil
}

// listCitationFiles returns the JSON inputs in dir, sorted by name.
// Checkpoint files belong to in-progress runs and are never inputs.
func listCitationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing input directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if strings.HasSuffix(name, ".checkpoint.json") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func init() {
	batchCmd.Flags().String("input-dir", "", "directory of preprocessed citations JSON files")
	batchCmd.Flags().Int("concurrency", 0, "documents resolved in parallel (default from config)")

	rootCmd.AddCommand(batchCmd)
}
