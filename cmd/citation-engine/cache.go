// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/internal/enrich"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and repair the enrichment caches",
}

var cacheFixDatesCmd = &cobra.Command{
	Use:   "fix-dates",
	Short: "Apply current date plausibility rules to cached author entries",
	Long: `Fix-dates re-checks every cached author entry against the current
birth and death year plausibility rules. Entries written before a rule
existed may carry dates the rules now reject; this pass corrects or
drops them in place. With --dry-run the affected authors are listed
without rewriting the cache file.`,
	RunE: runCacheFixDates,
}

func runCacheFixDates(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	cfg := pipelineConfig()

	authors := enrich.LoadAuthorsCache(cfg.Enrichment.AuthorsFile)

	changed := authors.Repair(!dryRun)
	for _, name := range changed {
		fmt.Printf("repaired dates: %s\n", name)
	}

	if dryRun {
		fmt.Printf("%d entries would change\n", len(changed))
		return nil
	}
	if len(changed) > 0 {
		if err := authors.Flush(); err != nil {
			return fmt.Errorf("writing authors cache: %w", err)
		}
	}
	fmt.Printf("%d entries repaired\n", len(changed))
	return nil
}

func init() {
	cacheFixDatesCmd.Flags().Bool("dry-run", false, "report repairs without rewriting the cache")

	cacheCmd.AddCommand(cacheFixDatesCmd)
	rootCmd.AddCommand(cacheCmd)
}
