// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// checkpointPath derives the checkpoint filename from the artifact
// path: out/source.json -> out/source.checkpoint.json.
func checkpointPath(artifactPath string) string {
	return strings.TrimSuffix(artifactPath, ".json") + ".checkpoint.json"
}

// saveCheckpoint writes the partial results. Complete stays false for
// every checkpoint; a finished run deletes the file instead of flipping
// the flag, so a present checkpoint always means an interrupted run.
func saveCheckpoint(path string, src types.SourceMetadata, results []types.CitationRecord) error {
	data, err := json.MarshalIndent(types.Checkpoint{
		Source:    src,
		Citations: results,
		Complete:  false,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	slog.Debug("checkpoint saved", "path", path, "citations", len(results))
	return nil
}

// loadCheckpoint returns the prior partial results, or nil when no
// checkpoint exists. A corrupt checkpoint is discarded with a warning
// rather than blocking the run.
func loadCheckpoint(path string) []types.CitationRecord {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("checkpoint unreadable, starting fresh", "path", path, "error", err)
		}
		return nil
	}
	var cp types.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		slog.Warn("checkpoint corrupt, starting fresh", "path", path, "error", err)
		return nil
	}
	return cp.Citations
}

// removeCheckpoint deletes the checkpoint after a completed run.
func removeCheckpoint(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("removing checkpoint failed", "path", path, "error", err)
	}
}
