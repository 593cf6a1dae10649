// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DatesCache is the durable map from book identifier to original
// publication year. Entries are read at cascade start and written only
// after a source succeeds; the file is rewritten wholesale on Flush.
//
// Concurrent orchestrators share one instance. Writes are
// last-writer-wins by design: the values are idempotent facts about
// real-world entities.
type DatesCache struct {
	path string

	mu      sync.Mutex
	entries map[string]int
	dirty   bool
}

// LoadDatesCache reads the cache file at path. A missing or unreadable
// file yields an empty cache.
func LoadDatesCache(path string) *DatesCache {
	c := &DatesCache{path: path, entries: map[string]int{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	// Tolerate a corrupt file: better to re-derive than to abort.
	_ = json.Unmarshal(data, &c.entries)
	return c
}

// Get returns the cached year for a book id.
func (c *DatesCache) Get(bookID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	y, ok := c.entries[bookID]
	return y, ok
}

// Put records a year for a book id.
func (c *DatesCache) Put(bookID string, year int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[bookID] = year
	c.dirty = true
}

// Flush rewrites the cache file as sorted, indented JSON. A no-op when
// nothing changed since the last flush.
func (c *DatesCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := writeJSONFile(c.path, c.entries); err != nil {
		return fmt.Errorf("flushing dates cache: %w", err)
	}
	c.dirty = false
	return nil
}

// AuthorsCache is the durable map from author name to biographical
// metadata (birth_year, death_year, main_genre, nationality).
//
// Entries written before the plausibility validator existed are served
// as-is; the cache does not re-validate on read. The "cache fix-dates"
// command is the explicit maintenance pass that retroactively applies
// the validator to stale entries.
type AuthorsCache struct {
	path string

	mu      sync.Mutex
	entries map[string]map[string]any
	dirty   bool
}

// LoadAuthorsCache reads the cache file at path. A missing or
// unreadable file yields an empty cache.
func LoadAuthorsCache(path string) *AuthorsCache {
	c := &AuthorsCache{path: path, entries: map[string]map[string]any{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	_ = json.Unmarshal(data, &c.entries)
	return c
}

// Get returns the cached bio for an author name.
func (c *AuthorsCache) Get(name string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bio, ok := c.entries[name]
	return bio, ok
}

// Put records a bio for an author name. Callers are responsible for
// validating externally sourced dates first; Put re-runs the check as
// the shared chokepoint since it is cheap.
func (c *AuthorsCache) Put(name string, bio map[string]any) {
	birth, death := bioYears(bio)
	vb, vd := validateAndLog(name, birth, death)
	setBioYears(bio, vb, vd)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = bio
	c.dirty = true
}

// Entries returns a snapshot of all cached names and bios, for the
// maintenance pass.
func (c *AuthorsCache) Entries() map[string]map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]map[string]any, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Replace overwrites an entry without re-validation. The maintenance
// pass uses it to store already-validated repairs.
func (c *AuthorsCache) Replace(name string, bio map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = bio
	c.dirty = true
}

// Repair applies the current plausibility rules to every stored entry
// and returns the names whose dates changed. With apply false it only
// reports, leaving the cache untouched. This is the maintenance pass
// for entries written before the rules existed.
func (c *AuthorsCache) Repair(apply bool) []string {
	var changed []string
	for name, bio := range c.Entries() {
		birth, death := bioYears(bio)
		vb, vd, reason := ValidateDates(birth, death)
		if reason == "" {
			continue
		}
		changed = append(changed, name)
		slog.Warn("repairing cached author dates", "name", name, "reason", reason)
		if apply {
			fixed := make(map[string]any, len(bio))
			for k, v := range bio {
				fixed[k] = v
			}
			setBioYears(fixed, vb, vd)
			c.Replace(name, fixed)
		}
	}
	sort.Strings(changed)
	return changed
}

// Flush rewrites the cache file as sorted, indented JSON.
func (c *AuthorsCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := writeJSONFile(c.path, c.entries); err != nil {
		return fmt.Errorf("flushing authors cache: %w", err)
	}
	c.dirty = false
	return nil
}

// bioYears extracts birth_year/death_year from a bio map, tolerating
// the float64 numbers json.Unmarshal produces.
func bioYears(bio map[string]any) (*int, *int) {
	return anyToIntPtr(bio["birth_year"]), anyToIntPtr(bio["death_year"])
}

func setBioYears(bio map[string]any, birth, death *int) {
	if birth != nil {
		bio["birth_year"] = *birth
	} else {
		delete(bio, "birth_year")
	}
	if death != nil {
		bio["death_year"] = *death
	} else {
		delete(bio, "death_year")
	}
}

func anyToIntPtr(v any) *int {
	switch n := v.(type) {
	case int:
		return intPtr(n)
	case float64:
		return intPtr(int(n))
	}
	return nil
}

// writeJSONFile writes v as indented JSON via a temp file and rename,
// so a crash mid-write cannot truncate the durable cache.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
