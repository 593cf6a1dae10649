// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// AliasTable maps author name variants to canonical forms and back.
// The YAML file lists canonical names with their known variants:
//
//	Lao Tzu:
//	  - Laozi
//	  - Lao-tse
//
// Lookups are case-insensitive.
type AliasTable struct {
	canonical map[string]string   // lowercase variant -> canonical
	variants  map[string][]string // lowercase canonical -> variants
}

// LoadAliases reads the alias table at path. An empty path yields an
// empty table; a missing file is an error, since a configured path that
// does not resolve is a misconfiguration worth surfacing.
func LoadAliases(path string) (*AliasTable, error) {
	t := &AliasTable{
		canonical: map[string]string{},
		variants:  map[string][]string{},
	}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading alias table: %w", err)
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing alias table: %w", err)
	}

	for canon, vars := range raw {
		key := strings.ToLower(canon)
		t.variants[key] = append(t.variants[key], vars...)
		for _, v := range vars {
			t.canonical[strings.ToLower(v)] = canon
		}
		t.canonical[key] = canon
	}
	return t, nil
}

// Variants returns every known alternative for a name, excluding the
// name itself: the canonical form when the name is a variant, and all
// sibling variants of the shared canonical.
func (t *AliasTable) Variants(name string) []string {
	if name == "" {
		return nil
	}
	lower := strings.ToLower(name)

	var out []string
	seen := map[string]bool{lower: true}
	add := func(v string) {
		if k := strings.ToLower(v); !seen[k] {
			seen[k] = true
			out = append(out, v)
		}
	}

	canon, known := t.canonical[lower]
	if known {
		add(canon)
		for _, v := range t.variants[strings.ToLower(canon)] {
			add(v)
		}
	}
	return out
}
