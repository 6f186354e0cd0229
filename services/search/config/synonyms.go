// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config holds the static lookup tables behind query understanding:
// the synonym expansion map and the activity-type keyword rules. Both ship
// as embedded YAML so coverage can be reviewed and extended without touching
// ranking logic.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed synonyms.yaml
var defaultSynonymsYAML []byte

// Synonyms maps a trigger word to the related terms appended to the
// embedding text when the trigger appears in a query. Used by the Query
// Expander to widen semantic recall ("pizza" also pulls "free food",
// "catered") without touching the deterministic facet filters.
//
// The map is loaded from synonyms.yaml at first use and cached.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type Synonyms map[string][]string

var (
	cachedSynonyms Synonyms
	synonymsOnce   sync.Once
	synonymsErr    error
)

// LoadSynonyms loads and caches the synonym expansion table from the
// embedded YAML configuration. Returns the cached result on subsequent
// calls.
//
// # Outputs
//
//   - Synonyms: The loaded mapping. Never nil on success.
//   - error: Non-nil if YAML parsing fails.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadSynonyms() (Synonyms, error) {
	synonymsOnce.Do(func() {
		var raw map[string][]string
		if err := yaml.Unmarshal(defaultSynonymsYAML, &raw); err != nil {
			synonymsErr = fmt.Errorf("parsing synonyms.yaml: %w", err)
			return
		}
		cachedSynonyms = raw
		slog.Info("synonym table loaded",
			slog.Int("trigger_count", len(raw)),
		)
	})
	return cachedSynonyms, synonymsErr
}

// MustLoadSynonyms loads the synonym table or returns an empty map on error.
// Logs a warning if loading fails but does not panic — search still works,
// just without synonym expansion.
//
// # Thread Safety
//
// Safe for concurrent use.
func MustLoadSynonyms() Synonyms {
	synonyms, err := LoadSynonyms()
	if err != nil {
		slog.Warn("synonym table loading failed, continuing without expansion",
			slog.String("error", err.Error()),
		)
		return make(Synonyms)
	}
	return synonyms
}
