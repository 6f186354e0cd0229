// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed activity_types.yaml
var defaultActivityTypesYAML []byte

// ActivityRule is one ordered entry of the activity-type keyword map.
//
// A rule matches a lowercased query when any substring in Any appears (or,
// if All is set, when every substring in All appears), and no substring in
// Not appears. Rules are evaluated in file order, first match wins.
type ActivityRule struct {
	// Tag is the canonical activity tag emitted on match.
	Tag string `yaml:"tag"`

	// Any matches when at least one listed substring is present.
	Any []string `yaml:"any"`

	// All matches only when every listed substring is present.
	All []string `yaml:"all"`

	// Not vetoes the rule when any listed substring is present.
	Not []string `yaml:"not"`
}

// Matches reports whether this rule fires for the given lowercased query.
func (r ActivityRule) Matches(lower string) bool {
	for _, veto := range r.Not {
		if strings.Contains(lower, veto) {
			return false
		}
	}
	if len(r.All) > 0 {
		for _, sub := range r.All {
			if !strings.Contains(lower, sub) {
				return false
			}
		}
		return true
	}
	for _, sub := range r.Any {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// ActivityRules is the ordered activity-type keyword map.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type ActivityRules []ActivityRule

// Classify returns the canonical activity tag for the query, or "" when no
// rule matches. First match wins; there is deliberately no AI fallback here.
func (rules ActivityRules) Classify(query string) string {
	lower := strings.ToLower(query)
	for _, r := range rules {
		if r.Matches(lower) {
			return r.Tag
		}
	}
	return ""
}

var (
	cachedActivityRules ActivityRules
	activityRulesOnce   sync.Once
	activityRulesErr    error
)

// LoadActivityRules loads and caches the activity-type keyword rules from
// the embedded YAML configuration.
//
// # Outputs
//
//   - ActivityRules: The ordered rule list. Never nil on success.
//   - error: Non-nil if YAML parsing fails or a rule has no tag.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadActivityRules() (ActivityRules, error) {
	activityRulesOnce.Do(func() {
		var raw ActivityRules
		if err := yaml.Unmarshal(defaultActivityTypesYAML, &raw); err != nil {
			activityRulesErr = fmt.Errorf("parsing activity_types.yaml: %w", err)
			return
		}
		for i, r := range raw {
			if r.Tag == "" {
				activityRulesErr = fmt.Errorf("activity_types.yaml: rule %d has no tag", i)
				return
			}
			if len(r.Any) == 0 && len(r.All) == 0 {
				activityRulesErr = fmt.Errorf("activity_types.yaml: rule %q has no triggers", r.Tag)
				return
			}
		}
		cachedActivityRules = raw
		slog.Info("activity-type rules loaded",
			slog.Int("rule_count", len(raw)),
		)
	})
	return cachedActivityRules, activityRulesErr
}

// MustLoadActivityRules loads the activity rules or returns an empty list on
// error. A missing table degrades to "no activity facet", never a failure.
//
// # Thread Safety
//
// Safe for concurrent use.
func MustLoadActivityRules() ActivityRules {
	rules, err := LoadActivityRules()
	if err != nil {
		slog.Warn("activity-type rules loading failed, continuing without activity extraction",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return rules
}
