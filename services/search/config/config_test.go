// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"testing"
)

func TestLoadSynonyms(t *testing.T) {
	syn, err := LoadSynonyms()
	if err != nil {
		t.Fatalf("LoadSynonyms: %v", err)
	}
	if len(syn) == 0 {
		t.Fatal("synonym table is empty")
	}
	if related, ok := syn["pizza"]; !ok || len(related) == 0 {
		t.Error("pizza trigger missing or empty")
	}
}

func TestLoadActivityRules(t *testing.T) {
	rules, err := LoadActivityRules()
	if err != nil {
		t.Fatalf("LoadActivityRules: %v", err)
	}
	if len(rules) == 0 {
		t.Fatal("activity rule list is empty")
	}
	for _, r := range rules {
		if r.Tag == "" {
			t.Error("rule with empty tag")
		}
		if len(r.Any) == 0 && len(r.All) == 0 {
			t.Errorf("rule %q has no triggers", r.Tag)
		}
	}
}

func TestClassify(t *testing.T) {
	rules, err := LoadActivityRules()
	if err != nil {
		t.Fatalf("LoadActivityRules: %v", err)
	}

	tests := []struct {
		query string
		want  string
	}{
		{"any study groups this week?", "study_groups"},
		{"career fair today", "career_fairs"},
		{"job opportunities for seniors", "job_opportunities"},
		{"free pizza tomorrow", "pizza"},
		{"dinner events tonight", "dinner"},
		{"free dinner tonight", ""}, // dinner is vetoed by "free"
		{"underwater basket weaving", ""},
	}
	for _, tt := range tests {
		if got := rules.Classify(tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestRuleOrderFirstMatchWins(t *testing.T) {
	rules, err := LoadActivityRules()
	if err != nil {
		t.Fatalf("LoadActivityRules: %v", err)
	}
	// "study group workshop" hits both rules; study_groups is listed first.
	if got := rules.Classify("study group workshop"); got != "study_groups" {
		t.Errorf("Classify = %q, want first-listed study_groups", got)
	}
}
