// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"testing"
)

func scoredFixture(id, org string, enhanced float64) Scored {
	return Scored{
		Candidate: Candidate{ID: id, Organization: org, RecordType: "event"},
		Enhanced:  enhanced,
	}
}

func TestSelectDedupesByID(t *testing.T) {
	ranked := []Scored{
		scoredFixture("a", "x", 0.9),
		scoredFixture("a", "x", 0.85),
		scoredFixture("b", "y", 0.8),
	}
	sel := NewSelector(nil).Select(ranked, Facets{Terms: []string{"music"}})
	if len(sel.Results) != 2 {
		t.Fatalf("results = %v, want duplicate collapsed", idsOf(sel))
	}
}

func TestSelectQualityFloors(t *testing.T) {
	ranked := []Scored{
		scoredFixture("strong", "", 0.55),
		scoredFixture("weak", "", 0.45),
	}

	t.Run("general floor is half", func(t *testing.T) {
		sel := NewSelector(nil).Select(ranked, Facets{Terms: []string{"music"}})
		if sel.TotalMatched != 1 {
			t.Errorf("qualified = %d, want 1 above the 0.5 floor", sel.TotalMatched)
		}
	})

	t.Run("single salient floor is lower", func(t *testing.T) {
		sel := NewSelector(nil).Select(ranked, Facets{Terms: []string{"basketball"}, SingleSalient: true})
		if sel.TotalMatched != 2 {
			t.Errorf("qualified = %d, want 2 above the 0.35 floor", sel.TotalMatched)
		}
	})
}

func TestSelectAdaptiveCount(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   int
	}{
		{"confident top gets five", []float64{0.85, 0.84, 0.83, 0.82, 0.81, 0.80}, 5},
		{"good top gets four", []float64{0.75, 0.74, 0.73, 0.72}, 4},
		{"decent top gets three", []float64{0.65, 0.64, 0.63}, 3},
		{"borderline top gets two", []float64{0.55, 0.54}, 2},
		{"weak top gets one", []float64{0.52}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked := make([]Scored, len(tt.scores))
			for i, s := range tt.scores {
				ranked[i] = scoredFixture(string(rune('a'+i)), "", s)
			}
			sel := NewSelector(nil).Select(ranked, Facets{Terms: []string{"music"}})
			if len(sel.Results) != tt.want {
				t.Errorf("selected = %d, want %d", len(sel.Results), tt.want)
			}
		})
	}
}

func TestSelectPureDateCapsAtThree(t *testing.T) {
	d := mustDate(t, 2025, 1, 7)
	var ranked []Scored
	for i := 0; i < 6; i++ {
		sc := scoredFixture(string(rune('a'+i)), "", 1.0)
		ranked = append(ranked, sc)
	}
	sel := NewSelector(nil).Select(ranked, Facets{Date: &d})
	if len(sel.Results) != 3 {
		t.Errorf("selected = %d, want pure-date cap of 3", len(sel.Results))
	}
	if sel.TotalMatched != 6 {
		t.Errorf("total matched = %d, want 6 for the footer", sel.TotalMatched)
	}
}

func TestSelectOrganizerDiversity(t *testing.T) {
	t.Run("repeat org capped after two picks", func(t *testing.T) {
		ranked := []Scored{
			scoredFixture("a1", "acm", 0.95),
			scoredFixture("b1", "wics", 0.94),
			scoredFixture("a2", "acm", 0.93),
			scoredFixture("c1", "ieee", 0.92),
			scoredFixture("d1", "hackers", 0.91),
			scoredFixture("e1", "robotics", 0.90),
		}
		sel := NewSelector(nil).Select(ranked, Facets{Terms: []string{"tech"}})
		want := []string{"a1", "b1", "c1", "d1", "e1"}
		if got := idsOf(sel); !equalIDs(got, want) {
			t.Errorf("order = %v, want %v (a2 displaced by fresh orgs)", got, want)
		}
	})

	t.Run("top two may share an org", func(t *testing.T) {
		ranked := []Scored{
			scoredFixture("a1", "acm", 0.95),
			scoredFixture("a2", "acm", 0.94),
			scoredFixture("b1", "wics", 0.93),
			scoredFixture("c1", "ieee", 0.92),
			scoredFixture("d1", "hackers", 0.91),
			scoredFixture("e1", "robotics", 0.90),
		}
		sel := NewSelector(nil).Select(ranked, Facets{Terms: []string{"tech"}})
		want := []string{"a1", "a2", "b1", "c1", "d1"}
		if got := idsOf(sel); !equalIDs(got, want) {
			t.Errorf("order = %v, want %v (second-strongest match kept)", got, want)
		}
	})
}

func TestSelectDiversityBackfills(t *testing.T) {
	// Only two organizations for five slots: the one-per-org pass starves
	// the list, so skipped candidates backfill the remaining slots in
	// ranked order.
	ranked := []Scored{
		scoredFixture("a1", "acm", 0.95),
		scoredFixture("a2", "acm", 0.94),
		scoredFixture("a3", "acm", 0.93),
		scoredFixture("b1", "wics", 0.92),
		scoredFixture("b2", "wics", 0.91),
		scoredFixture("a4", "acm", 0.90),
	}
	sel := NewSelector(nil).Select(ranked, Facets{Terms: []string{"tech"}})
	want := []string{"a1", "a2", "b1", "a3", "b2"}
	if got := idsOf(sel); !equalIDs(got, want) {
		t.Errorf("order = %v, want %v (diversity picks then backfill)", got, want)
	}
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func idsOf(sel Selection) []string {
	out := make([]string, len(sel.Results))
	for i, sc := range sel.Results {
		out[i] = sc.ID
	}
	return out
}
