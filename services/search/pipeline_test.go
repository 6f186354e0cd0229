// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/usethemove/themove/services/vector"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	matches []vector.Match
	err     error
	filter  map[string]any
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, _ int, filter map[string]any) ([]vector.Match, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func eventMatch(id, title, date, startTime, score string) vector.Match {
	s := map[string]float64{"high": 0.92, "mid": 0.75, "low": 0.45}[score]
	return vector.Match{
		ID:    id,
		Score: s,
		Metadata: map[string]string{
			"title":                 title,
			"date_normalized":       date,
			"time_normalized_start": startTime,
			"time":                  "7:30 PM",
			"location":              "The Union",
			"record_type":           "event",
			"tenant_id":             "unc",
		},
	}
}

func newTestService(idx *fakeIndex, emb *fakeEmbedder) *Service {
	return NewService(ServiceConfig{
		Embedder: emb,
		Index:    idx,
		BaseURL:  "usethemove.com",
		Now:      func() time.Time { return refMonday },
	})
}

func TestSearchReturnsFormattedResults(t *testing.T) {
	idx := &fakeIndex{matches: []vector.Match{
		eventMatch("e1", "Jazz Night", "2025-01-09", "19:30", "high"),
		eventMatch("e2", "Open Mic", "2025-01-10", "20:00", "mid"),
	}}
	svc := newTestService(idx, &fakeEmbedder{})

	out := svc.Search(context.Background(), "live music", "UNC")
	if !strings.Contains(out, "Jazz Night") {
		t.Errorf("reply missing top result: %q", out)
	}
	if !strings.Contains(out, "usethemove.com/poster/e1") {
		t.Errorf("reply missing result link: %q", out)
	}

	// Tenant flows into the index filter in normalized form.
	if idx.filter["tenant_id"] != "unc" {
		t.Errorf("tenant filter = %v, want normalized unc", idx.filter["tenant_id"])
	}
}

func TestSearchPureDateFiltersIndexSide(t *testing.T) {
	idx := &fakeIndex{matches: []vector.Match{
		eventMatch("e1", "Morning Run", "2025-01-07", "07:00", "low"),
		eventMatch("e2", "Night Show", "2025-01-07", "21:00", "low"),
	}}
	svc := newTestService(idx, &fakeEmbedder{})

	out := svc.Search(context.Background(), "whats happening tomorrow", "unc")
	if idx.filter["date_normalized"] != "2025-01-07" {
		t.Errorf("date filter = %v, want 2025-01-07", idx.filter["date_normalized"])
	}
	// Chronological, despite equal (low) similarity.
	runIdx := strings.Index(out, "Morning Run")
	showIdx := strings.Index(out, "Night Show")
	if runIdx < 0 || showIdx < 0 || runIdx > showIdx {
		t.Errorf("pure-date reply not chronological: %q", out)
	}
}

func TestSearchEmbeddingFailureYieldsRetryMessage(t *testing.T) {
	svc := newTestService(&fakeIndex{}, &fakeEmbedder{err: errors.New("api down")})
	out := svc.Search(context.Background(), "free pizza", "unc")
	if out != MsgTrouble {
		t.Errorf("reply = %q, want the retry message", out)
	}
}

func TestSearchIndexFailureYieldsRetryMessage(t *testing.T) {
	svc := newTestService(&fakeIndex{err: errors.New("index down")}, &fakeEmbedder{})
	out := svc.Search(context.Background(), "free pizza", "unc")
	if out != MsgTrouble {
		t.Errorf("reply = %q, want the retry message", out)
	}
}

func TestSearchNoMatchesSuggestions(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"free constraint named", "free concerts", "without 'free'"},
		{"time constraint named", "yoga after 9pm", "different time of day"},
		{"date constraint named", "concerts tomorrow", "another day"},
		{"generic fallback", "underwater basket weaving", "Try different keywords"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&fakeIndex{}, &fakeEmbedder{})
			out := svc.Search(context.Background(), tt.query, "unc")
			if !strings.Contains(out, tt.want) {
				t.Errorf("Search(%q) = %q, want mention of %q", tt.query, out, tt.want)
			}
		})
	}
}
