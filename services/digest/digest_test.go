// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package digest

import (
	"context"
	"strings"
	"sync"
	"testing"
)

// fakeUsers is an in-memory UserSource.
type fakeUsers struct {
	mu    sync.Mutex
	users []User
	seen  map[string][]string
	saved map[string][]float32
}

func newFakeUsers(users ...User) *fakeUsers {
	return &fakeUsers{users: users, seen: map[string][]string{}, saved: map[string][]float32{}}
}

func (f *fakeUsers) ListOptedIn(_ context.Context) ([]User, error) {
	return f.users, nil
}

func (f *fakeUsers) SaveEmbedding(_ context.Context, userID string, vec []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[userID] = vec
	return nil
}

func (f *fakeUsers) MarkSeen(_ context.Context, userID string, posterIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[userID] = append(f.seen[userID], posterIDs...)
	return nil
}

type fakePosters struct{ posters []Poster }

func (f *fakePosters) ListUpcoming(_ context.Context) ([]Poster, error) {
	return f.posters, nil
}

// keywordEmbedder maps known words to unit axes so cosine similarity is
// predictable: identical keywords score 1, disjoint score 0.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 3)
	lower := strings.ToLower(text)
	if strings.Contains(lower, "music") {
		vec[0] = 1
	}
	if strings.Contains(lower, "sports") {
		vec[1] = 1
	}
	if strings.Contains(lower, "career") {
		vec[2] = 1
	}
	return vec, nil
}

type fakeDigestSender struct {
	mu   sync.Mutex
	sent map[string]string
}

func newFakeDigestSender() *fakeDigestSender {
	return &fakeDigestSender{sent: map[string]string{}}
}

func (f *fakeDigestSender) Send(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[to] = body
	return "SM1", nil
}

func TestRunSendsPersonalizedDigest(t *testing.T) {
	users := newFakeUsers(User{
		ID: "u1", Phone: "+19195551234", School: "unc",
		Interests: []string{"music"}, OptIn: true,
	})
	posters := &fakePosters{posters: []Poster{
		{ID: "p1", Title: "Jazz Night", Tags: []string{"music"}},
		{ID: "p2", Title: "Career Fair", Tags: []string{"career"}},
		{ID: "p3", Title: "Open Mic", Tags: []string{"music"}},
	}}
	sender := newFakeDigestSender()

	r := NewRunner(users, posters, keywordEmbedder{}, sender, nil)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	body := sender.sent["+19195551234"]
	if body == "" {
		t.Fatal("no digest sent")
	}
	if !strings.Contains(body, "Jazz Night") || !strings.Contains(body, "Open Mic") {
		t.Errorf("digest missing music events: %q", body)
	}

	// First run computed and persisted the interest embedding.
	if len(users.saved["u1"]) == 0 {
		t.Error("interest embedding was not persisted")
	}
	// Delivered posters are marked seen.
	if len(users.seen["u1"]) != 3 {
		t.Errorf("seen = %v, want all three delivered", users.seen["u1"])
	}
}

func TestRunSkipsSeenPosters(t *testing.T) {
	users := newFakeUsers(User{
		ID: "u1", Phone: "+19195551234", School: "unc",
		Interests:   []string{"music"},
		OptIn:       true,
		SeenPosters: map[string]struct{}{"p1": {}},
	})
	posters := &fakePosters{posters: []Poster{
		{ID: "p1", Title: "Jazz Night", Tags: []string{"music"}},
		{ID: "p2", Title: "Open Mic", Tags: []string{"music"}},
	}}
	sender := newFakeDigestSender()

	r := NewRunner(users, posters, keywordEmbedder{}, sender, nil)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	body := sender.sent["+19195551234"]
	if strings.Contains(body, "Jazz Night") {
		t.Errorf("digest repeated a seen poster: %q", body)
	}
	if !strings.Contains(body, "Open Mic") {
		t.Errorf("digest missing unseen poster: %q", body)
	}
}

func TestRunCapsDigestSize(t *testing.T) {
	var ps []Poster
	for _, title := range []string{"A Music", "B Music", "C Music", "D Music", "E Music"} {
		ps = append(ps, Poster{ID: title[:1], Title: title, Tags: []string{"music"}})
	}
	users := newFakeUsers(User{
		ID: "u1", Phone: "+1", School: "unc", Interests: []string{"music"}, OptIn: true,
	})
	sender := newFakeDigestSender()

	r := NewRunner(users, &fakePosters{posters: ps}, keywordEmbedder{}, sender, nil)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(users.seen["u1"]); got != digestSize {
		t.Errorf("delivered = %d, want cap of %d", got, digestSize)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"mismatched length", []float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosineSimilarity(tt.a, tt.b); got != tt.want {
				t.Errorf("cosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}
