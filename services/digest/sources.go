// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/usethemove/themove/services/storage/badger"
)

// =============================================================================
// Badger-backed user store
// =============================================================================

const userKeyPrefix = "digest:user:"

// BadgerUserStore keeps digest recipients in the embedded store, one JSON
// record per user. Small user counts make a full scan per run fine.
type BadgerUserStore struct {
	db *badger.DB
}

// NewBadgerUserStore creates a store over db.
func NewBadgerUserStore(db *badger.DB) *BadgerUserStore {
	return &BadgerUserStore{db: db}
}

// storedUser is the persisted form of User.
type storedUser struct {
	ID          string    `json:"id"`
	Phone       string    `json:"phone"`
	School      string    `json:"school"`
	Interests   []string  `json:"interests"`
	OptIn       bool      `json:"opt_in"`
	Embedding   []float32 `json:"embedding,omitempty"`
	SeenPosters []string  `json:"seen_posters,omitempty"`
}

// PutUser upserts one recipient record.
func (s *BadgerUserStore) PutUser(_ context.Context, u User) error {
	seen := make([]string, 0, len(u.SeenPosters))
	for id := range u.SeenPosters {
		seen = append(seen, id)
	}
	raw, err := json.Marshal(storedUser{
		ID:          u.ID,
		Phone:       u.Phone,
		School:      u.School,
		Interests:   u.Interests,
		OptIn:       u.OptIn,
		Embedding:   u.Embedding,
		SeenPosters: seen,
	})
	if err != nil {
		return fmt.Errorf("digest: encoding user: %w", err)
	}
	return s.db.SetWithTTL(userKeyPrefix+u.ID, raw, 0)
}

// ListOptedIn returns every opted-in recipient.
func (s *BadgerUserStore) ListOptedIn(_ context.Context) ([]User, error) {
	raws, err := s.db.Scan(userKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("digest: scanning users: %w", err)
	}
	users := make([]User, 0, len(raws))
	for _, raw := range raws {
		var su storedUser
		if err := json.Unmarshal(raw, &su); err != nil {
			return nil, fmt.Errorf("digest: decoding user: %w", err)
		}
		if !su.OptIn {
			continue
		}
		seen := make(map[string]struct{}, len(su.SeenPosters))
		for _, id := range su.SeenPosters {
			seen[id] = struct{}{}
		}
		users = append(users, User{
			ID:          su.ID,
			Phone:       su.Phone,
			School:      su.School,
			Interests:   su.Interests,
			OptIn:       su.OptIn,
			Embedding:   su.Embedding,
			SeenPosters: seen,
		})
	}
	return users, nil
}

// SaveEmbedding persists a freshly computed interest embedding.
func (s *BadgerUserStore) SaveEmbedding(ctx context.Context, userID string, vec []float32) error {
	return s.mutateUser(ctx, userID, func(su *storedUser) {
		su.Embedding = vec
	})
}

// MarkSeen records posters delivered to a user.
func (s *BadgerUserStore) MarkSeen(ctx context.Context, userID string, posterIDs []string) error {
	return s.mutateUser(ctx, userID, func(su *storedUser) {
		su.SeenPosters = append(su.SeenPosters, posterIDs...)
	})
}

// mutateUser applies fn to the stored record under a read-modify-write.
// Digest runs are the only writer, so no transaction is needed beyond
// Badger's own.
func (s *BadgerUserStore) mutateUser(_ context.Context, userID string, fn func(*storedUser)) error {
	key := userKeyPrefix + userID
	raw, ok, err := s.db.Get(key)
	if err != nil {
		return fmt.Errorf("digest: loading user %s: %w", userID, err)
	}
	if !ok {
		return fmt.Errorf("digest: user %s not found", userID)
	}
	var su storedUser
	if err := json.Unmarshal(raw, &su); err != nil {
		return fmt.Errorf("digest: decoding user %s: %w", userID, err)
	}
	fn(&su)
	out, err := json.Marshal(su)
	if err != nil {
		return fmt.Errorf("digest: encoding user %s: %w", userID, err)
	}
	return s.db.SetWithTTL(key, out, 0)
}

// =============================================================================
// Feed-backed poster source
// =============================================================================

// FeedPosterSource pulls the upcoming-poster list from the ingestion
// service's JSON feed.
type FeedPosterSource struct {
	httpClient *http.Client
	feedURL    string
}

// NewFeedPosterSource creates a source reading from feedURL.
func NewFeedPosterSource(feedURL string) *FeedPosterSource {
	return &FeedPosterSource{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		feedURL:    feedURL,
	}
}

// feedPoster is the feed's wire format.
type feedPoster struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Org      string `json:"organization_name"`
	Tags     string `json:"tags"`
	Date     string `json:"date_normalized"`
	Time     string `json:"time"`
	Location string `json:"location"`
}

// ListUpcoming fetches and decodes the feed.
func (f *FeedPosterSource) ListUpcoming(ctx context.Context) ([]Poster, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("digest: creating feed request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("digest: fetching poster feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("digest: reading poster feed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("digest: poster feed returned %d", resp.StatusCode)
	}

	var raw []feedPoster
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("digest: parsing poster feed: %w", err)
	}

	posters := make([]Poster, 0, len(raw))
	for _, fp := range raw {
		var tags []string
		for _, t := range strings.Split(fp.Tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		posters = append(posters, Poster{
			ID:          fp.ID,
			Title:       fp.Title,
			Org:         fp.Org,
			Tags:        tags,
			Date:        fp.Date,
			DisplayTime: fp.Time,
			Location:    fp.Location,
		})
	}
	return posters, nil
}
