// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package digest builds and sends the daily personalized event digest:
// each opted-in user gets the few upcoming posters closest to their
// interest embedding that they haven't been shown before.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// digestSize is how many posters one digest carries.
	digestSize = 3
	// maxConcurrentUsers bounds the fan-out so the embedding and SMS APIs
	// see a steady trickle rather than the whole user base at 9am sharp.
	maxConcurrentUsers = 8
)

// User is one digest recipient.
type User struct {
	ID          string
	Phone       string
	School      string
	Interests   []string
	OptIn       bool
	Embedding   []float32
	SeenPosters map[string]struct{}
}

// Poster is one candidate event for the digest.
type Poster struct {
	ID          string
	Title       string
	Org         string
	Tags        []string
	Date        string
	DisplayTime string
	Location    string
}

// UserSource loads recipients and records per-user state.
type UserSource interface {
	ListOptedIn(ctx context.Context) ([]User, error)
	SaveEmbedding(ctx context.Context, userID string, vec []float32) error
	MarkSeen(ctx context.Context, userID string, posterIDs []string) error
}

// PosterSource loads the upcoming posters eligible for today's digest.
type PosterSource interface {
	ListUpcoming(ctx context.Context) ([]Poster, error)
}

// Embedder converts text to a vector. Satisfied by llm.OpenAIClient.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Sender delivers one digest SMS. Satisfied by sms.TwilioClient.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Runner executes one digest run.
//
// # Description
//
// A run embeds every eligible poster once, then fans out per user: ensure
// the user has an interest embedding (computing and persisting it on first
// sight), score posters by cosine similarity, drop ones the user has seen,
// send the top few, and mark them seen. One user's failure never aborts
// the run — it's logged and counted.
//
// # Thread Safety
//
// Safe for concurrent use, though runs are normally serialized by the
// scheduler.
type Runner struct {
	users    UserSource
	posters  PosterSource
	embedder Embedder
	sender   Sender
	logger   *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(users UserSource, posters PosterSource, embedder Embedder, sender Sender, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{users: users, posters: posters, embedder: embedder, sender: sender, logger: logger}
}

// scoredPoster pairs a poster with its similarity to one user.
type scoredPoster struct {
	poster Poster
	score  float64
}

// Run executes one full digest cycle.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()

	posters, err := r.posters.ListUpcoming(ctx)
	if err != nil {
		return fmt.Errorf("digest: listing posters: %w", err)
	}
	if len(posters) == 0 {
		r.logger.Info("digest skipped, no upcoming posters")
		return nil
	}

	users, err := r.users.ListOptedIn(ctx)
	if err != nil {
		return fmt.Errorf("digest: listing users: %w", err)
	}
	if len(users) == 0 {
		r.logger.Info("digest skipped, no opted-in users")
		return nil
	}

	posterVecs, err := r.embedPosters(ctx, posters)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUsers)
	sent := make(chan struct{}, len(users))

	for _, u := range users {
		u := u
		g.Go(func() error {
			if err := r.sendDigest(gctx, u, posters, posterVecs); err != nil {
				// Per-user failures don't abort the run.
				r.logger.Warn("digest failed for user",
					slog.String("user_id", u.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			sent <- struct{}{}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("digest: user fan-out: %w", err)
	}
	close(sent)

	r.logger.Info("digest run complete",
		slog.Int("users", len(users)),
		slog.Int("sent", len(sent)),
		slog.Int("posters", len(posters)),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// embedPosters embeds every poster's text concurrently, bounded by the
// same limit as the user fan-out.
func (r *Runner) embedPosters(ctx context.Context, posters []Poster) ([][]float32, error) {
	vecs := make([][]float32, len(posters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUsers)
	for i, p := range posters {
		i, p := i, p
		g.Go(func() error {
			vec, err := r.embedder.Embed(gctx, posterText(p))
			if err != nil {
				return fmt.Errorf("embedding poster %s: %w", p.ID, err)
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}
	return vecs, nil
}

// sendDigest builds and delivers one user's digest.
func (r *Runner) sendDigest(ctx context.Context, u User, posters []Poster, posterVecs [][]float32) error {
	userVec := u.Embedding
	if len(userVec) == 0 {
		vec, err := r.embedder.Embed(ctx, interestText(u))
		if err != nil {
			return fmt.Errorf("embedding interests: %w", err)
		}
		if err := r.users.SaveEmbedding(ctx, u.ID, vec); err != nil {
			return fmt.Errorf("saving interest embedding: %w", err)
		}
		userVec = vec
	}

	scored := make([]scoredPoster, 0, len(posters))
	for i, p := range posters {
		if _, seen := u.SeenPosters[p.ID]; seen {
			continue
		}
		scored = append(scored, scoredPoster{poster: p, score: cosineSimilarity(userVec, posterVecs[i])})
	}
	if len(scored) == 0 {
		return nil
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > digestSize {
		scored = scored[:digestSize]
	}

	body := formatDigest(scored)
	if _, err := r.sender.Send(ctx, u.Phone, body); err != nil {
		return fmt.Errorf("sending digest: %w", err)
	}

	ids := make([]string, len(scored))
	for i, sp := range scored {
		ids[i] = sp.poster.ID
	}
	if err := r.users.MarkSeen(ctx, u.ID, ids); err != nil {
		return fmt.Errorf("marking posters seen: %w", err)
	}
	return nil
}

// posterText is the embedding text for one poster.
func posterText(p Poster) string {
	parts := []string{p.Title, p.Org, strings.Join(p.Tags, " "), p.Location}
	return strings.TrimSpace(strings.Join(parts, ". "))
}

// interestText is the embedding text for one user's stated interests.
func interestText(u User) string {
	return fmt.Sprintf("A %s student interested in: %s", u.School, strings.Join(u.Interests, ", "))
}

// formatDigest renders the digest SMS body.
func formatDigest(scored []scoredPoster) string {
	var b strings.Builder
	b.WriteString("Today on campus:")
	for i, sp := range scored {
		p := sp.poster
		fmt.Fprintf(&b, "\n%d) %s", i+1, p.Title)
		if p.Date != "" {
			b.WriteString(" - " + p.Date)
		}
		if p.DisplayTime != "" {
			b.WriteString(" " + p.DisplayTime)
		}
		if p.Location != "" {
			b.WriteString(" @ " + p.Location)
		}
	}
	return b.String()
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Returns 0 for mismatched or zero-length vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
