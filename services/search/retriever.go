// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/usethemove/themove/services/vector"
)

// retrievalTopK is the fixed over-fetch from the vector index. Twenty
// candidates give the Ranker and Selector room to hard-filter, dedupe, and
// diversify while the user sees at most five.
const retrievalTopK = 20

// Embedder converts text to an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index runs a metadata-filtered nearest-neighbor query. Implemented by
// vector.PineconeClient.
type Index interface {
	Query(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vector.Match, error)
}

// Retriever wraps the embedding call and the vector-index query.
//
// # Description
//
// The index filter carries only equality/$in predicates: record type,
// tenant, and — when the interpreter produced a single exact date — the
// normalized date. Range and time-of-day filtering is the Ranker's job;
// the index layer offers no range predicates.
//
// Errors from either downstream call propagate as typed PipelineErrors so
// the Service boundary can substitute the user-facing fallback message.
// This component never degrades silently.
//
// # Thread Safety
//
// Safe for concurrent use; both injected clients are long-lived and shared
// across requests.
type Retriever struct {
	embedder Embedder
	index    Index
	logger   *slog.Logger
}

// NewRetriever creates a Retriever around the injected clients.
func NewRetriever(embedder Embedder, index Index, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, index: index, logger: logger}
}

// Retrieve embeds embeddingText and queries the index for candidates.
//
// # Inputs
//
//   - tenant: Normalized tenant identifier for the metadata filter.
//   - date: Exact target date, nil when the query carries none. A known
//     date becomes an index-side equality filter — cheaper than fetching
//     and discarding.
//
// # Outputs
//
//   - []Candidate: Raw candidates with similarity scores. May be empty.
//   - error: *PipelineError with ErrCodeEmbedding or ErrCodeRetrieval.
func (r *Retriever) Retrieve(ctx context.Context, embeddingText, tenant string, date *time.Time) ([]Candidate, error) {
	vec, err := r.embedder.Embed(ctx, embeddingText)
	if err != nil {
		return nil, WrapPipelineError(ErrCodeEmbedding, "embedding query text", err)
	}

	filter := map[string]any{
		"record_type": map[string]any{"$in": []string{"event", "organization"}},
		"tenant_id":   tenant,
	}
	if date != nil {
		filter["date_normalized"] = ISODate(*date)
	}

	matches, err := r.index.Query(ctx, vec, retrievalTopK, filter)
	if err != nil {
		return nil, WrapPipelineError(ErrCodeRetrieval, "querying vector index", err)
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, candidateFromMatch(m))
	}

	r.logger.Debug("retrieval complete",
		slog.String("tenant", tenant),
		slog.Int("candidates", len(candidates)),
	)

	return candidates, nil
}

// candidateFromMatch flattens index metadata into a Candidate. Missing
// fields become zero values — a record with no date is an organization, not
// an error.
func candidateFromMatch(m vector.Match) Candidate {
	md := m.Metadata
	return Candidate{
		ID:           m.ID,
		Title:        md["title"],
		Organization: md["organization_name"],
		Tags:         splitList(md["tags"]),
		Categories:   splitList(md["categories"]),
		Date:         md["date_normalized"],
		StartTime:    md["time_normalized_start"],
		DisplayTime:  md["time"],
		Location:     md["location"],
		Cost:         md["cost"],
		RecordType:   md["record_type"],
		Tenant:       md["tenant_id"],
		Score:        m.Score,
	}
}

// splitList splits the comma-joined metadata lists ("music, live, free")
// into trimmed lowercase entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeTenant canonicalizes a campus name for metadata filtering:
// lowercased with spaces and hyphens removed, so "UNC-Chapel Hill" and
// "unc chapel hill" land on the same index partition.
func NormalizeTenant(tenant string) string {
	lower := strings.ToLower(tenant)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, lower)
}
