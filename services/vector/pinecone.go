// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package vector wraps the Pinecone data-plane REST API used as the event
// vector index. Only the query path is implemented here — upserts happen in
// the poster ingestion service, outside this repo.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const defaultNamespace = "campus"

// pineconeQueryReq is the Pinecone /query request body.
type pineconeQueryReq struct {
	Namespace       string         `json:"namespace,omitempty"`
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

// pineconeQueryResp is the Pinecone /query response body.
type pineconeQueryResp struct {
	Matches   []pineconeMatch `json:"matches"`
	Namespace string          `json:"namespace"`
}

type pineconeMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Match is one ranked result from the index: record ID, cosine similarity,
// and the stored metadata fields as strings.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// PineconeClient queries a Pinecone serverless index over raw net/http.
//
// # Description
//
// The index stores one record per poster (event or organization) with
// string metadata: title, organization_name, tags, categories,
// date_normalized, time_normalized_start, location, cost, record_type,
// tenant_id. The filter parameter of Query supports Pinecone's equality and
// $in predicates on those fields; range predicates are not available at the
// index layer, so date-range and time filtering happen in the Ranker.
//
// # Thread Safety
//
// Safe for concurrent use.
type PineconeClient struct {
	httpClient *http.Client
	host       string
	apiKey     string
	namespace  string
	logger     *slog.Logger
}

// NewPineconeClient creates a client from environment variables.
//
// Reads PINECONE_INDEX_HOST (the per-index data-plane host), PINECONE_API_KEY,
// and PINECONE_NAMESPACE (default "campus").
//
// # Outputs
//
//   - *PineconeClient: The configured client.
//   - error: Non-nil if the host or API key is missing.
func NewPineconeClient(logger *slog.Logger) (*PineconeClient, error) {
	host := os.Getenv("PINECONE_INDEX_HOST")
	apiKey := os.Getenv("PINECONE_API_KEY")
	if host == "" {
		return nil, fmt.Errorf("pinecone: index host is missing (PINECONE_INDEX_HOST)")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("pinecone: API key is missing (PINECONE_API_KEY)")
	}
	namespace := os.Getenv("PINECONE_NAMESPACE")
	if namespace == "" {
		namespace = defaultNamespace
	}
	return NewPineconeClientWithConfig(host, apiKey, namespace, logger), nil
}

// NewPineconeClientWithConfig creates a client with explicit configuration.
// Useful for tests with an httptest server standing in for the index host.
func NewPineconeClientWithConfig(host, apiKey, namespace string, logger *slog.Logger) *PineconeClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &PineconeClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		host:       host,
		apiKey:     apiKey,
		namespace:  namespace,
		logger:     logger,
	}
}

// Query runs a nearest-neighbor search against the index.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - vec: The query embedding.
//   - topK: Number of neighbors to request.
//   - filter: Pinecone metadata filter (equality / $in predicates). Nil
//     disables filtering.
//
// # Outputs
//
//   - []Match: Ranked matches with stringified metadata. Never nil on
//     success.
//   - error: Non-nil on transport failure, non-200 status, or an
//     unparseable response body.
func (c *PineconeClient) Query(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]Match, error) {
	reqBody, err := json.Marshal(pineconeQueryReq{
		Namespace:       c.namespace,
		Vector:          vec,
		TopK:            topK,
		Filter:          filter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: marshaling query request: %w", err)
	}

	url := c.host + "/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("pinecone: creating query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinecone: query HTTP call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pinecone: reading query response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pinecone: query returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed pineconeQueryResp
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("pinecone: parsing query response: %w", err)
	}

	matches := make([]Match, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		matches = append(matches, Match{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: stringifyMetadata(m.Metadata),
		})
	}

	c.logger.Debug("pinecone query complete",
		slog.Int("top_k", topK),
		slog.Int("matches", len(matches)),
	)

	return matches, nil
}

// stringifyMetadata flattens the JSON metadata map to strings. Pinecone
// stores our fields as strings already; numbers that sneak in are rendered,
// and nested values are dropped.
func stringifyMetadata(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = fmt.Sprintf("%g", val)
		case bool:
			out[k] = fmt.Sprintf("%t", val)
		}
	}
	return out
}
