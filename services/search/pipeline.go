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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// searchTimeout bounds the whole pipeline run. Inbound SMS webhooks are
// answered synchronously; past this point the carrier-side experience is
// already bad, so we stop and apologize instead.
const searchTimeout = 20 * time.Second

// MsgTrouble is the reply when a pipeline stage failed outright.
const MsgTrouble = "Sorry, I'm having trouble searching right now. Please try again in a minute!"

// MsgStillWorking is the reply when the search exceeded its time budget.
const MsgStillWorking = "That search is taking longer than expected. Please try again!"

var tracer = otel.Tracer("github.com/usethemove/themove/services/search")

// Service composes the pipeline stages behind a single text-in, text-out
// call.
//
// # Description
//
// Search never returns an error to its caller: the reply string is the
// product, and every failure mode maps to a user-facing sentence. Internal
// detail goes to logs, metrics, and spans instead.
//
// # Thread Safety
//
// Safe for concurrent use; all stages are stateless or immutable after
// construction.
type Service struct {
	interpreter *Interpreter
	expander    *Expander
	retriever   *Retriever
	ranker      *Ranker
	selector    *Selector
	formatter   *Formatter
	logger      *slog.Logger
	now         func() time.Time
}

// ServiceConfig carries the Service's dependencies.
type ServiceConfig struct {
	Embedder Embedder
	Index    Index
	// Resolver handles date phrases the deterministic rules miss. Nil
	// disables the fallback rung.
	Resolver DateResolver
	// BaseURL is the public site URL used for result links.
	BaseURL string
	Logger  *slog.Logger
	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// NewService wires the pipeline stages.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		interpreter: NewInterpreter(cfg.Resolver, logger),
		expander:    NewExpander(),
		retriever:   NewRetriever(cfg.Embedder, cfg.Index, logger),
		ranker:      NewRanker(logger),
		selector:    NewSelector(logger),
		formatter:   NewFormatter(cfg.BaseURL),
		logger:      logger,
		now:         now,
	}
}

// Search runs the full pipeline for one query and returns the reply text.
//
// # Inputs
//
//   - query: The user's message, verbatim.
//   - tenant: Campus name; normalized here before it reaches the filter.
//
// # Outputs
//
//   - string: The reply body. Always non-empty; failures yield an apology,
//     zero matches yield a facet-aware suggestion.
func (s *Service) Search(ctx context.Context, query, tenant string) string {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "search.Service.Search",
		trace.WithAttributes(
			attribute.Int("query.length", len(query)),
			attribute.String("tenant", tenant),
		))
	defer span.End()

	start := s.now()
	ref := start
	normalizedTenant := NormalizeTenant(tenant)

	facets := s.interpreter.Interpret(ctx, query, ref)
	span.SetAttributes(
		attribute.Bool("facets.pure_date", facets.PureDate()),
		attribute.String("facets.activity", facets.Activity),
		attribute.Int("facets.terms", len(facets.Terms)),
	)

	embeddingText := s.expander.Expand(query, facets, tenant, ref)

	candidates, err := s.retriever.Retrieve(ctx, embeddingText, normalizedTenant, facets.Date)
	if err != nil {
		outcome := "error"
		msg := MsgTrouble
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
			msg = MsgStillWorking
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(CodeOf(err)))
		s.logger.Error("search pipeline failed",
			slog.String("stage", string(CodeOf(err))),
			slog.String("error", err.Error()),
		)
		searchesTotal.WithLabelValues(outcome).Inc()
		searchDuration.Observe(s.now().Sub(start).Seconds())
		return msg
	}

	ranked := s.ranker.Rank(candidates, facets, normalizedTenant, ref)
	selection := s.selector.Select(ranked, facets)

	if len(selection.Results) == 0 {
		searchesTotal.WithLabelValues("no_matches").Inc()
		searchDuration.Observe(s.now().Sub(start).Seconds())
		span.SetAttributes(attribute.Int("results", 0))
		return noMatchesMessage(facets)
	}

	msg := s.formatter.Format(selection, facets)

	searchesTotal.WithLabelValues("results").Inc()
	searchResults.Observe(float64(msg.Included))
	searchDuration.Observe(s.now().Sub(start).Seconds())
	span.SetAttributes(
		attribute.Int("results", msg.Included),
		attribute.Int("segments", msg.Segments),
	)

	s.logger.Info("search complete",
		slog.String("tenant", normalizedTenant),
		slog.Int("candidates", len(candidates)),
		slog.Int("results", msg.Included),
		slog.Int("segments", msg.Segments),
		slog.Duration("took", s.now().Sub(start)),
	)

	return msg.Text
}

// noMatchesMessage builds a zero-result reply that names the constraint
// most likely responsible, so the user's next query can actually succeed.
func noMatchesMessage(f Facets) string {
	var suggestions []string
	if f.Cost == CostFree {
		suggestions = append(suggestions, "try searching without 'free'")
	}
	if f.Time != nil {
		suggestions = append(suggestions, "try a different time of day")
	}
	if f.Date != nil {
		suggestions = append(suggestions, fmt.Sprintf("try another day (nothing found for %s)",
			f.Date.Format("Mon 1/2")))
	} else if f.Range != nil {
		suggestions = append(suggestions, "try a specific day instead of a range")
	}
	if f.Activity != "" && len(suggestions) == 0 {
		suggestions = append(suggestions, "try a broader word for what you're looking for")
	}

	if len(suggestions) == 0 {
		return "No events found for that. Try different keywords, like 'free food friday' or 'live music this weekend'!"
	}
	return "No events found - " + strings.Join(suggestions, ", or ") + "!"
}
