// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"log/slog"
)

// Quality floors per query mode. A single salient word ("basketball") is a
// broad net, so it tolerates weaker matches; a general sentence query must
// clear a higher bar before it's worth a screen line.
const (
	floorSingleSalient = 0.35
	floorDateActivity  = 0.40
	floorGeneral       = 0.50
)

// Adaptive result-count ceilings.
const (
	maxPureDateResults = 3
	maxResults         = 5
)

// Selection is the Selector's output: the lines to show plus how many
// candidates matched in total, which the formatter needs for its
// "Showing N of M" footer.
type Selection struct {
	Results      []Scored
	TotalMatched int
}

// Selector decides which ranked candidates are worth SMS screen space.
//
// # Description
//
// Three concerns, in order: dedupe by record ID, drop everything under the
// mode's quality floor, then pick an adaptive count — confident top scores
// earn more lines, mediocre ones fewer. When at least three results from a
// larger pool survive, an organizer-diversity pass caps repeat
// organizations past the top two picks, backfilling from the remainder if
// diversity starved the list.
//
// # Thread Safety
//
// Safe for concurrent use (stateless apart from the logger).
type Selector struct {
	logger *slog.Logger
}

// NewSelector creates a Selector.
func NewSelector(logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{logger: logger}
}

// Select picks the final result list from ranked candidates.
func (s *Selector) Select(ranked []Scored, f Facets) Selection {
	deduped := dedupeByID(ranked)

	floor := qualityFloor(f)
	qualified := make([]Scored, 0, len(deduped))
	for _, sc := range deduped {
		if sc.Enhanced >= floor {
			qualified = append(qualified, sc)
		}
	}

	count := adaptiveCount(qualified, f)
	var results []Scored
	if count >= 3 && len(qualified) > 3 && !f.PureDate() {
		results = diversify(qualified, count)
	} else {
		results = qualified[:count]
	}

	s.logger.Debug("selection complete",
		slog.Int("ranked", len(ranked)),
		slog.Int("qualified", len(qualified)),
		slog.Int("selected", len(results)),
	)

	return Selection{Results: results, TotalMatched: len(qualified)}
}

// qualityFloor returns the minimum enhanced score for the query mode.
// Pure-date listings are exhaustive by construction (every survivor scored
// 1.0), so their floor is zero.
func qualityFloor(f Facets) float64 {
	switch {
	case f.PureDate():
		return 0
	case f.SingleSalient:
		return floorSingleSalient
	case f.Date != nil && f.HasActivityFilter():
		return floorDateActivity
	default:
		return floorGeneral
	}
}

// adaptiveCount sizes the result list from the top score: a confident match
// justifies a fuller screen, a borderline one gets a single line rather
// than four mediocre ones.
func adaptiveCount(qualified []Scored, f Facets) int {
	n := len(qualified)
	if n == 0 {
		return 0
	}
	if f.PureDate() {
		return min(maxPureDateResults, n)
	}
	if f.Date != nil && f.HasActivityFilter() {
		return min(maxResults, n)
	}
	top := qualified[0].Enhanced
	switch {
	case top > 0.8 && n >= 5:
		return 5
	case top > 0.7 && n >= 4:
		return 4
	case top > 0.6 && n >= 3:
		return 3
	case top > 0.5 && n >= 2:
		return 2
	default:
		return 1
	}
}

// dedupeByID drops repeat record IDs, keeping the first (highest-ranked)
// occurrence.
func dedupeByID(ranked []Scored) []Scored {
	seen := make(map[string]struct{}, len(ranked))
	out := make([]Scored, 0, len(ranked))
	for _, sc := range ranked {
		if _, dup := seen[sc.ID]; dup {
			continue
		}
		seen[sc.ID] = struct{}{}
		out = append(out, sc)
	}
	return out
}

// diversify caps each organization at one slot, walking the ranked list in
// order, then backfills with skipped candidates if the cap left slots
// empty. The cap only kicks in once two results are picked: the two
// strongest matches always make the list even when they share an
// organization. Records with no organization never block each other.
func diversify(qualified []Scored, count int) []Scored {
	picked := make([]Scored, 0, count)
	var skipped []Scored
	seenOrg := make(map[string]struct{}, count)

	for _, sc := range qualified {
		if len(picked) == count {
			break
		}
		org := sc.Organization
		if org != "" {
			if _, dup := seenOrg[org]; dup && len(picked) >= 2 {
				skipped = append(skipped, sc)
				continue
			}
			seenOrg[org] = struct{}{}
		}
		picked = append(picked, sc)
	}
	for _, sc := range skipped {
		if len(picked) == count {
			break
		}
		picked = append(picked, sc)
	}
	return picked
}
