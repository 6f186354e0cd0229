// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Boost caps. Each rule contributes at most its cap; the enhanced score is
// clamped to [0, 1] after every addition.
const (
	boostPerTitleWord    = 0.05
	boostTitleCap        = 0.15
	boostSingleWordTitle = 0.25
	boostPerTag          = 0.04
	boostTagCap          = 0.12
	boostActivityExact   = 0.10
	boostPerCategory     = 0.03
	boostCategoryCap     = 0.08
	boostRecencyToday    = 0.08
	boostRecencyTomorrow = 0.05
	boostRecencyWeek     = 0.03
	boostFree            = 0.06
)

// sortKeyNoTime sorts events without a start time after every real clock
// value in pure-date listings.
const sortKeyNoTime = "99:99"

// Ranker applies hard facet filters and deterministic keyword boosts on top
// of the raw vector-similarity scores.
//
// # Description
//
// Hard filters are non-negotiable: wrong tenant, wrong record type, wrong
// date, failed cost or time-window constraint, or already past — dropped,
// no matter how semantically close the embedding thought it was. Soft
// scoring then reorders the survivors.
//
// Pure-date queries ("what's happening tomorrow") skip soft scoring
// entirely. Relevance is meaningless when the user asked for everything on
// a day; survivors get a uniform enhanced score of 1.0 and chronological
// order.
//
// # Thread Safety
//
// Safe for concurrent use (stateless apart from the logger).
type Ranker struct {
	logger *slog.Logger
}

// NewRanker creates a Ranker.
func NewRanker(logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{logger: logger}
}

// Rank filters and scores candidates.
//
// # Inputs
//
//   - candidates: Raw retrieval output, any order.
//   - f: Facets the query was interpreted into.
//   - tenant: Normalized tenant; rechecked here even though the index
//     filtered on it, so a misconfigured filter cannot leak cross-campus.
//   - ref: Reference time for recency and past-event cutoffs.
//
// # Outputs
//
//   - []Scored: Survivors in presentation order (score-descending, or
//     chronological for pure-date queries).
func (r *Ranker) Rank(candidates []Candidate, f Facets, tenant string, ref time.Time) []Scored {
	today := DateOnly(ref)
	survivors := r.hardFilter(candidates, f, tenant, today)

	if f.PureDate() {
		scored := make([]Scored, 0, len(survivors))
		for _, c := range survivors {
			scored = append(scored, Scored{Candidate: c, Enhanced: 1.0})
		}
		sort.SliceStable(scored, func(i, j int) bool {
			ti, tj := timeSortKey(scored[i].StartTime), timeSortKey(scored[j].StartTime)
			if ti != tj {
				return ti < tj
			}
			return scored[i].Title < scored[j].Title
		})
		return scored
	}

	scored := make([]Scored, 0, len(survivors))
	for _, c := range survivors {
		enhanced, reasons := applyBoosts(c, f, today)
		scored = append(scored, Scored{Candidate: c, Enhanced: enhanced, BoostReasons: reasons})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Enhanced != scored[j].Enhanced {
			return scored[i].Enhanced > scored[j].Enhanced
		}
		// Date-plus-activity queries tie-break chronologically so "free
		// food tomorrow" reads like a schedule.
		if f.Date != nil {
			return timeSortKey(scored[i].StartTime) < timeSortKey(scored[j].StartTime)
		}
		return false
	})

	r.logger.Debug("ranking complete",
		slog.Int("in", len(candidates)),
		slog.Int("survivors", len(scored)),
		slog.Bool("pure_date", f.PureDate()),
	)

	return scored
}

// hardFilter drops every candidate that violates a deterministic facet.
func (r *Ranker) hardFilter(candidates []Candidate, f Facets, tenant string, today time.Time) []Candidate {
	keep := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.RecordType != "event" && c.RecordType != "organization" {
			continue
		}
		if tenant != "" && c.Tenant != "" && c.Tenant != tenant {
			continue
		}
		if f.Date != nil {
			if c.Date != ISODate(*f.Date) {
				continue
			}
		} else if f.Range != nil {
			d, err := ParseISODate(c.Date)
			if err != nil || d.Before(f.Range.Start) || d.After(f.Range.End) {
				continue
			}
		} else if c.Date != "" {
			// No date constraint: drop past events, keep dateless records
			// (organizations have no calendar date).
			d, err := ParseISODate(c.Date)
			if err == nil && d.Before(today) {
				continue
			}
		}
		if f.Cost != CostNone && !passesCostFilter(c.Cost, f.Cost) {
			continue
		}
		if f.Time != nil && !inTimeWindow(c.StartTime, f.Time) {
			continue
		}
		keep = append(keep, c)
	}
	return keep
}

// passesCostFilter checks a candidate's cost string against the cost
// intent. An EMPTY cost passes the free filter: posters overwhelmingly omit
// the cost line exactly when admission is free, so treating blank as paid
// would hide most free events.
func passesCostFilter(cost string, intent CostIntent) bool {
	lower := strings.ToLower(strings.TrimSpace(cost))
	free := lower == "" || lower == "free" || lower == "$0" || lower == "0" ||
		strings.Contains(lower, "free") || strings.Contains(lower, "no cost") ||
		strings.Contains(lower, "complimentary")
	if intent == CostFree {
		return free
	}
	// Cheap: free always qualifies, otherwise a parseable amount of $10 or
	// less does.
	if free {
		return true
	}
	if amt, ok := parseDollars(lower); ok {
		return amt <= 10
	}
	return strings.Contains(lower, "cheap") || strings.Contains(lower, "affordable")
}

// parseDollars extracts the first dollar amount from a cost string
// ("$5", "5 dollars", "$12.50 at the door").
func parseDollars(s string) (float64, bool) {
	i := strings.IndexAny(s, "$0123456789")
	if i < 0 {
		return 0, false
	}
	s = s[i:]
	s = strings.TrimPrefix(s, "$")
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	amt, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return amt, true
}

// inTimeWindow checks a normalized 24h start time ("19:30") against the
// requested window. Events without a start time fail any time constraint —
// "tonight" must not surface an event that might be at 9am.
func inTimeWindow(start string, w *TimeWindow) bool {
	if start == "" {
		return false
	}
	switch w.Op {
	case TimeOpRange:
		if w.Start <= w.End {
			return start >= w.Start && start <= w.End
		}
		// Window wraps midnight ("happening now" at 11:30pm).
		return start >= w.Start || start <= w.End
	case TimeOpEqual:
		return start == w.Value
	case TimeOpAfter:
		return start >= w.Value
	case TimeOpBefore:
		return start <= w.Value
	default:
		return true
	}
}

// timeSortKey maps a start time to its chronological sort key, pushing
// timeless records last.
func timeSortKey(start string) string {
	if start == "" {
		return sortKeyNoTime
	}
	return start
}

// applyBoosts folds the deterministic boost rules over one candidate's
// similarity score. Returns the clamped enhanced score and the names of
// the rules that fired, for debug logging.
func applyBoosts(c Candidate, f Facets, today time.Time) (float64, []string) {
	score := c.Score
	var reasons []string

	add := func(boost float64, reason string) {
		if boost <= 0 {
			return
		}
		score += boost
		if score > 1 {
			score = 1
		}
		reasons = append(reasons, reason)
	}

	titleWords := lowerFields(c.Title)

	if f.SingleSalient && len(f.Terms) == 1 {
		if containsWordMatch(titleWords, f.Terms[0]) {
			add(boostSingleWordTitle, "single_word_title")
		}
	}

	if n := overlapCount(f.Terms, titleWords); n > 0 {
		add(capBoost(n, boostPerTitleWord, boostTitleCap), fmt.Sprintf("title_words:%d", n))
	}
	if n := overlapCount(f.Terms, c.Tags); n > 0 {
		add(capBoost(n, boostPerTag, boostTagCap), fmt.Sprintf("tags:%d", n))
	}
	if f.Activity != "" && containsExact(c.Tags, f.Activity) {
		add(boostActivityExact, "activity_tag")
	}
	if n := overlapCount(f.Terms, c.Categories); n > 0 {
		add(capBoost(n, boostPerCategory, boostCategoryCap), fmt.Sprintf("categories:%d", n))
	}

	if c.Date != "" {
		if d, err := ParseISODate(c.Date); err == nil {
			switch days := daysBetween(today, d); {
			case days == 0:
				add(boostRecencyToday, "today")
			case days == 1:
				add(boostRecencyTomorrow, "tomorrow")
			case days >= 2 && days <= 7:
				add(boostRecencyWeek, "this_week")
			}
		}
	}

	if f.Cost == CostFree && passesCostFilter(c.Cost, CostFree) {
		add(boostFree, "free")
	}

	if score < 0 {
		score = 0
	}
	return score, reasons
}

// capBoost returns n unit boosts capped at cap.
func capBoost(n int, unit, cap float64) float64 {
	b := float64(n) * unit
	if b > cap {
		return cap
	}
	return b
}

// lowerFields splits s into lowercase words with punctuation trimmed.
func lowerFields(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		w = strings.Trim(w, ".,!?:;()\"'")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// overlapCount counts how many query terms appear among the candidate's
// words, using substring containment in either direction so "network"
// matches "networking".
func overlapCount(terms, words []string) int {
	n := 0
	for _, t := range terms {
		if containsWordMatch(words, t) {
			n++
		}
	}
	return n
}

func containsWordMatch(words []string, term string) bool {
	for _, w := range words {
		if strings.Contains(w, term) || strings.Contains(term, w) {
			return true
		}
	}
	return false
}

func containsExact(words []string, term string) bool {
	for _, w := range words {
		if w == term {
			return true
		}
	}
	return false
}
