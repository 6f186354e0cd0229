// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package search implements the query-understanding, retrieval, ranking,
// and response-budgeting pipeline behind TheMove's event discovery.
//
// A free-form student query ("free pizza tomorrow") flows left to right
// through six stages:
//
//	Interpreter -> Expander -> Retriever -> Ranker -> Selector -> Formatter
//
// Each stage is a plain value type with injected collaborators; the pipeline
// is stateless and request-scoped. Service.Search composes the stages under a
// single outer deadline and converts every internal failure into one of two
// user-visible outcomes: a ranked result message or a short retry message.
package search

import (
	"time"
)

// CostIntent is the price constraint extracted from a query.
type CostIntent string

const (
	// CostNone means the query expressed no price constraint.
	CostNone CostIntent = ""
	// CostFree matches "free", "no cost", "complimentary", "no charge".
	CostFree CostIntent = "free"
	// CostCheap matches "cheap", "affordable", "low cost", "inexpensive".
	CostCheap CostIntent = "cheap"
)

// Time window operators produced by the time-of-day extractor.
const (
	TimeOpRange  = "range"
	TimeOpEqual  = "="
	TimeOpAfter  = ">="
	TimeOpBefore = "<="
)

// TimeWindow constrains a candidate's normalized start time (HH:MM, 24h).
//
// For TimeOpRange, Start and End bound the window inclusively. For the
// comparison operators, Value holds the pivot time. HH:MM strings compare
// correctly with plain string comparison, which is how the Ranker applies
// the window.
type TimeWindow struct {
	Op    string
	Start string
	End   string
	Value string
}

// DateRange is an inclusive calendar-date interval produced by relative
// phrases like "this weekend" or "next week". Start and End are local dates
// at midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Facets is the full set of constraints extracted from one query.
//
// Date and Range are mutually exclusive: when a relative range matches
// ("this weekend"), the single-date cascade is skipped, so at most one of
// the two drives filtering. Facets is produced once per query by
// Interpreter.Interpret and never mutated afterwards.
type Facets struct {
	// Date is the single target date, local midnight. Nil when no exact
	// date was extracted.
	Date *time.Time

	// Range is the relative date range. Nil when none matched.
	Range *DateRange

	// Time is the time-of-day or explicit-time constraint. Nil when none.
	Time *TimeWindow

	// Cost is the extracted price constraint.
	Cost CostIntent

	// Activity is the canonical activity tag ("study_groups",
	// "career_fairs", ...). Empty when no activity keyword matched.
	Activity string

	// Terms are the salient query words left after stripping date/time
	// filler ("what", "happening", "tomorrow", ...). They feed the
	// Ranker's lexical boosts and the activity-filter decision.
	Terms []string

	// SingleSalient marks a bare one-word activity query ("basketball").
	// Such queries get a stronger title boost and a lower quality floor
	// because raw embedding similarity is weak for single keywords.
	SingleSalient bool
}

// HasActivityFilter reports whether the query constrains what kind of event
// beyond pure date/time: an activity tag, a cost intent, or any salient term.
// Pure-date queries (no activity filter) skip semantic ranking entirely.
func (f Facets) HasActivityFilter() bool {
	return f.Activity != "" || f.Cost != CostNone || len(f.Terms) > 0
}

// PureDate reports whether this is a date-only query: an exact date with no
// activity filter. Pure-date results are ordered by start time, capped low,
// and never semantically re-ranked.
func (f Facets) PureDate() bool {
	return f.Date != nil && !f.HasActivityFilter()
}

// Candidate is one event or organization record returned by the vector
// index, flattened from match metadata. Read-only within the pipeline.
type Candidate struct {
	ID           string
	Title        string
	Organization string
	Tags         []string
	Categories   []string

	// Date is the normalized calendar date (YYYY-MM-DD), empty for
	// organization records.
	Date string

	// StartTime is the normalized start time (HH:MM, 24h), empty when
	// unknown.
	StartTime string

	// DisplayTime is the human-readable time string from the poster
	// ("7:30 PM"), used only by the Formatter.
	DisplayTime string

	Location   string
	Cost       string
	RecordType string
	Tenant     string

	// Score is the raw cosine similarity reported by the index.
	Score float64
}

// Scored is a Candidate plus its enhanced score. BoostReasons records which
// boost rules fired, for diagnostics and tests; it is discarded after
// selection.
type Scored struct {
	Candidate

	// Enhanced is similarity plus all applicable boosts, clamped to [0, 1].
	Enhanced float64

	BoostReasons []string
}

// Message is the final transport-ready response.
type Message struct {
	// Text is the complete message body. Plain GSM-7-safe text, no emoji.
	Text string

	// Segments is the estimated SMS segment count for Text.
	Segments int

	// Included is how many events made it into Text under the character
	// budget.
	Included int
}
