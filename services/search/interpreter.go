// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/usethemove/themove/services/search/config"
)

// dateFallbackTimeout bounds the AI date-fallback call. The fallback is a
// last resort for calendar phrasings the deterministic cascade cannot parse;
// a slow model must never eat the request's outer budget.
const dateFallbackTimeout = 8 * time.Second

// DateResolver is the narrow AI fallback at the end of the date cascade.
//
// Implementations must return (date, true, nil) for an explicit calendar
// date, (zero, false, nil) when the query contains none, and an error only
// for transport/timeout failures. The interpreter treats every error as
// "no date extracted" — sentinel strings from the model never leak past the
// implementation.
type DateResolver interface {
	ResolveDate(ctx context.Context, query string, ref time.Time) (time.Time, bool, error)
}

// Interpreter extracts date, time-of-day, cost, and activity facets from raw
// query text using a deterministic rule cascade with a narrow AI fallback
// for the date field only.
//
// # Description
//
// The date cascade is evaluated in order, first match wins: literal keywords
// (tonight/today/tomorrow/"in N days"), weekday names (always the NEXT
// occurrence, never today), explicit calendar patterns (M/D, "Nov 22nd",
// M-D), then the AI fallback. Relative ranges ("this weekend") are computed
// first and suppress the single-date cascade entirely — a query yields a
// range or a point, never both. Time, cost, and activity extraction are
// independent of the date cascade.
//
// Any sub-extractor failure degrades to "no constraint" for that facet; the
// interpreter as a whole never fails a request.
//
// # Thread Safety
//
// Safe for concurrent use. Interpret has no hidden state: identical text and
// reference time produce identical Facets.
type Interpreter struct {
	activities config.ActivityRules
	resolver   DateResolver
	timeout    time.Duration
	logger     *slog.Logger
}

// NewInterpreter creates an Interpreter.
//
// # Inputs
//
//   - resolver: AI date fallback. Nil disables the fallback; the cascade
//     then ends after the calendar patterns.
//   - logger: Logger for fallback warnings. Must not be nil in production;
//     nil falls back to slog.Default().
func NewInterpreter(resolver DateResolver, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		activities: config.MustLoadActivityRules(),
		resolver:   resolver,
		timeout:    dateFallbackTimeout,
		logger:     logger,
	}
}

// Interpret extracts all facets from query relative to ref.
//
// ref carries both the reference date and the wall clock; the clock only
// matters for "right now" / "later today" windows.
func (in *Interpreter) Interpret(ctx context.Context, query string, ref time.Time) Facets {
	lower := strings.ToLower(query)
	today := DateOnly(ref)

	f := Facets{
		Cost:     extractCostIntent(lower),
		Activity: in.activities.Classify(query),
		Time:     extractTimeWindow(lower, ref),
		Range:    extractDateRange(lower, today),
	}

	// Range and point date are mutually exclusive outputs; a matched range
	// suppresses the whole single-date cascade including the AI fallback.
	if f.Range == nil {
		if d, ok := in.extractDate(ctx, query, lower, today); ok {
			f.Date = &d
		}
	}

	f.Terms = extractTerms(lower)
	f.SingleSalient = isSingleSalient(lower, f)

	return f
}

// =============================================================================
// Date cascade
// =============================================================================

var weekdayNames = []string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var monthAbbrevs = []string{
	"jan", "feb", "mar", "apr", "may", "jun",
	"jul", "aug", "sep", "oct", "nov", "dec",
}

var (
	inDaysRe    = regexp.MustCompile(`in\s+(\d+)\s+days?`)
	slashDateRe = regexp.MustCompile(`(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?`)
	dashDateRe  = regexp.MustCompile(`(\d{1,2})-(\d{1,2})(?:-(\d{2,4}))?`)
	monthDayRes = buildMonthDayPatterns()
)

func buildMonthDayPatterns() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(monthNames))
	for i := range monthNames {
		res[i] = regexp.MustCompile(
			`(?:` + monthNames[i] + `|` + monthAbbrevs[i] + `)\s+(\d{1,2})(?:st|nd|rd|th)?`)
	}
	return res
}

// extractDate runs the deterministic date cascade, then the AI fallback.
// Returns (date, false) when no date was extracted.
func (in *Interpreter) extractDate(ctx context.Context, query, lower string, today time.Time) (time.Time, bool) {
	// 1. Literal keywords. "tonight" before "today" — both substrings can
	// appear and tonight implies today anyway.
	switch {
	case strings.Contains(lower, "tonight"):
		return today, true
	case strings.Contains(lower, "tomorrow"):
		return today.AddDate(0, 0, 1), true
	case strings.Contains(lower, "today"):
		return today, true
	}
	if m := inDaysRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return today.AddDate(0, 0, n), true
		}
	}

	// 2. Weekday names: next occurrence strictly after today. A weekday
	// matching today's weekday advances a full week — "friday" asked on a
	// Friday never means today.
	for idx, name := range weekdayNames {
		if strings.Contains(lower, name) {
			diff := (idx - int(today.Weekday()) + 7) % 7
			if diff == 0 {
				diff = 7
			}
			return today.AddDate(0, 0, diff), true
		}
	}

	// 3. Explicit calendar patterns.
	if d, ok := parseSlashOrDashDate(slashDateRe, lower, today); ok {
		return d, true
	}
	if d, ok := parseMonthDayDate(lower, today); ok {
		return d, true
	}
	if d, ok := parseSlashOrDashDate(dashDateRe, lower, today); ok {
		return d, true
	}

	// 4. AI fallback, bounded. Any failure is "no date extracted".
	return in.fallbackDate(ctx, query, today)
}

// parseSlashOrDashDate parses M/D[/YY|YYYY] or M-D[-YY|YYYY]. A date in the
// past with no explicit year rolls forward to next year.
func parseSlashOrDashDate(re *regexp.Regexp, lower string, today time.Time) (time.Time, bool) {
	m := re.FindStringSubmatch(lower)
	if m == nil {
		return time.Time{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	year := today.Year()
	explicitYear := m[3] != ""
	if explicitYear {
		year, _ = strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, today.Location())
	if !explicitYear && d.Before(today) {
		d = d.AddDate(1, 0, 0)
	}
	return d, true
}

// parseMonthDayDate parses "november 22nd" / "nov 22". Past dates roll
// forward to next year.
func parseMonthDayDate(lower string, today time.Time) (time.Time, bool) {
	for i, re := range monthDayRes {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		day, _ := strconv.Atoi(m[1])
		if day < 1 || day > 31 {
			continue
		}
		d := time.Date(today.Year(), time.Month(i+1), day, 0, 0, 0, 0, today.Location())
		if d.Before(today) {
			d = d.AddDate(1, 0, 0)
		}
		return d, true
	}
	return time.Time{}, false
}

// fallbackDate asks the AI resolver for an explicit calendar date. Timeout,
// transport error, or a malformed answer all degrade to "no date".
func (in *Interpreter) fallbackDate(ctx context.Context, query string, today time.Time) (time.Time, bool) {
	if in.resolver == nil {
		return time.Time{}, false
	}

	fbCtx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	d, ok, err := in.resolver.ResolveDate(fbCtx, query, today)
	if err != nil {
		code := ErrCodeExtractionTimeout
		in.logger.Warn("date fallback failed, continuing without date facet",
			slog.String("code", string(code)),
			slog.String("error", err.Error()),
		)
		return time.Time{}, false
	}
	if !ok {
		return time.Time{}, false
	}
	return DateOnly(d.In(today.Location())), true
}

// =============================================================================
// Relative date ranges
// =============================================================================

// extractDateRange maps relative phrases to inclusive date ranges. Computed
// independently of the single-date cascade and takes precedence over it.
func extractDateRange(lower string, today time.Time) *DateRange {
	if strings.Contains(lower, "this weekend") || strings.Contains(lower, "weekend") {
		daysUntilSaturday := (int(time.Saturday) - int(today.Weekday()) + 7) % 7
		if daysUntilSaturday == 0 {
			// Asked on a Saturday: "this weekend" means the upcoming one.
			daysUntilSaturday = 7
		}
		start := today.AddDate(0, 0, daysUntilSaturday)
		return &DateRange{Start: start, End: start.AddDate(0, 0, 1)}
	}
	if strings.Contains(lower, "next week") {
		return &DateRange{Start: today.AddDate(0, 0, 7), End: today.AddDate(0, 0, 13)}
	}
	if strings.Contains(lower, "this week") {
		daysUntilSunday := (7 - int(today.Weekday())) % 7
		if daysUntilSunday == 0 {
			daysUntilSunday = 7
		}
		return &DateRange{Start: today, End: today.AddDate(0, 0, daysUntilSunday)}
	}
	if strings.Contains(lower, "soon") {
		return &DateRange{Start: today, End: today.AddDate(0, 0, 3)}
	}
	return nil
}

// =============================================================================
// Time-of-day / explicit time
// =============================================================================

var explicitTimeRe = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
var afterBeforeRe = regexp.MustCompile(`\b(after|before|at)\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)

// extractTimeWindow returns the time constraint for the query: a named
// range, a "now"-relative range, or an explicit time with an operator.
func extractTimeWindow(lower string, ref time.Time) *TimeWindow {
	// Named time-of-day ranges win over explicit times.
	switch {
	case strings.Contains(lower, "morning"):
		return &TimeWindow{Op: TimeOpRange, Start: "06:00", End: "12:00"}
	case strings.Contains(lower, "afternoon"):
		return &TimeWindow{Op: TimeOpRange, Start: "12:00", End: "17:00"}
	case strings.Contains(lower, "evening"), strings.Contains(lower, "night"):
		return &TimeWindow{Op: TimeOpRange, Start: "17:00", End: "23:59"}
	}

	if strings.Contains(lower, "right now") || strings.Contains(lower, "happening now") {
		start := fmt.Sprintf("%02d:%02d", ref.Hour(), ref.Minute())
		end := fmt.Sprintf("%02d:%02d", (ref.Hour()+1)%24, ref.Minute())
		return &TimeWindow{Op: TimeOpRange, Start: start, End: end}
	}
	if strings.Contains(lower, "later today") {
		start := fmt.Sprintf("%02d:%02d", ref.Hour(), ref.Minute())
		return &TimeWindow{Op: TimeOpRange, Start: start, End: "23:59"}
	}

	// "before noon" / "after noon" (the word, not the range keyword).
	if strings.Contains(lower, "noon") {
		switch {
		case strings.Contains(lower, "before"):
			return &TimeWindow{Op: TimeOpBefore, Value: "12:00"}
		case strings.Contains(lower, "after"):
			return &TimeWindow{Op: TimeOpAfter, Value: "12:00"}
		default:
			return &TimeWindow{Op: TimeOpEqual, Value: "12:00"}
		}
	}

	// Explicit times. The operator context ("after 6", "before 9pm")
	// matches first so the bare am/pm pattern cannot steal its digits.
	if m := afterBeforeRe.FindStringSubmatch(lower); m != nil {
		value := normalizeClock(m[2], m[3], m[4])
		switch m[1] {
		case "after":
			return &TimeWindow{Op: TimeOpAfter, Value: value}
		case "before":
			return &TimeWindow{Op: TimeOpBefore, Value: value}
		default:
			return &TimeWindow{Op: TimeOpEqual, Value: value}
		}
	}
	if m := explicitTimeRe.FindStringSubmatch(lower); m != nil {
		return &TimeWindow{Op: TimeOpEqual, Value: normalizeClock(m[1], m[2], m[3])}
	}

	return nil
}

// normalizeClock converts parsed hour/minute/suffix strings to HH:MM 24h.
func normalizeClock(hourStr, minStr, suffix string) string {
	hour, _ := strconv.Atoi(hourStr)
	minute := 0
	if minStr != "" {
		minute, _ = strconv.Atoi(minStr)
	}
	if suffix == "pm" && hour < 12 {
		hour += 12
	}
	if suffix == "am" && hour == 12 {
		hour = 0
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// =============================================================================
// Cost intent
// =============================================================================

var freeKeywords = []string{"free", "no cost", "complimentary", "no charge"}
var cheapKeywords = []string{"cheap", "affordable", "low cost", "inexpensive"}

func extractCostIntent(lower string) CostIntent {
	for _, kw := range freeKeywords {
		if strings.Contains(lower, kw) {
			return CostFree
		}
	}
	for _, kw := range cheapKeywords {
		if strings.Contains(lower, kw) {
			return CostCheap
		}
	}
	return CostNone
}

// =============================================================================
// Salient terms
// =============================================================================

// queryStopwords are filler words that carry no activity signal: question
// scaffolding, date/time words already consumed by the temporal extractors,
// and auxiliaries.
var queryStopwords = map[string]struct{}{
	"what": {}, "whats": {}, "happening": {}, "events": {}, "event": {},
	"today": {}, "tomorrow": {}, "tonight": {}, "this": {}, "week": {},
	"weekend": {}, "next": {}, "soon": {}, "related": {}, "about": {},
	"for": {}, "on": {}, "at": {}, "the": {}, "a": {}, "an": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "have": {}, "has": {}, "had": {}, "do": {}, "does": {},
	"did": {}, "after": {}, "before": {}, "morning": {}, "afternoon": {},
	"evening": {}, "night": {}, "noon": {}, "later": {}, "now": {},
	"right": {}, "days": {},
}

// extractTerms returns the salient query words: stopwords, weekday and
// month names, and numeric/clock tokens stripped, apostrophes folded so
// "what's" matches the "whats" stopword.
func extractTerms(lower string) []string {
	cleaned := strings.ReplaceAll(lower, "'", "")
	words := strings.Fields(cleaned)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?")
		if len(w) <= 2 {
			continue
		}
		if _, stop := queryStopwords[w]; stop {
			continue
		}
		if isTemporalToken(w) {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

// isTemporalToken reports whether w is a weekday, month name, or a token the
// date/time extractors own (digits, clock values, am/pm-suffixed numbers).
func isTemporalToken(w string) bool {
	if w[0] >= '0' && w[0] <= '9' {
		return true
	}
	for _, d := range weekdayNames {
		if w == d {
			return true
		}
	}
	for i := range monthNames {
		if w == monthNames[i] || w == monthAbbrevs[i] {
			return true
		}
	}
	return false
}

// isSingleSalient detects bare one-word activity queries ("basketball").
// These get a stronger title boost in the Ranker and a lower quality floor
// in the Selector.
func isSingleSalient(lower string, f Facets) bool {
	if f.Time != nil || f.Range != nil {
		return false
	}
	trimmed := strings.TrimSpace(lower)
	if strings.ContainsAny(trimmed, " \t") {
		return false
	}
	if len(trimmed) <= 3 {
		return false
	}
	if strings.Contains(trimmed, "free") || strings.Contains(trimmed, "what") {
		return false
	}
	return true
}
