// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"fmt"
	"strings"

	"github.com/usethemove/themove/services/sms"
)

// SMS budget. One message body stays under maxMessageChars so carriers
// deliver it as a small, predictable segment count; titles are truncated to
// maxTitleChars so one result never eats the whole budget.
const (
	maxMessageChars = 300
	maxTitleChars   = 25
)

// Formatter renders selected results into one SMS-sized message body.
//
// # Description
//
// Each result is one line: index, truncated title, compact date and time,
// location, and a short link. Lines are included whole or not at all — a
// truncated mid-line message reads as broken. When the budget cuts a
// pure-date listing short, a footer tells the user how many more matched.
//
// # Thread Safety
//
// Safe for concurrent use (immutable after construction).
type Formatter struct {
	linkHost string
}

// NewFormatter creates a Formatter. baseURL is the public site URL; its
// scheme and "www." prefix are stripped so links spend as few characters
// as possible ("usethemove.com/poster/abc123").
func NewFormatter(baseURL string) *Formatter {
	host := strings.TrimSuffix(baseURL, "/")
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "www.")
	return &Formatter{linkHost: host}
}

// Format renders the selection into a Message.
//
// # Inputs
//
//   - sel: The selector's output, including the total match count for the
//     footer.
//   - f: Facets; pure-date selections get the "Showing N of M" footer.
//
// # Outputs
//
//   - Message: Body text, estimated SMS segments, and how many results the
//     budget actually fit.
func (fm *Formatter) Format(sel Selection, f Facets) Message {
	var b strings.Builder
	included := 0

	for i, sc := range sel.Results {
		line := fm.formatLine(i+1, sc.Candidate)
		sep := ""
		if included > 0 {
			sep = "\n\n"
		}
		if b.Len()+len(sep)+len(line) > maxMessageChars {
			break
		}
		b.WriteString(sep)
		b.WriteString(line)
		included++
	}

	if f.PureDate() && sel.TotalMatched > included && included > 0 {
		footer := fmt.Sprintf("\n\n(Showing %d of %d. Be more specific!)", included, sel.TotalMatched)
		if b.Len()+len(footer) <= maxMessageChars {
			b.WriteString(footer)
		}
	}

	body := b.String()
	return Message{
		Text:     body,
		Segments: sms.EstimateSegments(body),
		Included: included,
	}
}

// formatLine renders one result line:
//
//	1) Jazz Night - Sat 11/2 7:30p @ Union: usethemove.com/poster/abc
//
// Dateless records (organizations) omit the date/time block.
func (fm *Formatter) formatLine(n int, c Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d) %s", n, truncateTitle(c.Title))

	if c.Date != "" {
		if d, err := ParseISODate(c.Date); err == nil {
			fmt.Fprintf(&b, " - %s %d/%d", d.Format("Mon"), int(d.Month()), d.Day())
			if t := compactTime(c.DisplayTime); t != "" {
				b.WriteString(" " + t)
			}
		}
	}
	if c.Location != "" {
		b.WriteString(" @ " + c.Location)
	}
	if fm.linkHost != "" && c.ID != "" {
		fmt.Fprintf(&b, ": %s/poster/%s", fm.linkHost, c.ID)
	}
	return b.String()
}

// truncateTitle caps a title at maxTitleChars runes, appending "..." when
// cut. Counting runes rather than bytes keeps the cut from splitting a
// multi-byte character, which would put invalid UTF-8 in the message body.
func truncateTitle(title string) string {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if len(runes) <= maxTitleChars {
		return title
	}
	return strings.TrimSpace(string(runes[:maxTitleChars-3])) + "..."
}

// compactTime shrinks a display time to its cheapest SMS form:
// "7:30 PM" -> "7:30p", "11 AM" -> "11a".
func compactTime(display string) string {
	t := strings.TrimSpace(display)
	if t == "" {
		return ""
	}
	t = strings.ReplaceAll(t, " ", "")
	t = strings.NewReplacer("AM", "a", "am", "a", "PM", "p", "pm", "p").Replace(t)
	return t
}
