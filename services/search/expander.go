// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/usethemove/themove/services/search/config"
)

// Expander builds the retrieval-oriented text blob sent to the embedding
// service: the raw query, a synonym-widened term list, and the extracted
// facets restated as natural-language constraint sentences.
//
// The embedding text is the ONLY thing the embedding service sees — no
// structured facets cross that boundary. The embedding captures fuzzy
// intent; deterministic facets enforce hard correctness later in the Ranker.
// A "tomorrow" query must never surface a same-day miss because the model
// felt semantically generous.
//
// # Thread Safety
//
// Safe for concurrent use (immutable after construction).
type Expander struct {
	synonyms config.Synonyms
}

// NewExpander creates an Expander backed by the embedded synonym table.
func NewExpander() *Expander {
	return &Expander{synonyms: config.MustLoadSynonyms()}
}

// activityContext restates each canonical activity tag as embedding-text
// guidance. Kept as data beside the tag table in config/activity_types.yaml.
var activityContext = map[string]string{
	"study_groups":           "The student wants study groups or study sessions.",
	"tutoring":               "The student wants tutoring or academic help.",
	"workshops":              "The student wants workshops or hands-on skill-building sessions.",
	"lectures":               "The student wants lectures, talks, or presentations.",
	"seminars":               "The student wants seminars or academic discussions.",
	"career_fairs":           "The student wants career fairs or employer networking events.",
	"networking":             "The student wants networking and professional connection events.",
	"job_opportunities":      "The student wants events about jobs, employment, or hiring.",
	"internships":            "The student wants internship opportunities.",
	"research_opportunities": "The student wants research positions or lab opportunities.",
	"clubs":                  "The student wants student clubs or club events.",
	"organizations":          "The student wants student organizations.",
	"parties":                "The student wants parties or social gatherings.",
	"social_events":          "The student wants social, community-building events.",
	"social":                 "The student wants to meet people and make friends.",
	"pizza":                  "The student wants events with pizza.",
	"dinner":                 "The student wants dinner events or evening meals.",
	"lunch":                  "The student wants lunch events or midday meals.",
	"food_trucks":            "The student wants events with food trucks.",
	"catered":                "The student wants catered events.",
	"concerts":               "The student wants concerts or live music.",
	"games":                  "The student wants games, gaming, or game tournaments.",
	"tournaments":            "The student wants tournaments or competitions.",
	"competitions":           "The student wants competitions or contests.",
	"performances":           "The student wants performances, shows, or entertainment.",
}

// Expand renders the embedding text for one query.
//
// # Inputs
//
//   - raw: The user's query text, verbatim.
//   - f: Facets extracted from raw.
//   - tenant: The campus the query belongs to ("UNC-Chapel Hill").
//   - ref: Reference date for "today" phrasing.
func (e *Expander) Expand(raw string, f Facets, tenant string, ref time.Time) string {
	lower := strings.ToLower(raw)

	// Stable trigger order keeps the embedding text deterministic for a
	// given query, which keeps embeddings cacheable upstream.
	triggers := make([]string, 0, len(e.synonyms))
	for trigger := range e.synonyms {
		triggers = append(triggers, trigger)
	}
	sort.Strings(triggers)

	expanded := raw
	for _, trigger := range triggers {
		if !strings.Contains(lower, trigger) {
			continue
		}
		for _, term := range e.synonyms[trigger] {
			if term == trigger {
				continue
			}
			expanded += " " + term
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Today's date is %s. ", ref.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "A %s student is searching for: %q. ", tenant, raw)
	fmt.Fprintf(&b, "Search terms: %q. ", expanded)
	b.WriteString("Find campus events matching these keywords and concepts.")

	if f.Cost == CostFree {
		b.WriteString(" The student specifically wants FREE events with no cost," +
			" no admission fee, or complimentary access. Prioritize events marked as free.")
	}
	if ctxSentence, ok := activityContext[f.Activity]; f.Activity != "" && ok {
		b.WriteString(" " + ctxSentence)
	}

	switch {
	case f.Range != nil:
		fmt.Fprintf(&b, " The student wants events happening between %s and %s.",
			f.Range.Start.Format("Mon Jan 2 2006"), f.Range.End.Format("Mon Jan 2 2006"))
	case f.Date != nil:
		fmt.Fprintf(&b, " Only include events happening on %s.",
			f.Date.Format("Mon Jan 2 2006"))
	default:
		b.WriteString(" Match upcoming events happening soon.")
	}

	b.WriteString(" Match using title, tags, description, date, time, location," +
		" cost, and categories.")

	return b.String()
}
