// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"regexp"
)

// redactionPattern pairs a compiled regex with a replacement label so the
// log reader knows what was redacted without seeing the secret value.
//
// Thread Safety: This type is immutable after construction.
type redactionPattern struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// redactionPatterns is the ordered list of secret patterns to redact from
// upstream error bodies before they hit logs or wrapped errors.
//
// IMPORTANT: Order matters. More specific patterns must appear before less
// specific ones to prevent partial redaction.
//
// Thread Safety: This slice is initialized once and never modified.
var redactionPatterns = []redactionPattern{
	// OpenAI API key: sk-<base62, 20+ chars>.
	// Requires 20+ chars after "sk-" to avoid matching short strings.
	{
		Pattern:     regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
		Replacement: "[REDACTED:openai_key]",
	},
	// Bearer token in Authorization header values.
	{
		Pattern:     regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]{10,}`),
		Replacement: "[REDACTED:bearer_token]",
	},
	// Twilio auth token or account SID echoed in error bodies.
	{
		Pattern:     regexp.MustCompile(`AC[a-f0-9]{32}:[^\s@]+`),
		Replacement: "[REDACTED:twilio_credentials]",
	},
	// API key in URL query parameter: key=<value>.
	{
		Pattern:     regexp.MustCompile(`key=[A-Za-z0-9._-]{10,}`),
		Replacement: "key=[REDACTED]",
	},
}

// SafeLogString redacts known secret formats from s before it is logged or
// embedded in an error message. Upstream APIs occasionally echo request
// headers back in error bodies; those bodies flow into wrapped errors here.
//
// Thread Safety: Safe for concurrent use.
func SafeLogString(s string) string {
	for _, rp := range redactionPatterns {
		s = rp.Pattern.ReplaceAllString(s, rp.Replacement)
	}
	return s
}
