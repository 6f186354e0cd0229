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
	"regexp"
	"strings"
	"time"

	"github.com/usethemove/themove/services/llm"
)

// ChatClient is the chat-completion surface the search package needs from
// the LLM layer. Implemented by llm.OpenAIClient.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.Message, params llm.GenerationParams) (string, error)
}

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ChatDateResolver resolves colloquial date phrases the deterministic
// patterns in the Interpreter cannot ("the day after my last final",
// "next friday-ish"). It is the last rung of the date cascade and only runs
// when every cheaper rule has missed.
//
// The model is pinned to a one-line contract: reply with a single ISO date
// or the word "none". Anything else is treated as "no date" rather than
// guessed at — a hallucinated date would silently hard-filter every result.
type ChatDateResolver struct {
	chat ChatClient
}

// NewChatDateResolver creates a resolver over the given chat client.
func NewChatDateResolver(chat ChatClient) *ChatDateResolver {
	return &ChatDateResolver{chat: chat}
}

// ResolveDate asks the model for the calendar date the query refers to.
//
// Outputs:
//   - time.Time: The resolved date (midnight, local time) when ok is true.
//   - bool: False when the query carries no date reference.
//   - error: Non-nil on transport failure or malformed model output; the
//     caller degrades to a no-date search.
func (r *ChatDateResolver) ResolveDate(ctx context.Context, query string, ref time.Time) (time.Time, bool, error) {
	system := fmt.Sprintf(
		"Today's date is %s (%s). Extract the single calendar date the user's"+
			" query refers to. Reply with ONLY that date in YYYY-MM-DD format."+
			" If the query does not refer to any specific date, reply with"+
			" exactly: none",
		ISODate(ref), ref.Format("Monday"),
	)

	temp := float32(0)
	maxTokens := 16
	resp, err := r.chat.Chat(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: query},
	}, llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		return time.Time{}, false, err
	}

	out := strings.ToLower(strings.TrimSpace(resp))
	if out == "none" || out == "" {
		return time.Time{}, false, nil
	}
	if !isoDateRe.MatchString(out) {
		return time.Time{}, false, fmt.Errorf("resolver: unexpected model output %q", out)
	}

	d, err := ParseISODate(out)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("resolver: parsing model date %q: %w", out, err)
	}
	return d, true, nil
}
