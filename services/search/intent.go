// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/usethemove/themove/services/llm"
)

// Intent is the coarse classification of an inbound message that decides
// which handler path it takes.
type Intent string

const (
	// IntentSearch is an event search query. The default and the fallback.
	IntentSearch Intent = "search"
	// IntentInfo asks what this service is or how it works.
	IntentInfo Intent = "info"
	// IntentSignup asks to register, subscribe, or opt in.
	IntentSignup Intent = "signup"
	// IntentRandom is chatter with no actionable request.
	IntentRandom Intent = "random"
)

const classifyTimeout = 5 * time.Second

// IntentClassifier routes inbound SMS text to one of four intents with a
// single short chat-completion call.
//
// Misclassification is cheap in one direction only: an off-topic message
// run through search yields a polite "no matches", while a real search
// swallowed by a canned reply loses the user. So every failure mode —
// transport error, timeout, or a label outside the contract — falls back
// to IntentSearch.
type IntentClassifier struct {
	chat   ChatClient
	logger *slog.Logger
}

// NewIntentClassifier creates a classifier over the given chat client.
func NewIntentClassifier(chat ChatClient, logger *slog.Logger) *IntentClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntentClassifier{chat: chat, logger: logger}
}

const intentSystemPrompt = `You classify SMS messages sent to a campus events search service.
Reply with exactly one word from this list:
search - the user is looking for events, activities, food, clubs, or anything happening on campus
info - the user asks what this service is, who runs it, or how it works
signup - the user wants to register, subscribe, or opt in to updates
random - greetings, thanks, or chatter with no actionable request`

// Classify labels one message. Never returns an error: any failure
// degrades to IntentSearch.
func (c *IntentClassifier) Classify(ctx context.Context, message string) Intent {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	temp := float32(0)
	maxTokens := 4
	resp, err := c.chat.Chat(ctx, []llm.Message{
		{Role: "system", Content: intentSystemPrompt},
		{Role: "user", Content: message},
	}, llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		c.logger.Warn("intent classification failed, defaulting to search",
			slog.String("error", err.Error()))
		return IntentSearch
	}

	switch Intent(strings.ToLower(strings.TrimSpace(resp))) {
	case IntentInfo:
		return IntentInfo
	case IntentSignup:
		return IntentSignup
	case IntentRandom:
		return IntentRandom
	case IntentSearch:
		return IntentSearch
	default:
		c.logger.Warn("intent classification returned unknown label, defaulting to search",
			slog.String("label", strings.TrimSpace(resp)))
		return IntentSearch
	}
}
