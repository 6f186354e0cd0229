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
	"testing"

	"github.com/usethemove/themove/services/llm"
)

// cannedChat is a scripted ChatClient.
type cannedChat struct {
	reply string
	err   error
}

func (c *cannedChat) Chat(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
	return c.reply, c.err
}

func TestResolveDate(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantOK  bool
		wantErr bool
		want    string
	}{
		{"iso date", "2025-01-20", true, false, "2025-01-20"},
		{"iso date with whitespace", "  2025-01-20\n", true, false, "2025-01-20"},
		{"none sentinel", "none", false, false, ""},
		{"uppercase none", "None", false, false, ""},
		{"chatty output is an error", "The date is January 20th, 2025.", false, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewChatDateResolver(&cannedChat{reply: tt.reply})
			d, ok, err := r.ResolveDate(context.Background(), "when is it", refMonday)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && ISODate(d) != tt.want {
				t.Errorf("date = %s, want %s", ISODate(d), tt.want)
			}
		})
	}
}

func TestResolveDateTransportError(t *testing.T) {
	r := NewChatDateResolver(&cannedChat{err: errors.New("timeout")})
	_, ok, err := r.ResolveDate(context.Background(), "q", refMonday)
	if err == nil || ok {
		t.Fatalf("ok=%v err=%v, want propagated error", ok, err)
	}
}

func TestClassifyIntents(t *testing.T) {
	tests := []struct {
		reply string
		want  Intent
	}{
		{"search", IntentSearch},
		{"info", IntentInfo},
		{"signup", IntentSignup},
		{"random", IntentRandom},
		{"  Search \n", IntentSearch},
		{"banana", IntentSearch}, // unknown label falls back
	}
	for _, tt := range tests {
		c := NewIntentClassifier(&cannedChat{reply: tt.reply}, nil)
		if got := c.Classify(context.Background(), "hi"); got != tt.want {
			t.Errorf("Classify with reply %q = %q, want %q", tt.reply, got, tt.want)
		}
	}
}

func TestClassifyErrorFallsBackToSearch(t *testing.T) {
	c := NewIntentClassifier(&cannedChat{err: errors.New("api down")}, nil)
	if got := c.Classify(context.Background(), "hi"); got != IntentSearch {
		t.Errorf("Classify = %q, want search fallback", got)
	}
}
