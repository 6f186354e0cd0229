// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEstimateSegments(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty", "", 0},
		{"short gsm", "Free pizza at the Union!", 1},
		{"exactly one segment", strings.Repeat("a", 160), 1},
		{"two segments", strings.Repeat("a", 161), 2},
		{"three segments", strings.Repeat("a", 307), 3},
		{"unicode forces ucs2", "Free pizza 🍕", 1},
		{"unicode long", strings.Repeat("é—", 40), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateSegments(tt.body); got != tt.want {
				t.Errorf("EstimateSegments(%d chars) = %d, want %d", len([]rune(tt.body)), got, tt.want)
			}
		})
	}
}

func TestMessagingResponseEscapesXML(t *testing.T) {
	out := MessagingResponse(`Tacos & "more" <tonight>`)
	if !strings.Contains(out, "Tacos &amp; &#34;more&#34; &lt;tonight&gt;") {
		t.Errorf("body not escaped: %q", out)
	}
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?><Response><Message>`) {
		t.Errorf("malformed envelope: %q", out)
	}
}

func TestSendPostsFormAndParsesSID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/Accounts/AC123/Messages.json") {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			t.Error("missing or wrong basic auth")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if r.PostForm.Get("To") != "+19195551234" || r.PostForm.Get("Body") == "" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewTwilioClientWithConfig("AC123", "token", "+19990001111", srv.URL, nil)
	sid, err := c.Send(context.Background(), "+19195551234", "Your code is 123456")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sid != "SM42" {
		t.Errorf("sid = %q, want SM42", sid)
	}
}

func TestSendSurfacesTwilioError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' phone number"}`))
	}))
	defer srv.Close()

	c := NewTwilioClientWithConfig("AC123", "token", "+19990001111", srv.URL, nil)
	_, err := c.Send(context.Background(), "bogus", "hi")
	if err == nil || !strings.Contains(err.Error(), "21211") {
		t.Fatalf("err = %v, want the Twilio error code", err)
	}
}
