// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/usethemove/themove/services/llm"
	"github.com/usethemove/themove/services/search"
	"github.com/usethemove/themove/services/vector"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedChat replies with a fixed intent label.
type scriptedChat struct {
	reply string
}

func (s *scriptedChat) Chat(_ context.Context, _ []llm.Message, _ llm.GenerationParams) (string, error) {
	return s.reply, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1}, nil
}

type stubIndex struct {
	matches []vector.Match
}

func (s *stubIndex) Query(_ context.Context, _ []float32, _ int, _ map[string]any) ([]vector.Match, error) {
	return s.matches, nil
}

func testRouter(intent string, matches []vector.Match) *gin.Engine {
	svc := search.NewService(search.ServiceConfig{
		Embedder: stubEmbedder{},
		Index:    &stubIndex{matches: matches},
		BaseURL:  "m.co",
		Now:      func() time.Time { return time.Date(2025, 1, 6, 10, 0, 0, 0, time.Local) },
	})
	h := NewHandlers(HandlersConfig{
		Service:    svc,
		Classifier: search.NewIntentClassifier(&scriptedChat{reply: intent}, nil),
		Tenant:     "unc",
	})
	r := gin.New()
	RegisterRoutes(r, h)
	return r
}

func jazzMatch() vector.Match {
	return vector.Match{
		ID:    "e1",
		Score: 0.92,
		Metadata: map[string]string{
			"title":           "Jazz Night",
			"date_normalized": "2025-01-09",
			"record_type":     "event",
			"tenant_id":       "unc",
		},
	}
}

func postSMS(t *testing.T, r *gin.Engine, from, body string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{}
	form.Set("From", from)
	form.Set("Body", body)
	req := httptest.NewRequest(http.MethodPost, "/v1/sms/inbound", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := testRouter("search", nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestInboundSMSSearchRepliesWithTwiML(t *testing.T) {
	r := testRouter("search", []vector.Match{jazzMatch()})
	w := postSMS(t, r, "+19195551234", "live music")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Errorf("content type = %q, want text/xml", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<Response><Message>") {
		t.Errorf("not a TwiML message: %q", body)
	}
	if !strings.Contains(body, "Jazz Night") {
		t.Errorf("reply missing result: %q", body)
	}
}

func TestInboundSMSInfoIntentShortCircuits(t *testing.T) {
	r := testRouter("info", []vector.Match{jazzMatch()})
	w := postSMS(t, r, "+19195551234", "what is this?")
	if !strings.Contains(w.Body.String(), "text me what") {
		t.Errorf("info reply = %q", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "Jazz Night") {
		t.Error("info intent still ran a search")
	}
}

func TestInboundSMSQuotaExhausts(t *testing.T) {
	r := testRouter("search", []vector.Match{jazzMatch()})

	for i := 0; i < freeSearchLimit; i++ {
		w := postSMS(t, r, "+19195551234", "live music")
		if strings.Contains(w.Body.String(), "free searches") {
			t.Fatalf("quota hit early on search %d", i+1)
		}
	}
	w := postSMS(t, r, "+19195551234", "live music")
	if !strings.Contains(w.Body.String(), "free searches") {
		t.Errorf("search %d not quota-limited: %q", freeSearchLimit+1, w.Body.String())
	}

	// A different number has its own budget.
	w = postSMS(t, r, "+19995550000", "live music")
	if strings.Contains(w.Body.String(), "free searches") {
		t.Error("quota leaked across phone numbers")
	}
}

func TestChatEndpoint(t *testing.T) {
	r := testRouter("search", []vector.Match{jazzMatch()})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat",
		strings.NewReader(`{"message": "live music", "school": "unc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if !strings.Contains(resp["reply"], "Jazz Night") {
		t.Errorf("reply = %q", resp["reply"])
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	r := testRouter("search", nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestVerifyEndpointsUnavailableWithoutStore(t *testing.T) {
	r := testRouter("search", nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/verify/start",
		strings.NewReader(`{"phone": "9195551234"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when verification is unwired", w.Code)
	}
}
