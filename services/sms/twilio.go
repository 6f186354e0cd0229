// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// twilioMessageResp is the subset of the Messages API response we read.
type twilioMessageResp struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	// Error payloads use these fields instead.
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TwilioClient sends outbound SMS through the Twilio Messages API.
//
// # Description
//
// Inbound messages arrive via webhook and are answered with TwiML, so this
// client only carries the outbound path: verification codes and daily
// digests. Raw net/http with form encoding and basic auth — the one
// endpoint we use doesn't justify the official SDK.
//
// # Thread Safety
//
// Safe for concurrent use.
type TwilioClient struct {
	httpClient *http.Client
	accountSID string
	authToken  string
	from       string
	baseURL    string
	logger     *slog.Logger
}

// NewTwilioClient creates a client from environment variables.
//
// Reads TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and TWILIO_FROM_NUMBER.
//
// # Outputs
//
//   - *TwilioClient: The configured client.
//   - error: Non-nil if any credential is missing.
func NewTwilioClient(logger *slog.Logger) (*TwilioClient, error) {
	sid := os.Getenv("TWILIO_ACCOUNT_SID")
	token := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_FROM_NUMBER")
	if sid == "" || token == "" || from == "" {
		return nil, fmt.Errorf("twilio: missing credentials (TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER)")
	}
	return NewTwilioClientWithConfig(sid, token, from, defaultTwilioBaseURL, logger), nil
}

// NewTwilioClientWithConfig creates a client with explicit configuration.
// Useful for tests with an httptest server standing in for the API.
func NewTwilioClientWithConfig(accountSID, authToken, from, baseURL string, logger *slog.Logger) *TwilioClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Send delivers one SMS and returns the Twilio message SID.
//
// # Inputs
//
//   - to: Destination number in E.164 form ("+19195551234").
//   - body: Message text.
//
// # Outputs
//
//   - string: The message SID on success.
//   - error: Non-nil on transport failure or a Twilio error response.
func (c *TwilioClient) Send(ctx context.Context, to, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("twilio: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio: HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("twilio: reading response: %w", err)
	}

	var parsed twilioMessageResp
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("twilio: parsing response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("twilio: send failed (status %d, code %d): %s",
			resp.StatusCode, parsed.Code, parsed.Message)
	}
	if parsed.ErrorCode != nil {
		return "", fmt.Errorf("twilio: message rejected (code %d): %s",
			*parsed.ErrorCode, parsed.ErrorMessage)
	}

	c.logger.Debug("sms sent",
		slog.String("sid", parsed.SID),
		slog.String("status", parsed.Status),
		slog.Int("segments", EstimateSegments(body)),
	)

	return parsed.SID, nil
}
