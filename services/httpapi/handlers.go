// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package httpapi exposes the service over HTTP: the Twilio inbound-SMS
// webhook, a JSON chat endpoint for the web client, phone verification,
// and health.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/usethemove/themove/services/auth"
	"github.com/usethemove/themove/services/search"
	"github.com/usethemove/themove/services/sms"
)

// Canned replies for non-search intents.
const (
	msgInfo = "I'm TheMove - text me what you're looking for on campus " +
		"(like 'free food friday' or 'live music this weekend') and I'll find it!"
	msgSignup = "You're already in! Just text me what you're looking for. " +
		"Reply VERIFY to link your number for unlimited searches."
	msgRandom = "Hey! Text me what you're looking for on campus and I'll find it. " +
		"Try 'free pizza tomorrow'!"
	msgQuota = "You've used your free searches! Reply VERIFY to link your number " +
		"and keep searching."
)

// defaultTenant is used when a request doesn't carry a campus. Single-campus
// deployments set TENANT once and never send it per request.
const defaultTenant = "unc"

// Handlers carries the HTTP endpoints' dependencies.
type Handlers struct {
	svc        *search.Service
	classifier *search.IntentClassifier
	verifier   *auth.Verifier
	verified   auth.VerifiedStore
	quota      *Quota
	tenant     string
	logger     *slog.Logger
}

// HandlersConfig configures the HTTP layer.
type HandlersConfig struct {
	Service    *search.Service
	Classifier *search.IntentClassifier
	// Verifier and Verified may be nil when the store is unavailable; the
	// verification endpoints then return 503 and the quota never unlocks.
	Verifier *auth.Verifier
	Verified auth.VerifiedStore
	Tenant   string
	Logger   *slog.Logger
}

// NewHandlers creates the endpoint set.
func NewHandlers(cfg HandlersConfig) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = defaultTenant
	}
	return &Handlers{
		svc:        cfg.Service,
		classifier: cfg.Classifier,
		verifier:   cfg.Verifier,
		verified:   cfg.Verified,
		quota:      NewQuota(),
		tenant:     tenant,
		logger:     logger,
	}
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// InboundSMS handles the Twilio webhook for an incoming text. The reply is
// a TwiML document; Twilio relays its body back to the sender.
func (h *Handlers) InboundSMS(c *gin.Context) {
	from := auth.NormalizePhone(c.PostForm("From"))
	body := c.PostForm("Body")
	requestID := uuid.NewString()

	logger := h.logger.With(
		slog.String("request_id", requestID),
		slog.String("handler", "inbound_sms"),
	)

	if body == "" || from == "" {
		logger.Warn("inbound sms missing From or Body")
		c.Data(http.StatusOK, sms.TwiMLContentType, []byte(sms.EmptyResponse()))
		return
	}

	reply := h.replyFor(c, from, body, logger)
	c.Data(http.StatusOK, sms.TwiMLContentType, []byte(sms.MessagingResponse(reply)))
}

// replyFor routes one inbound message to the right reply text.
func (h *Handlers) replyFor(c *gin.Context, from, body string, logger *slog.Logger) string {
	ctx := c.Request.Context()

	intent := h.classifier.Classify(ctx, body)
	logger.Info("inbound sms classified", slog.String("intent", string(intent)))

	switch intent {
	case search.IntentInfo:
		return msgInfo
	case search.IntentSignup:
		return msgSignup
	case search.IntentRandom:
		return msgRandom
	}

	if !h.allowSearch(c, from) {
		return msgQuota
	}
	return h.svc.Search(ctx, body, h.tenant)
}

// allowSearch enforces the free-search quota for unverified numbers.
func (h *Handlers) allowSearch(c *gin.Context, phone string) bool {
	if h.verified != nil {
		ok, err := h.verified.IsVerified(c.Request.Context(), phone)
		if err != nil {
			// Store trouble shouldn't lock users out of search.
			h.logger.Warn("verified lookup failed, allowing search", slog.String("error", err.Error()))
			return true
		}
		if ok {
			return true
		}
	}
	return h.quota.Consume(phone)
}

// chatRequest is the JSON chat endpoint's request body.
type chatRequest struct {
	Message string `json:"message" binding:"required"`
	School  string `json:"school"`
}

// Chat handles a JSON search request from the web client. Same pipeline as
// SMS, without intent routing or quota — the web surface has its own
// gating upstream.
func (h *Handlers) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	tenant := req.School
	if tenant == "" {
		tenant = h.tenant
	}

	reply := h.svc.Search(c.Request.Context(), req.Message, tenant)
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// verifyStartRequest is the body for starting phone verification.
type verifyStartRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// VerifyStart issues a verification code to the given phone.
func (h *Handlers) VerifyStart(c *gin.Context) {
	if h.verifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification unavailable"})
		return
	}
	var req verifyStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}
	if err := h.verifier.Start(c.Request.Context(), req.Phone); err != nil {
		h.logger.Error("verification start failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// verifyCheckRequest is the body for completing phone verification.
type verifyCheckRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// VerifyCheck validates a submitted code and marks the phone verified.
func (h *Handlers) VerifyCheck(c *gin.Context) {
	if h.verifier == nil || h.verified == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification unavailable"})
		return
	}
	var req verifyCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and code are required"})
		return
	}

	ok, err := h.verifier.Check(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		h.logger.Error("verification check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify"})
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
		return
	}
	if err := h.verified.MarkVerified(c.Request.Context(), req.Phone); err != nil {
		h.logger.Error("marking verified failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}
