// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package auth implements phone verification: short-lived numeric codes
// delivered over SMS, with attempt limiting.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/usethemove/themove/services/storage/badger"
)

const (
	codeLength  = 6
	codeTTL     = 10 * time.Minute
	maxAttempts = 5
)

// CodeRecord is one pending verification.
type CodeRecord struct {
	Code     string    `json:"code"`
	Attempts int       `json:"attempts"`
	IssuedAt time.Time `json:"issued_at"`
}

// CodeStore persists pending verifications keyed by phone number. The
// store owns expiry — a Get after the TTL reports absence.
type CodeStore interface {
	Put(ctx context.Context, phone string, rec CodeRecord) error
	Get(ctx context.Context, phone string) (CodeRecord, bool, error)
	Delete(ctx context.Context, phone string) error
}

// Sender delivers the code text. Implemented by sms.TwilioClient via
// smsSenderAdapter in the cmd wiring.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// =============================================================================
// Badger-backed store
// =============================================================================

// BadgerCodeStore stores codes in the embedded Badger store with the code
// TTL attached, so expiry needs no sweeper.
type BadgerCodeStore struct {
	db *badger.DB
}

// NewBadgerCodeStore creates a store over db.
func NewBadgerCodeStore(db *badger.DB) *BadgerCodeStore {
	return &BadgerCodeStore{db: db}
}

func codeKey(phone string) string { return "verify:" + phone }

// Put stores rec under the phone's key with the code TTL.
func (s *BadgerCodeStore) Put(_ context.Context, phone string, rec CodeRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("auth: encoding code record: %w", err)
	}
	return s.db.SetWithTTL(codeKey(phone), raw, codeTTL)
}

// Get loads the pending record for phone, reporting absence after expiry.
func (s *BadgerCodeStore) Get(_ context.Context, phone string) (CodeRecord, bool, error) {
	raw, ok, err := s.db.Get(codeKey(phone))
	if err != nil || !ok {
		return CodeRecord{}, false, err
	}
	var rec CodeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return CodeRecord{}, false, fmt.Errorf("auth: decoding code record: %w", err)
	}
	return rec, true, nil
}

// Delete removes the pending record for phone.
func (s *BadgerCodeStore) Delete(_ context.Context, phone string) error {
	return s.db.Delete(codeKey(phone))
}

// =============================================================================
// Verifier
// =============================================================================

// Verifier issues and checks verification codes.
//
// Thread Safety: Safe for concurrent use when the store is.
type Verifier struct {
	store  CodeStore
	sender Sender
	logger *slog.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(store CodeStore, sender Sender, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{store: store, sender: sender, logger: logger}
}

// Start generates a fresh code for phone, stores it, and sends it. A
// repeat Start replaces any pending code, resetting the attempt count.
func (v *Verifier) Start(ctx context.Context, phone string) error {
	phone = NormalizePhone(phone)
	if phone == "" {
		return fmt.Errorf("auth: empty phone number")
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("auth: generating code: %w", err)
	}
	rec := CodeRecord{Code: code, IssuedAt: time.Now()}
	if err := v.store.Put(ctx, phone, rec); err != nil {
		return fmt.Errorf("auth: storing code: %w", err)
	}

	body := fmt.Sprintf("Your TheMove verification code is %s. It expires in 10 minutes.", code)
	if _, err := v.sender.Send(ctx, phone, body); err != nil {
		return fmt.Errorf("auth: sending code: %w", err)
	}

	v.logger.Info("verification code issued", slog.String("phone_suffix", phoneSuffix(phone)))
	return nil
}

// Check validates a submitted code. A wrong code burns one attempt; the
// record is deleted on success and after the attempt limit.
//
// Outputs:
//   - bool: True when the code matched a live record.
//   - error: Non-nil only on store failure — a wrong or expired code is
//     (false, nil).
func (v *Verifier) Check(ctx context.Context, phone, code string) (bool, error) {
	phone = NormalizePhone(phone)
	rec, ok, err := v.store.Get(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("auth: loading code: %w", err)
	}
	if !ok {
		return false, nil
	}

	if strings.TrimSpace(code) != rec.Code {
		rec.Attempts++
		if rec.Attempts >= maxAttempts {
			if err := v.store.Delete(ctx, phone); err != nil {
				return false, fmt.Errorf("auth: clearing exhausted code: %w", err)
			}
			v.logger.Warn("verification attempts exhausted", slog.String("phone_suffix", phoneSuffix(phone)))
			return false, nil
		}
		if err := v.store.Put(ctx, phone, rec); err != nil {
			return false, fmt.Errorf("auth: recording failed attempt: %w", err)
		}
		return false, nil
	}

	if err := v.store.Delete(ctx, phone); err != nil {
		return false, fmt.Errorf("auth: clearing used code: %w", err)
	}
	v.logger.Info("phone verified", slog.String("phone_suffix", phoneSuffix(phone)))
	return true, nil
}

// generateCode returns a uniformly random 6-digit code with leading zeros
// preserved.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n), nil
}

// NormalizePhone reduces a phone number to E.164-ish form: digits only,
// with a "+1" default country code for bare 10-digit US numbers.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case d == "":
		return ""
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && d[0] == '1':
		return "+" + d
	default:
		return "+" + d
	}
}

// phoneSuffix returns the last four digits for logging. Full numbers never
// hit logs.
func phoneSuffix(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[len(phone)-4:]
}
