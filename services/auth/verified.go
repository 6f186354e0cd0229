// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package auth

import (
	"context"

	"github.com/usethemove/themove/services/storage/badger"
)

// VerifiedStore records which phone numbers have completed verification.
// Verification is durable — no TTL.
type VerifiedStore interface {
	MarkVerified(ctx context.Context, phone string) error
	IsVerified(ctx context.Context, phone string) (bool, error)
}

// BadgerVerifiedStore keeps the verified set in the embedded store.
type BadgerVerifiedStore struct {
	db *badger.DB
}

// NewBadgerVerifiedStore creates a store over db.
func NewBadgerVerifiedStore(db *badger.DB) *BadgerVerifiedStore {
	return &BadgerVerifiedStore{db: db}
}

func verifiedKey(phone string) string { return "verified:" + phone }

// MarkVerified records phone as verified.
func (s *BadgerVerifiedStore) MarkVerified(_ context.Context, phone string) error {
	return s.db.SetWithTTL(verifiedKey(NormalizePhone(phone)), []byte("1"), 0)
}

// IsVerified reports whether phone completed verification.
func (s *BadgerVerifiedStore) IsVerified(_ context.Context, phone string) (bool, error) {
	_, ok, err := s.db.Get(verifiedKey(NormalizePhone(phone)))
	return ok, err
}
