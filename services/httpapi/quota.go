// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package httpapi

import (
	"sync"
)

// freeSearchLimit is how many searches an unverified phone gets before
// being nudged to verify.
const freeSearchLimit = 3

// Quota counts searches per phone number, in memory. Counts reset on
// restart, which is acceptable: the quota is a nudge toward verification,
// not a billing control.
//
// Thread Safety: Safe for concurrent use.
type Quota struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewQuota creates an empty Quota.
func NewQuota() *Quota {
	return &Quota{counts: make(map[string]int)}
}

// Consume records one search for phone and reports whether it was within
// the free limit.
func (q *Quota) Consume(phone string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.counts[phone]++
	return q.counts[phone] <= freeSearchLimit
}

// Remaining returns how many free searches phone has left.
func (q *Quota) Remaining(phone string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	left := freeSearchLimit - q.counts[phone]
	if left < 0 {
		return 0
	}
	return left
}
