// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"fmt"
	"time"
)

// Calendar-date helpers. The pipeline reasons about dates as local-midnight
// time.Time values and compares index metadata (YYYY-MM-DD strings) either
// lexically or after parsing with ParseISODate. Wall-clock components other
// than the date are always stripped first; mixing a dated midnight with a
// timestamped value is the classic off-by-one here.

// DateOnly strips the clock from t, returning the same calendar date at
// local midnight.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ISODate renders t as YYYY-MM-DD without any timezone conversion.
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseISODate parses a YYYY-MM-DD string into a local-midnight date.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// daysBetween returns the calendar days from a to b (negative when b is
// earlier). The dates are re-anchored in UTC before subtracting so a DST
// transition's 23- or 25-hour day still counts as one day.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
