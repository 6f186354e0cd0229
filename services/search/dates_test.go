// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"testing"
	"time"
)

func TestISODateRoundTrip(t *testing.T) {
	d, err := ParseISODate("2025-01-07")
	if err != nil {
		t.Fatalf("ParseISODate: %v", err)
	}
	if got := ISODate(d); got != "2025-01-07" {
		t.Errorf("round trip = %q", got)
	}
}

func TestParseISODateRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "tomorrow", "01/07/2025", "2025-1-7"} {
		if _, err := ParseISODate(in); err == nil {
			t.Errorf("ParseISODate(%q) accepted invalid input", in)
		}
	}
}

func TestDateOnlyStripsClock(t *testing.T) {
	in := time.Date(2025, 1, 7, 23, 59, 58, 123, time.Local)
	got := DateOnly(in)
	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 || got.Nanosecond() != 0 {
		t.Errorf("DateOnly = %v, want midnight", got)
	}
	if got.Year() != 2025 || got.Month() != time.January || got.Day() != 7 {
		t.Errorf("DateOnly changed the date: %v", got)
	}
}

func TestDaysBetween(t *testing.T) {
	a := DateOnly(time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local))
	tests := []struct {
		b    time.Time
		want int
	}{
		{a, 0},
		{a.AddDate(0, 0, 1), 1},
		{a.AddDate(0, 0, 7), 7},
		{a.AddDate(0, 0, -2), -2},
	}
	for _, tt := range tests {
		if got := daysBetween(a, tt.b); got != tt.want {
			t.Errorf("daysBetween(+%v) = %d, want %d", tt.b.Sub(a), got, tt.want)
		}
	}
}

func TestDaysBetweenAcrossDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// US spring forward 2025-03-09: that Sunday is only 23 wall-clock
	// hours long, so an hours/24 division would round the day away.
	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{
			"spring forward",
			time.Date(2025, 3, 8, 0, 0, 0, 0, loc),
			time.Date(2025, 3, 9, 0, 0, 0, 0, loc),
			1,
		},
		{
			"fall back",
			time.Date(2025, 11, 1, 0, 0, 0, 0, loc),
			time.Date(2025, 11, 2, 0, 0, 0, 0, loc),
			1,
		},
		{
			"week spanning spring forward",
			time.Date(2025, 3, 6, 0, 0, 0, 0, loc),
			time.Date(2025, 3, 13, 0, 0, 0, 0, loc),
			7,
		},
	}
	for _, tt := range tests {
		if got := daysBetween(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: daysBetween = %d, want %d", tt.name, got, tt.want)
		}
	}
}
