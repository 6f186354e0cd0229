// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{Path: ""}, nil)
	if err != nil {
		t.Fatalf("Open in-memory: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := openTestDB(t)

	if err := db.SetWithTTL("k", []byte("v"), 0); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	val, ok, err := db.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(val) != "v" {
		t.Errorf("value = %q", val)
	}

	if err := db.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := db.Get("k"); ok {
		t.Error("key survived delete")
	}
}

func TestGetMissingKey(t *testing.T) {
	db := openTestDB(t)
	val, ok, err := db.Get("absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok || val != nil {
		t.Errorf("missing key reported present: ok=%v val=%q", ok, val)
	}
}

func TestTTLExpiry(t *testing.T) {
	db := openTestDB(t)
	if err := db.SetWithTTL("short", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if _, ok, _ := db.Get("short"); ok {
		t.Error("key survived its TTL")
	}
}

func TestScanPrefix(t *testing.T) {
	db := openTestDB(t)
	for _, k := range []string{"user:1", "user:2", "other:1"} {
		if err := db.SetWithTTL(k, []byte(k), 0); err != nil {
			t.Fatalf("SetWithTTL(%s): %v", k, err)
		}
	}
	vals, err := db.Scan("user:")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(vals) != 2 {
		t.Errorf("scan hits = %d, want 2", len(vals))
	}
}
