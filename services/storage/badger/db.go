// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badger wraps the embedded Badger key-value store behind the small
// surface the rest of the service needs: TTL'd set, get, delete.
package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Config holds store settings.
type Config struct {
	// Path is the on-disk directory. Empty selects in-memory mode, used by
	// tests and by deployments that treat the store as a pure cache.
	Path string
}

// DefaultConfig reads BADGER_PATH, defaulting to a local data directory.
func DefaultConfig() Config {
	path := os.Getenv("BADGER_PATH")
	if path == "" {
		path = "./data/badger"
	}
	return Config{Path: path}
}

// DB is a handle on the store.
//
// Thread Safety: Safe for concurrent use.
type DB struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the store at cfg.Path.
func Open(cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badger: creating data dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Badger's own logger is chatty at INFO; route nothing through it and
	// log open/close ourselves.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: opening store: %w", err)
	}

	logger.Info("badger store opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.Path == ""),
	)
	return &DB{db: db, logger: logger}, nil
}

// Close releases the store.
func (d *DB) Close() error {
	return d.db.Close()
}

// SetWithTTL stores value under key, expiring after ttl. A zero ttl stores
// without expiry.
func (d *DB) SetWithTTL(key string, value []byte, ttl time.Duration) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger: setting %q: %w", key, err)
	}
	return nil
}

// Get returns the value for key. The second return is false when the key is
// absent or expired.
func (d *DB) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger: getting %q: %w", key, err)
	}
	return out, true, nil
}

// Scan returns every value whose key starts with prefix. Intended for
// small keyspaces (the digest user list); there is no pagination.
func (d *DB) Scan(prefix string) ([][]byte, error) {
	var out [][]byte
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, val)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: scanning %q: %w", prefix, err)
	}
	return out, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (d *DB) Delete(key string) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger: deleting %q: %w", key, err)
	}
	return nil
}
