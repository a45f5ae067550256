// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stores

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// SystemStore is the read-write application/audit state store, backed by
// an embedded BadgerDB. Badger's Backup/Load streams double as the
// portable export format used by backup archives.
//
// # Thread Safety
//
// The embedded *badger.DB is safe for concurrent use; SystemStore adds
// no mutable state of its own.
type SystemStore struct {
	db  *badger.DB
	dir string
}

// SystemConfig holds the knobs we actually use for the system store.
type SystemConfig struct {
	// Dir is the BadgerDB directory. Required unless InMemory.
	Dir string

	// InMemory runs without disk persistence. Testing only.
	InMemory bool

	// Logger receives Badger's internal logging. Nil disables it.
	Logger *slog.Logger
}

// OpenSystem opens (creating if needed) the system store.
func OpenSystem(cfg SystemConfig) (*SystemStore, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("system store: dir is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create system store directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerSlogAdapter{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open system store: %w", err)
	}
	return &SystemStore{db: db, dir: cfg.Dir}, nil
}

// Kind implements Store.
func (s *SystemStore) Kind() Kind { return KindSystem }

// Probe performs a trivial read transaction. A missing probe key is
// still a successful round-trip.
func (s *SystemStore) Probe(ctx context.Context) ProbeResult {
	return probeTimer(KindSystem, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.db.View(func(txn *badger.Txn) error {
			_, err := txn.Get([]byte("datakeeper/probe"))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		})
	})
}

// Close releases the underlying database.
func (s *SystemStore) Close() error { return s.db.Close() }

// DB exposes the embedded BadgerDB for components that need direct
// transactions (seeding, audit records).
func (s *SystemStore) DB() *badger.DB { return s.db }

// Put stores a key-value pair in one transaction.
func (s *SystemStore) Put(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Get returns the value for key, or badger.ErrKeyNotFound.
func (s *SystemStore) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, err
}

// IsEmpty reports whether the store holds no keys at all.
func (s *SystemStore) IsEmpty() (bool, error) {
	empty := true
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Rewind()
		empty = !it.Valid()
		return nil
	})
	return empty, err
}

// Export writes the full store as a Badger backup stream. The stream is
// the portable export embedded in backup archives.
func (s *SystemStore) Export(w io.Writer) error {
	_, err := s.db.Backup(w, 0)
	return err
}

// Import drops all current data and loads a Badger backup stream,
// replacing the store's contents with the archived state.
func (s *SystemStore) Import(r io.Reader) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("drop system store before import: %w", err)
	}
	if err := s.db.Load(r, 16); err != nil {
		return fmt.Errorf("load system store export: %w", err)
	}
	return nil
}

// badgerSlogAdapter adapts slog.Logger to Badger's Logger interface.
type badgerSlogAdapter struct {
	logger *slog.Logger
}

func (l *badgerSlogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerSlogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerSlogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerSlogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
