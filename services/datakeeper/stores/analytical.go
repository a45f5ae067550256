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
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// AnalyticalStore is the external dataset being analyzed: a SQLite
// working copy opened strictly read-only. The golden copy manager owns
// writing the file; this store never mutates it.
type AnalyticalStore struct {
	path    string
	enabled bool
	db      *sql.DB
}

// OpenAnalytical opens the analytical working copy read-only.
//
// # Description
//
// The store tolerates being disabled or pointed at a missing file:
// both cases produce a usable AnalyticalStore whose Probe reports
// degraded and whose DB() returns nil. Callers (schema extraction)
// treat that as "no schema available" rather than an error.
func OpenAnalytical(path string, enabled bool) (*AnalyticalStore, error) {
	store := &AnalyticalStore{path: path, enabled: enabled}
	if !enabled || path == "" {
		return store, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("stat analytical working copy %s: %w", path, err)
	}

	// mode=ro refuses writes at the driver level; query_only is a second
	// guard inside SQLite itself.
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=query_only(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open analytical store %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	store.db = db
	return store, nil
}

// Kind implements Store.
func (s *AnalyticalStore) Kind() Kind { return KindAnalytical }

// Probe runs SELECT 1 against the working copy. A disabled or absent
// store reports degraded with an explanatory message, never unreachable.
func (s *AnalyticalStore) Probe(ctx context.Context) ProbeResult {
	if !s.enabled {
		return ProbeResult{State: StateDegraded, Message: "analytical store disabled"}
	}
	if s.db == nil {
		return ProbeResult{State: StateDegraded, Message: "analytical working copy not present"}
	}
	return probeTimer(KindAnalytical, func() error {
		var one int
		return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	})
}

// Close releases the read-only connection if one was opened.
func (s *AnalyticalStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the read-only handle, or nil when the store is disabled or
// the working copy is not present.
func (s *AnalyticalStore) DB() *sql.DB { return s.db }

// Path returns the working copy location.
func (s *AnalyticalStore) Path() string { return s.path }

// Enabled reports whether the analytical feature flag is on.
func (s *AnalyticalStore) Enabled() bool { return s.enabled }
