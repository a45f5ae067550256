// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package goldencopy protects the authoritative analytical dataset.
//
// The source file is the golden copy: this package never opens it for
// writing. The destination is the working copy the application actually
// uses. EnsureCopy is idempotent: the predicate "destination exists and
// matches the source's current size" decides whether any bytes move at
// all, so re-running initialization performs at most one real copy.
//
// Copies are serialized two ways: an in-process mutex, and an advisory
// flock on a lock file beside the destination so two datakeeper
// processes cannot tear the working copy between them.
package goldencopy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CopyResult describes one EnsureCopy outcome.
type CopyResult struct {
	// AlreadyPresent is true when the idempotency predicate held and no
	// bytes were copied.
	AlreadyPresent bool `json:"already_present"`

	// SourceMissing is true when the protected source does not exist.
	// Not an error: demo deployments run without an analytical dataset.
	SourceMissing bool `json:"source_missing"`

	// BytesCopied is the number of bytes written, zero for no-ops.
	BytesCopied int64 `json:"bytes_copied"`

	SourceSize int64 `json:"source_size"`
	DestSize   int64 `json:"dest_size"`
}

// Stats is the observability snapshot for the golden copy pair.
type Stats struct {
	SourceSize    int64     `json:"source_size"`
	DestSize      int64     `json:"dest_size"`
	LastCheckedAt time.Time `json:"last_checked_at"`
}

// Manager owns exactly one source/destination pair. The source path is
// never opened for writing; only the destination is.
type Manager struct {
	source string
	dest   string
	logger *slog.Logger

	mu        sync.Mutex
	lastStats Stats
}

// NewManager creates a manager for one protected source and its working
// copy destination. A nil logger falls back to slog.Default().
func NewManager(source, dest string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{source: source, dest: dest, logger: logger}
}

// EnsureCopy makes sure the working copy matches the protected source.
//
// # Description
//
// If the destination is absent or its size differs from the source's
// current size, the source is copied in full (temp file + rename) and
// both sizes are re-read to confirm equality. If the sizes already
// match, the call returns immediately with AlreadyPresent set; calling
// EnsureCopy any number of times with an unchanged source performs at
// most one actual byte-copy.
//
// # Outputs
//
//   - CopyResult: SourceMissing set (nil error) if the source does not
//     exist; nothing is created at the destination in that case.
//   - error: ErrLocked if another process holds the destination lock;
//     *CopyIntegrityError if sizes still differ after a copy; otherwise
//     I/O errors verbatim.
func (m *Manager) EnsureCopy(ctx context.Context) (CopyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	srcInfo, err := os.Stat(m.source)
	if os.IsNotExist(err) {
		m.logger.Warn("golden copy source missing", "source", m.source)
		return CopyResult{SourceMissing: true}, nil
	}
	if err != nil {
		return CopyResult{}, fmt.Errorf("stat golden copy source %s: %w", m.source, err)
	}

	if err := os.MkdirAll(filepath.Dir(m.dest), 0750); err != nil {
		return CopyResult{}, fmt.Errorf("create working copy directory: %w", err)
	}

	unlock, err := m.acquireLock()
	if err != nil {
		return CopyResult{}, err
	}
	defer unlock()

	destInfo, err := os.Stat(m.dest)
	if err == nil && destInfo.Size() == srcInfo.Size() {
		m.recordStats(srcInfo.Size(), destInfo.Size())
		m.logger.Debug("working copy already in place",
			"dest", m.dest, "size", destInfo.Size())
		return CopyResult{
			AlreadyPresent: true,
			SourceSize:     srcInfo.Size(),
			DestSize:       destInfo.Size(),
		}, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return CopyResult{}, fmt.Errorf("stat working copy %s: %w", m.dest, err)
	}

	written, err := m.copyFile(ctx)
	if err != nil {
		return CopyResult{}, err
	}

	// Re-read both sides; a mismatch here means the copy is unusable.
	srcInfo, err = os.Stat(m.source)
	if err != nil {
		return CopyResult{}, fmt.Errorf("re-stat source after copy: %w", err)
	}
	destInfo, err = os.Stat(m.dest)
	if err != nil {
		return CopyResult{}, fmt.Errorf("re-stat working copy after copy: %w", err)
	}
	if srcInfo.Size() != destInfo.Size() {
		return CopyResult{}, &CopyIntegrityError{
			SourceSize: srcInfo.Size(),
			DestSize:   destInfo.Size(),
		}
	}

	m.recordStats(srcInfo.Size(), destInfo.Size())
	m.logger.Info("golden copy refreshed",
		"source", m.source, "dest", m.dest, "bytes", written)
	return CopyResult{
		BytesCopied: written,
		SourceSize:  srcInfo.Size(),
		DestSize:    destInfo.Size(),
	}, nil
}

// Stats returns the last verified size pair and when it was checked.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastStats
}

// Source returns the protected source path.
func (m *Manager) Source() string { return m.source }

// Dest returns the working copy path.
func (m *Manager) Dest() string { return m.dest }

func (m *Manager) recordStats(srcSize, destSize int64) {
	m.lastStats = Stats{
		SourceSize:    srcSize,
		DestSize:      destSize,
		LastCheckedAt: time.Now(),
	}
}

// acquireLock takes the cross-process advisory lock beside the
// destination. The returned func releases it.
func (m *Manager) acquireLock() (func(), error) {
	lockPath := m.dest + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0640)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}
	if err := flockLock(f); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		if err := flockUnlock(f); err != nil {
			m.logger.Warn("failed to release golden copy lock", "error", err)
		}
		f.Close()
	}, nil
}

// copyFile streams source to a temp file next to the destination, syncs
// it, and renames it into place so readers never observe a torn copy.
func (m *Manager) copyFile(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	src, err := os.Open(m.source)
	if err != nil {
		return 0, fmt.Errorf("open golden copy source: %w", err)
	}
	defer src.Close()

	tmpPath := m.dest + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0640)
	if err != nil {
		return 0, fmt.Errorf("create temp working copy: %w", err)
	}

	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, src)
	if err != nil {
		return 0, fmt.Errorf("copy golden dataset: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync working copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close working copy: %w", err)
	}
	if err := os.Rename(tmpPath, m.dest); err != nil {
		return 0, fmt.Errorf("move working copy into place: %w", err)
	}
	cleanupTmp = false
	return written, nil
}
