// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backup creates, verifies, restores, and prunes point-in-time
// archives covering the system store, the vector index persistence
// directory, and the analytical working copy. One archive is one
// tar.gz with a checksum manifest as its final entry; archives are
// written atomically via temp-file-and-rename so a crashed backup
// never leaves a half-written archive behind.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// SystemSnapshotter is the slice of system store capability backups
// need. stores.SystemStore satisfies it.
type SystemSnapshotter interface {
	Export(w io.Writer) error
	Import(r io.Reader) error
}

// Progress receives coarse phase updates during create and restore.
type Progress func(percent int, message string)

func (p Progress) report(percent int, message string) {
	if p != nil {
		p(percent, message)
	}
}

// Config wires a Manager to its stores and its archive directory.
type Config struct {
	Dir              string
	System           SystemSnapshotter
	VectorPersistDir string
	AnalyticalPath   string
	Retention        int
	Logger           *slog.Logger
}

// Manager owns the backup directory.
//
// # Thread Safety
//
// Create and Restore serialize against each other through a
// non-blocking semaphore: a second mutating operation fails fast with
// ErrConflict instead of queueing. List, Verify, and Prune may run
// concurrently with anything.
type Manager struct {
	dir        string
	system     SystemSnapshotter
	vectorDir  string
	analytical string
	retention  int
	logger     *slog.Logger

	gate *semaphore.Weighted

	mu        sync.Mutex
	restoring string
}

// NewManager builds a Manager; it does not touch the filesystem until
// the first operation.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:        cfg.Dir,
		system:     cfg.System,
		vectorDir:  cfg.VectorPersistDir,
		analytical: cfg.AnalyticalPath,
		retention:  cfg.Retention,
		logger:     logger,
		gate:       semaphore.NewWeighted(1),
	}
}

// Create takes a full backup and returns the finished archive's info.
// After a successful backup the retention policy is applied as a
// best-effort step; a prune failure is logged, not returned. A
// non-positive retention count disables the automatic prune so a fresh
// archive is never deleted by the operation that produced it.
func (m *Manager) Create(ctx context.Context, report Progress) (*ArchiveInfo, error) {
	if !m.gate.TryAcquire(1) {
		return nil, ErrConflict
	}
	defer m.gate.Release(1)

	if err := os.MkdirAll(m.dir, 0750); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	now := time.Now()
	filename := archiveName(now)
	finalPath := filepath.Join(m.dir, filename)

	tmp, err := os.CreateTemp(m.dir, "."+filename+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)
	manifest := &Manifest{
		Version:   manifestVersion,
		CreatedAt: now.UTC(),
		Checksums: make(map[string]string),
	}

	report.report(5, "exporting system store")
	if err := m.archiveSystemStore(ctx, tw, manifest); err != nil {
		return nil, err
	}

	report.report(40, "archiving vector index")
	if err := m.archiveVectorIndex(ctx, tw, manifest); err != nil {
		return nil, err
	}

	report.report(70, "archiving analytical working copy")
	if err := m.archiveAnalytical(ctx, tw, manifest); err != nil {
		return nil, err
	}

	report.report(85, "writing manifest")
	if err := writeManifestEntry(tw, manifest); err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finalize tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("finalize gzip stream: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, fmt.Errorf("publish archive: %w", err)
	}
	cleanupTmp = false
	syncDir(m.dir)

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("stat finished archive: %w", err)
	}
	m.logger.Info("backup archive created",
		"filename", filename, "size_bytes", info.Size())

	if m.retention > 0 {
		report.report(95, "applying retention policy")
		if _, err := m.Prune(m.retention); err != nil {
			m.logger.Warn("retention prune after backup failed", "error", err)
		}
	}
	report.report(100, "backup complete")

	return &ArchiveInfo{
		Filename:  filename,
		SizeBytes: info.Size(),
		CreatedAt: now.UTC(),
	}, nil
}

// List returns the archives in the backup directory, newest first.
// A missing backup directory is an empty list, not an error.
func (m *Manager) List() ([]ArchiveInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []ArchiveInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	infos := make([]ArchiveInfo, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, archivePrefix) ||
			!strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		created := archiveTime(name)
		if created.IsZero() {
			created = fi.ModTime().UTC()
		}
		infos = append(infos, ArchiveInfo{
			Filename:  name,
			SizeBytes: fi.Size(),
			CreatedAt: created,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].Filename > infos[j].Filename
	})
	return infos, nil
}

// Restore replaces live store contents from an archive.
//
// # Description
//
// The archive is extracted to a staging directory and fully verified
// against its manifest before any store is touched; verification
// failure aborts with ErrArchiveCorrupt and leaves everything intact.
// Replacement then proceeds store by store (system, vector,
// analytical) on a best-effort basis: a failure in one store does not
// stop the others, and the combined outcome is a PartialRestoreError.
func (m *Manager) Restore(ctx context.Context, filename string, confirm bool, report Progress) error {
	if err := validateFilename(filename); err != nil {
		return err
	}
	if !confirm {
		return ErrConfirmationRequired
	}
	if !m.gate.TryAcquire(1) {
		return ErrConflict
	}
	defer m.gate.Release(1)

	m.mu.Lock()
	m.restoring = filename
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.restoring = ""
		m.mu.Unlock()
	}()

	archivePath := filepath.Join(m.dir, filename)
	if _, err := os.Stat(archivePath); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrArchiveNotFound, filename)
	} else if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	staging, err := os.MkdirTemp(m.dir, ".restore-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	report.report(10, "extracting archive to staging")
	manifest, err := extractArchive(archivePath, staging)
	if err != nil {
		return err
	}

	report.report(35, "verifying staged contents")
	if err := verifyStaged(staging, manifest); err != nil {
		return err
	}

	restored := make([]string, 0, 3)
	failed := make([]string, 0, 3)
	detail := make(map[string]error)
	apply := func(store string, present bool, fn func() error) {
		if !present {
			return
		}
		if err := fn(); err != nil {
			m.logger.Error("store restore failed", "store", store, "error", err)
			failed = append(failed, store)
			detail[store] = err
			return
		}
		m.logger.Info("store restored", "store", store, "archive", filename)
		restored = append(restored, store)
	}

	report.report(50, "replacing system store")
	apply("system", manifest.Stores.System, func() error {
		return m.restoreSystemStore(ctx, staging)
	})
	report.report(70, "replacing vector index")
	apply("vector", manifest.Stores.Vector, func() error {
		return m.restoreVectorIndex(staging)
	})
	report.report(85, "replacing analytical working copy")
	apply("analytical", manifest.Stores.Analytical, func() error {
		return m.restoreAnalytical(staging, manifest)
	})

	if len(failed) > 0 {
		return &PartialRestoreError{Restored: restored, Failed: failed, Detail: detail}
	}
	report.report(100, "restore complete")
	return nil
}

// Verify streams the archive and checks every entry against the
// manifest without extracting or touching any store.
func (m *Manager) Verify(filename string) (*VerifyReport, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	archivePath := filepath.Join(m.dir, filename)
	f, err := os.Open(archivePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return &VerifyReport{Filename: filename, Problems: []string{"not a gzip stream: " + err.Error()}}, nil
	}
	defer gz.Close()

	report := &VerifyReport{Filename: filename}
	seen := make(map[string]string)

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			report.Problems = append(report.Problems, "truncated tar stream: "+err.Error())
			return report, nil
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		report.Entries++

		hasher := sha256.New()
		if _, err := io.Copy(hasher, tr); err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("unreadable entry %s: %v", hdr.Name, err))
			return report, nil
		}
		if hdr.Name == manifestName {
			continue
		}
		seen[hdr.Name] = hex.EncodeToString(hasher.Sum(nil))
	}

	// Second pass just for the manifest, which the checksum pass
	// consumed. Archives are small enough that rereading is fine.
	manifest, err := readManifest(archivePath)
	if err != nil {
		report.Problems = append(report.Problems, err.Error())
		return report, nil
	}
	report.Stores = manifest.Stores

	for path, want := range manifest.Checksums {
		got, ok := seen[path]
		if !ok {
			report.Problems = append(report.Problems, "missing entry "+path)
			continue
		}
		if got != want {
			report.Problems = append(report.Problems, "checksum mismatch for "+path)
		}
	}
	for path := range seen {
		if _, ok := manifest.Checksums[path]; !ok {
			report.Problems = append(report.Problems, "entry not in manifest: "+path)
		}
	}

	report.Valid = len(report.Problems) == 0
	return report, nil
}

// Prune deletes all but the newest keep archives. keep zero deletes
// everything eligible; negative is an error. An archive mid-restore is
// never deleted regardless of its age.
func (m *Manager) Prune(keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("retention count must be non-negative, got %d", keep)
	}
	archives, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(archives) <= keep {
		return nil, nil
	}

	m.mu.Lock()
	protected := m.restoring
	m.mu.Unlock()

	removed := make([]string, 0, len(archives)-keep)
	for _, info := range archives[keep:] {
		if info.Filename == protected {
			m.logger.Info("skipping prune of archive in active restore", "filename", info.Filename)
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, info.Filename)); err != nil {
			return removed, fmt.Errorf("prune %s: %w", info.Filename, err)
		}
		m.logger.Info("pruned backup archive", "filename", info.Filename)
		removed = append(removed, info.Filename)
	}
	return removed, nil
}
