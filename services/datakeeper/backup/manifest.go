// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backup

import (
	"fmt"
	"strings"
	"time"
)

const (
	manifestVersion = 1
	manifestName    = "manifest.json"

	archivePrefix = "insight_backup_"
	archiveSuffix = ".tar.gz"
	// archiveTimeLayout keeps filenames sortable and filesystem-safe.
	archiveTimeLayout = "2006-01-02T15-04-05Z"

	systemExportName = "system_store.export"
	vectorPrefix     = "vector_index/"
	analyticalPrefix = "analytical/"
)

// Manifest is written as the last entry of every archive and is the
// authority on what the archive should contain.
type Manifest struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	// Checksums maps every archived path to its hex sha256.
	Checksums map[string]string `json:"checksums"`
	// Stores records which stores contributed content, so restore can
	// distinguish "archive has no analytical payload" from corruption.
	Stores StorePresence `json:"stores"`
}

// StorePresence flags which stores are represented in an archive.
type StorePresence struct {
	System     bool `json:"system"`
	Vector     bool `json:"vector"`
	Analytical bool `json:"analytical"`
}

// ArchiveInfo is the listing row for one archive on disk.
type ArchiveInfo struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// VerifyReport is the outcome of a full archive verification pass.
type VerifyReport struct {
	Filename string        `json:"filename"`
	Valid    bool          `json:"valid"`
	Stores   StorePresence `json:"stores"`
	Entries  int           `json:"entries"`
	Problems []string      `json:"problems,omitempty"`
}

// archiveName renders the canonical filename for a backup taken at t.
func archiveName(t time.Time) string {
	return archivePrefix + t.UTC().Format(archiveTimeLayout) + archiveSuffix
}

// archiveTime recovers the creation timestamp embedded in a canonical
// filename. Non-canonical names fall back to the zero time.
func archiveTime(filename string) time.Time {
	stamp := strings.TrimSuffix(strings.TrimPrefix(filename, archivePrefix), archiveSuffix)
	t, err := time.Parse(archiveTimeLayout, stamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// validateFilename rejects anything that could escape the backup
// directory or that we did not write ourselves.
func validateFilename(filename string) error {
	if filename == "" ||
		strings.ContainsAny(filename, "/\\") ||
		strings.Contains(filename, "..") {
		return fmt.Errorf("invalid archive filename %q", filename)
	}
	if !strings.HasPrefix(filename, archivePrefix) || !strings.HasSuffix(filename, archiveSuffix) {
		return fmt.Errorf("archive filename %q does not match the expected pattern", filename)
	}
	return nil
}
