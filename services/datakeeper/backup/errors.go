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
	"errors"
	"fmt"
	"strings"
)

// ErrConflict means another backup or restore already holds the
// serialization gate. Callers should retry later rather than queue.
var ErrConflict = errors.New("a backup or restore operation is already in progress")

// ErrConfirmationRequired gates restore, which overwrites live stores.
var ErrConfirmationRequired = errors.New("restore requires explicit confirmation")

// ErrArchiveNotFound is returned for filenames not present in the
// backup directory.
var ErrArchiveNotFound = errors.New("backup archive not found")

// ErrArchiveCorrupt means the archive failed structural or checksum
// verification and no store was touched.
var ErrArchiveCorrupt = errors.New("backup archive failed verification")

// PartialRestoreError reports a restore that replaced some stores but
// not others. The stores listed in Failed kept their pre-restore
// contents only if the failure happened before their replacement
// started; Detail carries the per-store errors.
type PartialRestoreError struct {
	Restored []string
	Failed   []string
	Detail   map[string]error
}

func (e *PartialRestoreError) Error() string {
	return fmt.Sprintf("restore partially failed: restored [%s], failed [%s]",
		strings.Join(e.Restored, ", "), strings.Join(e.Failed, ", "))
}
