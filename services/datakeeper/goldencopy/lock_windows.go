// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build windows

package goldencopy

import (
	"os"
)

// Windows advisory locking is a no-op for now. The in-process mutex in
// Manager still serializes copies within one process.
//
// TODO: wire golang.org/x/sys/windows.LockFileEx for cross-process
// exclusion on Windows, mirroring the Unix flock path.

func flockLock(f *os.File) error { return nil }

func flockUnlock(f *os.File) error { return nil }
