// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package goldencopy

import (
	"errors"
	"fmt"
)

// ErrLocked means another process holds the destination lock. Callers
// should treat this as "someone else is copying right now" and retry
// later rather than force through.
var ErrLocked = errors.New("golden copy destination is locked by another process")

// CopyIntegrityError means source and destination sizes still differ
// after a completed copy. Fatal to the operation; the destination is
// left in place for inspection.
type CopyIntegrityError struct {
	SourceSize int64
	DestSize   int64
}

func (e *CopyIntegrityError) Error() string {
	return fmt.Sprintf("golden copy integrity check failed: source %d bytes, destination %d bytes",
		e.SourceSize, e.DestSize)
}

// IsIntegrity reports whether err is (or wraps) a CopyIntegrityError.
func IsIntegrity(err error) bool {
	var ie *CopyIntegrityError
	return errors.As(err, &ie)
}
