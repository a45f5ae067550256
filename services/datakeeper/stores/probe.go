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
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProbeAll probes every store concurrently, bounding each probe with
// timeout. The returned map always has one entry per store; a probe
// that blows its deadline surfaces as unreachable rather than hanging
// the whole sweep.
func ProbeAll(ctx context.Context, list []Store, timeout time.Duration) map[Kind]ProbeResult {
	results := make(map[Kind]ProbeResult, len(list))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, store := range list {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			result := store.Probe(probeCtx)

			mu.Lock()
			results[store.Kind()] = result
			mu.Unlock()
			return nil
		})
	}
	// Probe goroutines never return errors; Wait is for completion only.
	_ = g.Wait()
	return results
}
