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
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the event bursts editors and dataset loaders
// produce into a single re-ensure.
const watchDebounce = 500 * time.Millisecond

// Watch re-runs EnsureCopy whenever the protected source changes.
//
// # Description
//
// Watches the source's parent directory (watching the file directly
// misses replace-by-rename updates) and re-ensures the working copy
// after each debounced change. Blocks until ctx is cancelled. Copy
// failures are logged and watching continues; only watcher setup
// errors are returned.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create golden copy watcher: %w", err)
	}
	defer watcher.Close()

	sourceDir := filepath.Dir(m.source)
	if err := watcher.Add(sourceDir); err != nil {
		return fmt.Errorf("watch %s: %w", sourceDir, err)
	}
	m.logger.Info("watching golden copy source", "source", m.source)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.source) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("golden copy watcher error", "error", err)

		case <-timerC:
			timer = nil
			timerC = nil
			result, err := m.EnsureCopy(ctx)
			switch {
			case err != nil:
				m.logger.Error("golden copy refresh after source change failed", "error", err)
			case result.SourceMissing:
				m.logger.Warn("golden copy source disappeared")
			case result.AlreadyPresent:
				m.logger.Debug("source change produced identical size, copy kept")
			default:
				m.logger.Info("working copy refreshed after source change",
					"bytes", result.BytesCopied)
			}
		}
	}
}
