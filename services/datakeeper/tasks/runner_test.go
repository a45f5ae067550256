// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	r := NewRunner(cfg)
	t.Cleanup(r.Close)
	return r
}

// waitTerminal polls until the record reaches a terminal status.
func waitTerminal(t *testing.T, r *Runner, id string) TaskRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := r.Get(id)
		require.NoError(t, err)
		if rec.Status.Terminal() {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task never reached a terminal status")
	return TaskRecord{}
}

func TestSubmit(t *testing.T) {
	t.Run("completed task carries result and full progress", func(t *testing.T) {
		r := newTestRunner(t, Config{})
		id, err := r.Submit("backup_create", func(_ context.Context, report *Reporter) error {
			report.SetStatus(StatusRunning, "archiving")
			report.SetProgress(40)
			report.SetResult(map[string]string{"filename": "insight_backup_x.tar.gz"})
			return nil
		})
		require.NoError(t, err)

		rec := waitTerminal(t, r, id)
		assert.Equal(t, StatusCompleted, rec.Status)
		assert.Equal(t, 100, rec.Progress)
		assert.Equal(t, "backup_create", rec.Kind)
		assert.NotNil(t, rec.Result)
		assert.NotNil(t, rec.StartedAt)
		assert.NotNil(t, rec.FinishedAt)
	})

	t.Run("outcome hook fires once per terminal transition", func(t *testing.T) {
		type outcome struct {
			kind   string
			status Status
		}
		var mu sync.Mutex
		var outcomes []outcome
		r := newTestRunner(t, Config{
			Workers: 1,
			OnOutcome: func(kind string, status Status) {
				mu.Lock()
				outcomes = append(outcomes, outcome{kind: kind, status: status})
				mu.Unlock()
			},
		})

		okID, err := r.Submit("backup_create", func(context.Context, *Reporter) error {
			return nil
		})
		require.NoError(t, err)
		failID, err := r.Submit("vector_training", func(context.Context, *Reporter) error {
			return errors.New("vector index unavailable")
		})
		require.NoError(t, err)

		waitTerminal(t, r, okID)
		waitTerminal(t, r, failID)

		// The hook fires just after the record turns terminal.
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(outcomes) == 2
		}, 5*time.Second, 5*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, outcome{kind: "backup_create", status: StatusCompleted}, outcomes[0])
		assert.Equal(t, outcome{kind: "vector_training", status: StatusFailed}, outcomes[1])
	})

	t.Run("failed task records the error", func(t *testing.T) {
		r := newTestRunner(t, Config{})
		id, err := r.Submit("restore", func(context.Context, *Reporter) error {
			return errors.New("archive checksum mismatch")
		})
		require.NoError(t, err)

		rec := waitTerminal(t, r, id)
		assert.Equal(t, StatusFailed, rec.Status)
		assert.Contains(t, rec.Error, "checksum mismatch")
	})

	t.Run("full queue fails fast", func(t *testing.T) {
		r := newTestRunner(t, Config{Workers: 1, QueueSize: 1})
		release := make(chan struct{})
		block := func(context.Context, *Reporter) error {
			<-release
			return nil
		}

		// One running, one queued; the third has nowhere to go.
		first, err := r.Submit("blocker", block)
		require.NoError(t, err)
		// Wait until the worker picks up the first so the queue slot frees.
		require.Eventually(t, func() bool {
			rec, err := r.Get(first)
			return err == nil && rec.Status == StatusRunning
		}, time.Second, time.Millisecond)

		_, err = r.Submit("queued", block)
		require.NoError(t, err)
		_, err = r.Submit("overflow", block)
		assert.ErrorIs(t, err, ErrQueueFull)

		close(release)
	})
}

func TestGet(t *testing.T) {
	r := newTestRunner(t, Config{})
	_, err := r.Get("no-such-id")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestReporter(t *testing.T) {
	t.Run("progress never moves backwards", func(t *testing.T) {
		r := newTestRunner(t, Config{})
		id, err := r.Submit("train", func(_ context.Context, report *Reporter) error {
			report.SetProgress(80)
			report.SetProgress(30)
			report.SetProgress(200)
			return nil
		})
		require.NoError(t, err)

		rec := waitTerminal(t, r, id)
		assert.Equal(t, 100, rec.Progress)
	})

	t.Run("terminal statuses belong to the runner", func(t *testing.T) {
		r := newTestRunner(t, Config{})
		id, err := r.Submit("train", func(_ context.Context, report *Reporter) error {
			report.SetStatus(StatusCompleted, "lying about being done")
			return errors.New("actually failed")
		})
		require.NoError(t, err)

		rec := waitTerminal(t, r, id)
		assert.Equal(t, StatusFailed, rec.Status)
	})
}

func TestJanitor(t *testing.T) {
	r := newTestRunner(t, Config{Retention: 20 * time.Millisecond})
	id, err := r.Submit("ephemeral", func(context.Context, *Reporter) error { return nil })
	require.NoError(t, err)
	waitTerminal(t, r, id)

	assert.Eventually(t, func() bool {
		_, err := r.Get(id)
		return errors.Is(err, ErrTaskNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTimeout(t *testing.T) {
	r := newTestRunner(t, Config{Timeout: 20 * time.Millisecond})
	id, err := r.Submit("slow", func(ctx context.Context, _ *Reporter) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	rec := waitTerminal(t, r, id)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "context deadline exceeded")
}
