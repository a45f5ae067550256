// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bootstrap

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/config"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/goldencopy"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/stores"
)

func newTestSystem(t *testing.T) *stores.SystemStore {
	t.Helper()
	system, err := stores.OpenSystem(stores.SystemConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { system.Close() })
	return system
}

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	root := t.TempDir()
	cfg.SystemStoreDir = filepath.Join(root, "system")
	cfg.BackupDir = filepath.Join(root, "backups")
	cfg.EnableAnalyticalStore = false
	cfg.AutoTrainVectorIndex = false
	cfg.CacheAddr = ""
	return cfg
}

// silentCacheAddr serves an endpoint that accepts connections and then
// never says anything, simulating a wedged cache.
func silentCacheAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		for _, conn := range conns {
			conn.Close()
		}
		mu.Unlock()
	})
	return ln.Addr().String()
}

func TestRun(t *testing.T) {
	t.Run("clean sequence with optional stores absent", func(t *testing.T) {
		o := NewOrchestrator(Deps{
			Config: baseConfig(t),
			System: newTestSystem(t),
		})
		report := o.Run(context.Background())

		assert.False(t, report.Fatal())
		assert.False(t, report.Degraded())
		require.Len(t, report.Steps, 5)
		names := make([]string, 0, 5)
		for _, s := range report.Steps {
			names = append(names, s.Step)
			assert.Equal(t, StatusOk, s.Status, "step %s: %s", s.Step, s.Reason)
		}
		assert.Equal(t, []string{
			"check_environment", "init_system_store", "ensure_golden_copy",
			"train_vector_index", "probe_cache",
		}, names)
	})

	t.Run("missing system store is fatal and stops the sequence", func(t *testing.T) {
		o := NewOrchestrator(Deps{Config: baseConfig(t)})
		report := o.Run(context.Background())

		assert.True(t, report.Fatal())
		assert.Equal(t, "init_system_store", report.Steps[len(report.Steps)-1].Step)
		assert.Less(t, len(report.Steps), 5)
	})

	t.Run("unreachable cache degrades without stopping", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.CacheAddr = "127.0.0.1:1" // nothing listens here
		o := NewOrchestrator(Deps{
			Config: cfg,
			System: newTestSystem(t),
			Cache:  stores.NewCache(cfg.CacheAddr),
		})
		report := o.Run(context.Background())

		assert.False(t, report.Fatal())
		assert.True(t, report.Degraded())
		last := report.Steps[len(report.Steps)-1]
		assert.Equal(t, "probe_cache", last.Step)
		assert.Equal(t, StatusWarning, last.Status)
	})

	t.Run("silent cache endpoint cannot stall bring-up", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.CacheAddr = silentCacheAddr(t)
		cfg.TaskTimeout = 150 * time.Millisecond
		o := NewOrchestrator(Deps{
			Config: cfg,
			System: newTestSystem(t),
			Cache:  stores.NewCache(cfg.CacheAddr),
		})

		start := time.Now()
		report := o.Run(context.Background())

		assert.Less(t, time.Since(start), 5*time.Second)
		assert.False(t, report.Fatal())
		last := report.Steps[len(report.Steps)-1]
		assert.Equal(t, "probe_cache", last.Step)
		assert.Equal(t, StatusWarning, last.Status)
	})

	t.Run("missing golden source is a warning", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.EnableAnalyticalStore = true
		root := t.TempDir()
		golden := goldencopy.NewManager(
			filepath.Join(root, "missing-source.db"),
			filepath.Join(root, "working", "copy.db"),
			nil,
		)
		o := NewOrchestrator(Deps{
			Config: cfg,
			System: newTestSystem(t),
			Golden: golden,
		})
		report := o.Run(context.Background())

		assert.False(t, report.Fatal())
		assert.True(t, report.Degraded())
	})
}

func TestSeedDemoData(t *testing.T) {
	t.Run("empty store gets seeded once", func(t *testing.T) {
		system := newTestSystem(t)
		cfg := baseConfig(t)
		cfg.SeedDemoData = true

		o := NewOrchestrator(Deps{Config: cfg, System: system})
		report := o.Run(context.Background())
		require.False(t, report.Fatal())

		empty, err := system.IsEmpty()
		require.NoError(t, err)
		assert.False(t, empty)

		data, err := system.Get("demo/notes/welcome")
		require.NoError(t, err)
		assert.Contains(t, string(data), "seeded on first start")
	})

	t.Run("non-empty store is left alone", func(t *testing.T) {
		system := newTestSystem(t)
		require.NoError(t, system.Put("user/data", []byte("precious")))
		cfg := baseConfig(t)
		cfg.SeedDemoData = true

		o := NewOrchestrator(Deps{Config: cfg, System: system})
		report := o.Run(context.Background())
		require.False(t, report.Fatal())

		_, err := system.Get("demo/notes/welcome")
		assert.Error(t, err)
	})

	t.Run("seeding disabled", func(t *testing.T) {
		system := newTestSystem(t)
		cfg := baseConfig(t)
		cfg.SeedDemoData = false

		o := NewOrchestrator(Deps{Config: cfg, System: system})
		report := o.Run(context.Background())
		require.False(t, report.Fatal())

		empty, err := system.IsEmpty()
		require.NoError(t, err)
		assert.True(t, empty)
	})
}
