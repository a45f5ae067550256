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
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInMemorySystem(t *testing.T) *SystemStore {
	t.Helper()
	system, err := OpenSystem(SystemConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { system.Close() })
	return system
}

func TestSystemStore(t *testing.T) {
	t.Run("put get roundtrip", func(t *testing.T) {
		system := newInMemorySystem(t)
		require.NoError(t, system.Put("a/key", []byte("value")))

		got, err := system.Get("a/key")
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), got)
	})

	t.Run("probe healthy on empty store", func(t *testing.T) {
		system := newInMemorySystem(t)
		probe := system.Probe(context.Background())
		assert.Equal(t, StateHealthy, probe.State)
	})

	t.Run("emptiness tracks writes", func(t *testing.T) {
		system := newInMemorySystem(t)
		empty, err := system.IsEmpty()
		require.NoError(t, err)
		assert.True(t, empty)

		require.NoError(t, system.Put("k", []byte("v")))
		empty, err = system.IsEmpty()
		require.NoError(t, err)
		assert.False(t, empty)
	})

	t.Run("export import replaces contents", func(t *testing.T) {
		source := newInMemorySystem(t)
		require.NoError(t, source.Put("keep", []byte("exported")))

		var buf bytes.Buffer
		require.NoError(t, source.Export(&buf))

		target := newInMemorySystem(t)
		require.NoError(t, target.Put("stale", []byte("pre-import")))
		require.NoError(t, target.Import(&buf))

		got, err := target.Get("keep")
		require.NoError(t, err)
		assert.Equal(t, []byte("exported"), got)

		_, err = target.Get("stale")
		assert.Error(t, err)
	})

	t.Run("requires a directory when persistent", func(t *testing.T) {
		_, err := OpenSystem(SystemConfig{})
		assert.Error(t, err)
	})
}

func TestAnalyticalStore(t *testing.T) {
	t.Run("disabled store probes degraded", func(t *testing.T) {
		store, err := OpenAnalytical("", false)
		require.NoError(t, err)
		defer store.Close()

		probe := store.Probe(context.Background())
		assert.Equal(t, StateDegraded, probe.State)
		assert.Nil(t, store.DB())
	})

	t.Run("missing working copy probes degraded", func(t *testing.T) {
		store, err := OpenAnalytical(t.TempDir()+"/absent.db", true)
		require.NoError(t, err)
		defer store.Close()

		probe := store.Probe(context.Background())
		assert.Equal(t, StateDegraded, probe.State)
	})
}

func TestVectorStoreLightweightMode(t *testing.T) {
	store, err := OpenVector("", "")
	require.NoError(t, err)
	assert.False(t, store.Available())

	probe := store.Probe(context.Background())
	assert.Equal(t, StateDegraded, probe.State)

	err = store.EnsureCollection(context.Background(), nil)
	assert.True(t, IsConnectivity(err))
}

// fakePong answers one RESP PING on an ephemeral port.
func fakePong(t *testing.T, reply string) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		if line, err := reader.ReadString('\n'); err == nil && strings.HasPrefix(line, "PING") {
			conn.Write([]byte(reply))
		}
	}()
	return listener.Addr().String()
}

func TestCacheStore(t *testing.T) {
	t.Run("pong answers healthy", func(t *testing.T) {
		cache := NewCache(fakePong(t, "+PONG\r\n"))
		probe := cache.Probe(context.Background())
		assert.Equal(t, StateHealthy, probe.State)
	})

	t.Run("wrong reply is unreachable", func(t *testing.T) {
		cache := NewCache(fakePong(t, "-ERR nope\r\n"))
		probe := cache.Probe(context.Background())
		assert.Equal(t, StateUnreachable, probe.State)
	})

	t.Run("no address is degraded", func(t *testing.T) {
		cache := NewCache("")
		probe := cache.Probe(context.Background())
		assert.Equal(t, StateDegraded, probe.State)
	})

	t.Run("refused connection is unreachable", func(t *testing.T) {
		cache := NewCache("127.0.0.1:1")
		probe := cache.Probe(context.Background())
		assert.Equal(t, StateUnreachable, probe.State)
	})
}

func TestProbeAll(t *testing.T) {
	system := newInMemorySystem(t)
	vector, err := OpenVector("", "")
	require.NoError(t, err)
	cache := NewCache("")

	results := ProbeAll(context.Background(), []Store{system, vector, cache}, 2*time.Second)
	require.Len(t, results, 3)
	assert.Equal(t, StateHealthy, results[KindSystem].State)
	assert.Equal(t, StateDegraded, results[KindVector].State)
	assert.Equal(t, StateDegraded, results[KindCache].State)
}
