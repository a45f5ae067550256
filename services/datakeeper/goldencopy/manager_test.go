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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, content string) (source, dest string) {
	t.Helper()
	root := t.TempDir()
	source = filepath.Join(root, "protected", "dataset.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(source), 0750))
	require.NoError(t, os.WriteFile(source, []byte(content), 0440))
	dest = filepath.Join(root, "working", "dataset.db")
	return source, dest
}

func TestEnsureCopy(t *testing.T) {
	t.Run("first copy materializes the working copy", func(t *testing.T) {
		source, dest := writeSource(t, "golden-content")
		m := NewManager(source, dest, nil)

		result, err := m.EnsureCopy(context.Background())
		require.NoError(t, err)
		assert.False(t, result.AlreadyPresent)
		assert.False(t, result.SourceMissing)
		assert.Equal(t, int64(len("golden-content")), result.BytesCopied)

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "golden-content", string(data))
	})

	t.Run("second call is idempotent", func(t *testing.T) {
		source, dest := writeSource(t, "golden-content")
		m := NewManager(source, dest, nil)

		_, err := m.EnsureCopy(context.Background())
		require.NoError(t, err)

		result, err := m.EnsureCopy(context.Background())
		require.NoError(t, err)
		assert.True(t, result.AlreadyPresent)
		assert.Zero(t, result.BytesCopied)
	})

	t.Run("source never modified", func(t *testing.T) {
		source, dest := writeSource(t, "golden-content")
		before, err := os.Stat(source)
		require.NoError(t, err)

		m := NewManager(source, dest, nil)
		_, err = m.EnsureCopy(context.Background())
		require.NoError(t, err)

		after, err := os.Stat(source)
		require.NoError(t, err)
		assert.Equal(t, before.Size(), after.Size())
		assert.Equal(t, before.ModTime(), after.ModTime())
	})

	t.Run("missing source reports without creating anything", func(t *testing.T) {
		root := t.TempDir()
		source := filepath.Join(root, "absent.db")
		dest := filepath.Join(root, "working", "copy.db")
		m := NewManager(source, dest, nil)

		result, err := m.EnsureCopy(context.Background())
		require.NoError(t, err)
		assert.True(t, result.SourceMissing)

		_, statErr := os.Stat(dest)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("changed source refreshes the copy", func(t *testing.T) {
		source, dest := writeSource(t, "version-one")
		m := NewManager(source, dest, nil)
		_, err := m.EnsureCopy(context.Background())
		require.NoError(t, err)

		require.NoError(t, os.Chmod(source, 0640))
		require.NoError(t, os.WriteFile(source, []byte("version-two-longer"), 0640))

		result, err := m.EnsureCopy(context.Background())
		require.NoError(t, err)
		assert.False(t, result.AlreadyPresent)

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "version-two-longer", string(data))
	})
}

func TestStats(t *testing.T) {
	source, dest := writeSource(t, "abc")
	m := NewManager(source, dest, nil)

	_, err := m.EnsureCopy(context.Background())
	require.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, int64(3), stats.SourceSize)
	assert.Equal(t, int64(3), stats.DestSize)
	assert.False(t, stats.LastCheckedAt.IsZero())
}
