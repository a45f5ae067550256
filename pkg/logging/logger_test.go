// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "error", LevelError.String())
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelDebug,
		LogDir:  dir,
		Service: "datakeeper",
		Quiet:   true,
	})

	logger.Info("backup archive created", "filename", "insight_backup_x.tar.gz")
	logger.Debug("store probe", "kind", "system")
	require.NoError(t, logger.Close())

	expected := filepath.Join(dir,
		"datakeeper_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(expected)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "backup archive created", entry["msg"])
	assert.Equal(t, "insight_backup_x.tar.gz", entry["filename"])
	assert.Equal(t, "datakeeper", entry["service"])
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "datakeeper",
		Quiet:   true,
	})

	logger.Info("should not appear")
	logger.Warn("should appear")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir,
		"datakeeper_"+time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should not appear")
	assert.Contains(t, string(data), "should appear")
}

func TestWithPreservesAttrs(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "datakeeper",
		Quiet:   true,
	})
	child := logger.With("task_id", "abc-123")
	child.Info("task started")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir,
		"datakeeper_"+time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "abc-123")
}
