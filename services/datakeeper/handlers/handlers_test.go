// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/backup"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/observability"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/schema"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/stores"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/tasks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeIndex is a handler-level stand-in for the Weaviate-backed store.
type fakeIndex struct {
	collections map[string]*models.Class
	counts      map[string]int
	listErr     error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		collections: map[string]*models.Class{
			"TableSchema": {Class: "TableSchema", Vectorizer: "none"},
		},
		counts: map[string]int{"TableSchema": 3},
	}
}

func (f *fakeIndex) EnsureCollection(_ context.Context, class *models.Class) error {
	f.collections[class.Class] = class
	return nil
}

func (f *fakeIndex) Upsert(context.Context, string, string, map[string]interface{}) error {
	return nil
}

func (f *fakeIndex) Count(_ context.Context, collection string) (int, error) {
	return f.counts[collection], nil
}

func (f *fakeIndex) ListCollections(context.Context) ([]*models.Class, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Class, 0, len(f.collections))
	for _, c := range f.collections {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeIndex) DeleteCollection(_ context.Context, name string) error {
	delete(f.collections, name)
	return nil
}

type fixture struct {
	router  *gin.Engine
	runner  *tasks.Runner
	backups *backup.Manager
	index   *fakeIndex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	system, err := stores.OpenSystem(stores.SystemConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { system.Close() })
	require.NoError(t, system.Put("record/1", []byte("payload")))

	backups := backup.NewManager(backup.Config{
		Dir:       filepath.Join(root, "backups"),
		System:    system,
		Retention: 5,
	})
	runner := tasks.NewRunner(tasks.Config{})
	t.Cleanup(runner.Close)

	index := newFakeIndex()
	pipeline := schema.NewPipeline(index, nil)
	metrics := newTestMetrics()

	router := gin.New()
	router.POST("/v1/backups", CreateBackup(backups, runner, metrics))
	router.GET("/v1/backups", ListBackups(backups))
	router.POST("/v1/backups/restore", RestoreBackup(backups, runner, metrics))
	router.POST("/v1/backups/prune", PruneBackups(backups, 5, metrics))
	router.GET("/v1/backups/:filename/verify", VerifyBackup(backups, metrics))
	router.POST("/v1/training", StartTraining(pipeline, func() (*sql.DB, func(), error) {
		return nil, nil, nil
	}, runner, metrics))
	router.GET("/v1/tasks/:taskId", GetTask(runner))
	router.GET("/v1/collections", ListCollections(pipeline))
	router.DELETE("/v1/collections/:name", DeleteCollection(pipeline))

	return &fixture{router: router, runner: runner, backups: backups, index: index}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// waitTask polls the runner until the given task finishes.
func (f *fixture) waitTask(t *testing.T, taskID string) tasks.TaskRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := f.runner.Get(taskID)
		require.NoError(t, err)
		if rec.Status.Terminal() {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not finish")
	return tasks.TaskRecord{}
}

func TestCreateBackupEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/backups", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var queued datatypes.QueuedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queued))
	assert.Equal(t, "queued", queued.Status)
	assert.Equal(t, "/v1/tasks/"+queued.TaskID, queued.StatusURL)

	record := f.waitTask(t, queued.TaskID)
	assert.Equal(t, tasks.StatusCompleted, record.Status)

	list := f.do(t, http.MethodGet, "/v1/backups", "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "insight_backup_")
}

func TestRestoreEndpoint(t *testing.T) {
	t.Run("without confirmation", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/v1/backups/restore",
			`{"filename":"insight_backup_x.tar.gz"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "confirmation")
	})

	t.Run("without filename", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/v1/backups/restore", `{"confirm":true}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown archive fails the task", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/v1/backups/restore",
			`{"filename":"insight_backup_2026-01-01T00-00-00Z.tar.gz","confirm":true}`)
		require.Equal(t, http.StatusAccepted, rec.Code)

		var queued datatypes.QueuedResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queued))
		record := f.waitTask(t, queued.TaskID)
		assert.Equal(t, tasks.StatusFailed, record.Status)
		assert.Contains(t, record.Error, "not found")
	})
}

func TestPruneEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/backups/prune", `{"retention":-2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/backups/prune", `{"retention":0}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/backups/insight_backup_2026-01-01T00-00-00Z.tar.gz/verify", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/tasks/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrainingEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/training", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var queued datatypes.QueuedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queued))
	record := f.waitTask(t, queued.TaskID)

	// Nil analytical DB means an empty, successful training run.
	assert.Equal(t, tasks.StatusCompleted, record.Status)
}

func TestCollectionsEndpoints(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodGet, "/v1/collections", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "TableSchema")
	})

	t.Run("delete requires confirm", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodDelete, "/v1/collections/TableSchema", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, f.index.collections, "TableSchema")
	})

	t.Run("confirmed delete", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodDelete, "/v1/collections/Obsolete?confirm=true", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

// newTestMetrics builds metrics on a throwaway registry so parallel
// tests never collide on the default one.
func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsWithRegisterer(prometheus.NewRegistry())
}
