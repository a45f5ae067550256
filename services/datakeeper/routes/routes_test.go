// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/backup"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/config"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/observability"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/schema"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/stores"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/tasks"
)

func TestSetupRoutesRegistersAPISurface(t *testing.T) {
	gin.SetMode(gin.TestMode)

	system, err := stores.OpenSystem(stores.SystemConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { system.Close() })

	vector, err := stores.OpenVector("", "")
	require.NoError(t, err)

	runner := tasks.NewRunner(tasks.Config{})
	t.Cleanup(runner.Close)

	router := gin.New()
	SetupRoutes(router, Deps{
		Config:   config.Default(),
		Backups:  backup.NewManager(backup.Config{Dir: t.TempDir(), System: system}),
		Pipeline: schema.NewPipeline(vector, nil),
		Runner:   runner,
		Metrics:  observability.NewMetricsWithRegisterer(prometheus.NewRegistry()),
		Stores:   []stores.Store{system},
	})

	want := map[string]bool{
		"GET /health":                      false,
		"GET /metrics":                     false,
		"POST /v1/backups":                 false,
		"GET /v1/backups":                  false,
		"POST /v1/backups/restore":         false,
		"POST /v1/backups/prune":           false,
		"GET /v1/backups/:filename/verify": false,
		"POST /v1/training":                false,
		"GET /v1/tasks/:taskId":            false,
		"GET /v1/collections":              false,
		"DELETE /v1/collections/:name":     false,
	}
	for _, route := range router.Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for key, found := range want {
		assert.True(t, found, "route %s not registered", key)
	}
}
