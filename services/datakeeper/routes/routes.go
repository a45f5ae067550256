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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/backup"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/bootstrap"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/config"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/handlers"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/observability"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/schema"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/stores"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/tasks"
)

// Deps carries everything the route table wires into handlers.
type Deps struct {
	Config          config.Config
	Backups         *backup.Manager
	Pipeline        *schema.Pipeline
	Runner          *tasks.Runner
	Metrics         *observability.Metrics
	Stores          []stores.Store
	OpenAnalytical  handlers.AnalyticalOpener
	BootstrapReport *bootstrap.Report
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck(deps.Stores, deps.BootstrapReport, deps.Config.ProbeTimeout))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		backups := v1.Group("/backups")
		{
			backups.POST("", handlers.CreateBackup(deps.Backups, deps.Runner, deps.Metrics))
			backups.GET("", handlers.ListBackups(deps.Backups))
			backups.POST("/restore", handlers.RestoreBackup(deps.Backups, deps.Runner, deps.Metrics))
			backups.POST("/prune", handlers.PruneBackups(deps.Backups, deps.Config.BackupRetention, deps.Metrics))
			backups.GET("/:filename/verify", handlers.VerifyBackup(deps.Backups, deps.Metrics))
		}

		v1.POST("/training", handlers.StartTraining(deps.Pipeline, deps.OpenAnalytical, deps.Runner, deps.Metrics))
		v1.GET("/tasks/:taskId", handlers.GetTask(deps.Runner))

		collections := v1.Group("/collections")
		{
			collections.GET("", handlers.ListCollections(deps.Pipeline))
			collections.DELETE("/:name", handlers.DeleteCollection(deps.Pipeline))
		}
	}
}
