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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/observability"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/schema"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/tasks"
)

// AnalyticalOpener hands the training task a fresh read-only handle on
// the analytical working copy. A nil *sql.DB with a nil error means
// the analytical store is disabled and training completes empty.
type AnalyticalOpener func() (*sql.DB, func(), error)

// taskReporter adapts a task's write handle to the pipeline's
// progress interface.
type taskReporter struct {
	report *tasks.Reporter
}

func (r taskReporter) SetState(state schema.JobState, message string) {
	switch state {
	case schema.StateRetrying:
		r.report.SetStatus(tasks.StatusRetrying, message)
	case schema.StateCompleted, schema.StateFailed:
		// Terminal transitions belong to the runner; keep the message.
		r.report.SetStatus(tasks.StatusRunning, message)
	default:
		r.report.SetStatus(tasks.StatusRunning, message)
	}
}

func (r taskReporter) SetProgress(percent int) {
	r.report.SetProgress(percent)
}

// StartTraining queues a full extract-and-train run and answers 202.
func StartTraining(pipeline *schema.Pipeline, openAnalytical AnalyticalOpener,
	runner *tasks.Runner, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, err := runner.Submit("vector_training", func(ctx context.Context, report *tasks.Reporter) error {
			db, closeDB, err := openAnalytical()
			if err != nil {
				metrics.TrainingRunsTotal.WithLabelValues("error").Inc()
				return err
			}
			if closeDB != nil {
				defer closeDB()
			}

			result, err := pipeline.Run(ctx, db, taskReporter{report: report})
			if err != nil {
				metrics.TrainingRunsTotal.WithLabelValues("error").Inc()
				return err
			}
			metrics.TrainingRunsTotal.WithLabelValues("success").Inc()
			metrics.TrainingTablesProcessed.Add(float64(result.ProcessedTables))
			report.SetResult(result)
			return nil
		})
		if err != nil {
			slog.Error("failed to queue training task", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task queue is full, retry later"})
			return
		}
		metrics.TasksSubmittedTotal.WithLabelValues("vector_training").Inc()
		c.JSON(http.StatusAccepted, datatypes.QueuedResponse{
			Status:    "queued",
			TaskID:    taskID,
			StatusURL: "/v1/tasks/" + taskID,
		})
	}
}

// ListCollections answers a summary of every vector index collection.
func ListCollections(pipeline *schema.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		infos, err := pipeline.InspectCollections(c.Request.Context())
		if err != nil {
			slog.Error("failed to inspect collections", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "vector index unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"collections": infos})
	}
}

// DeleteCollection drops a collection. Destructive, so it demands the
// confirm query parameter.
func DeleteCollection(pipeline *schema.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		confirm := c.Query("confirm") == "true"

		err := pipeline.ClearCollection(c.Request.Context(), name, confirm)
		if errors.Is(err, schema.ErrConfirmationRequired) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "deleting a collection requires ?confirm=true",
			})
			return
		}
		if err != nil {
			slog.Error("failed to delete collection", "collection", name, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		slog.Warn("collection deleted", "collection", name)
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "collection": name})
	}
}
