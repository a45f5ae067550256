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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/backup"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/observability"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/tasks"
)

// CreateBackup queues a full backup and answers 202 with a pollable
// task ID. A backup or restore already in flight answers 409.
func CreateBackup(manager *backup.Manager, runner *tasks.Runner, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, err := runner.Submit("backup_create", func(ctx context.Context, report *tasks.Reporter) error {
			start := time.Now()
			info, err := manager.Create(ctx, func(percent int, message string) {
				report.SetProgress(percent)
				report.SetStatus(tasks.StatusRunning, message)
			})
			if err != nil {
				metrics.BackupOperationsTotal.WithLabelValues("create", backupStatusLabel(err)).Inc()
				return err
			}
			metrics.BackupOperationsTotal.WithLabelValues("create", "success").Inc()
			metrics.BackupDurationSeconds.WithLabelValues("create").Observe(time.Since(start).Seconds())
			metrics.BackupArchiveBytes.Set(float64(info.SizeBytes))
			report.SetResult(info)
			return nil
		})
		if err != nil {
			slog.Error("failed to queue backup task", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task queue is full, retry later"})
			return
		}
		metrics.TasksSubmittedTotal.WithLabelValues("backup_create").Inc()
		c.JSON(http.StatusAccepted, datatypes.QueuedResponse{
			Status:    "queued",
			TaskID:    taskID,
			StatusURL: "/v1/tasks/" + taskID,
		})
	}
}

// ListBackups answers the archive inventory, newest first.
func ListBackups(manager *backup.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		infos, err := manager.List()
		if err != nil {
			slog.Error("failed to list backup archives", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list backup archives"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"backups": infos})
	}
}

// RestoreBackup queues a restore of the named archive. Unconfirmed
// requests are rejected synchronously with 400 so the caller never
// burns a task on a request that could not run.
func RestoreBackup(manager *backup.Manager, runner *tasks.Runner, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RestoreRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid restore request: " + err.Error()})
			return
		}
		if !req.Confirm {
			c.JSON(http.StatusBadRequest, gin.H{"error": backup.ErrConfirmationRequired.Error()})
			return
		}

		slog.Warn("restore requested", "filename", req.Filename)
		taskID, err := runner.Submit("backup_restore", func(ctx context.Context, report *tasks.Reporter) error {
			start := time.Now()
			err := manager.Restore(ctx, req.Filename, true, func(percent int, message string) {
				report.SetProgress(percent)
				report.SetStatus(tasks.StatusRunning, message)
			})
			metrics.BackupOperationsTotal.WithLabelValues("restore", backupStatusLabel(err)).Inc()
			if err != nil {
				var partial *backup.PartialRestoreError
				if errors.As(err, &partial) {
					report.SetResult(gin.H{
						"restored": partial.Restored,
						"failed":   partial.Failed,
					})
				}
				return err
			}
			metrics.BackupDurationSeconds.WithLabelValues("restore").Observe(time.Since(start).Seconds())
			return nil
		})
		if err != nil {
			slog.Error("failed to queue restore task", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task queue is full, retry later"})
			return
		}
		metrics.TasksSubmittedTotal.WithLabelValues("backup_restore").Inc()
		c.JSON(http.StatusAccepted, datatypes.QueuedResponse{
			Status:    "queued",
			TaskID:    taskID,
			StatusURL: "/v1/tasks/" + taskID,
		})
	}
}

// PruneBackups applies the retention policy synchronously; deleting a
// few files does not need a background task. Body retention overrides
// the configured default for this one call.
func PruneBackups(manager *backup.Manager, defaultRetention int, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		retention := defaultRetention
		var req datatypes.PruneRequest
		if c.Request.ContentLength > 0 {
			if err := c.BindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid prune request: " + err.Error()})
				return
			}
			if req.Retention != nil {
				retention = *req.Retention
			}
		}

		removed, err := manager.Prune(retention)
		if err != nil {
			metrics.BackupOperationsTotal.WithLabelValues("prune", "error").Inc()
			slog.Error("prune failed", "retention", retention, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		metrics.BackupOperationsTotal.WithLabelValues("prune", "success").Inc()
		c.JSON(http.StatusOK, gin.H{
			"retention": retention,
			"removed":   removed,
		})
	}
}

// VerifyBackup streams the named archive through checksum
// verification without touching any store.
func VerifyBackup(manager *backup.Manager, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename := c.Param("filename")
		report, err := manager.Verify(filename)
		if err != nil {
			if errors.Is(err, backup.ErrArchiveNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			metrics.BackupOperationsTotal.WithLabelValues("verify", "error").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		metrics.BackupOperationsTotal.WithLabelValues("verify", "success").Inc()
		c.JSON(http.StatusOK, report)
	}
}

// backupStatusLabel folds backup errors into the metric's status label.
func backupStatusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, backup.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
