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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/datatypes"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/tasks"
)

// GetTask answers the pollable state of one background task. Expired
// or unknown IDs are 404; records are reclaimed after the retention
// window, so pollers must not sleep on a finished task forever.
func GetTask(runner *tasks.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := runner.Get(c.Param("taskId"))
		if errors.Is(err, tasks.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown or expired task id"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := datatypes.TaskStatusResponse{
			TaskID:   record.ID,
			Status:   string(record.Status),
			Progress: record.Progress,
			Message:  record.Message,
			Result:   record.Result,
		}
		if record.Error != "" {
			resp.Message = record.Error
		}
		c.JSON(http.StatusOK, resp)
	}
}
