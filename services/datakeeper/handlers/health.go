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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/bootstrap"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/stores"
)

// HealthCheck probes every configured store and reports the bootstrap
// record. Overall status is "ok" when every store answers healthy,
// "degraded" when any store is degraded or unreachable; the endpoint
// itself always answers 200 while the process is alive.
func HealthCheck(storeList []stores.Store, report *bootstrap.Report, probeTimeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := stores.ProbeAll(c.Request.Context(), storeList, probeTimeout)

		status := "ok"
		for _, result := range results {
			if result.State != stores.StateHealthy {
				status = "degraded"
				break
			}
		}
		if report != nil && report.Degraded() && status == "ok" {
			status = "degraded"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    status,
			"stores":    results,
			"bootstrap": report,
		})
	}
}
