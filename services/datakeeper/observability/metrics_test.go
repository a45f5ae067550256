// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer(reg)

	m.BackupOperationsTotal.WithLabelValues("create", "success").Inc()
	m.BackupOperationsTotal.WithLabelValues("restore", "conflict").Inc()
	m.BackupArchiveBytes.Set(1024)
	m.TrainingRunsTotal.WithLabelValues("success").Inc()
	m.TrainingTablesProcessed.Add(7)
	m.TasksSubmittedTotal.WithLabelValues("backup_create").Inc()
	m.TaskOutcomesTotal.WithLabelValues("backup_create", "completed").Inc()
	m.BackupDurationSeconds.WithLabelValues("create").Observe(1.5)

	if got := testutil.ToFloat64(m.BackupOperationsTotal.WithLabelValues("create", "success")); got != 1 {
		t.Errorf("backup create counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BackupArchiveBytes); got != 1024 {
		t.Errorf("archive bytes gauge = %v, want 1024", got)
	}
	if got := testutil.ToFloat64(m.TrainingTablesProcessed); got != 7 {
		t.Errorf("tables processed counter = %v, want 7", got)
	}
}

func TestMetricsDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetricsWithRegisterer(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	NewMetricsWithRegisterer(reg)
}
