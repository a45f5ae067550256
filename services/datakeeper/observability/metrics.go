// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the datakeeper
// service.
//
// # Description
//
// Metrics cover the three operation families the service exposes:
//   - Backups (creates, restores, prunes, verifications, and their sizes)
//   - Vector index training (runs, tables processed, durations)
//   - Background tasks (submissions, terminal outcomes, queue depth)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with
// Prometheus + Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "aleutian"

const datakeeperSubsystem = "datakeeper"

// Metrics holds all Prometheus metrics for the datakeeper service.
// Initialize once at startup via NewMetrics().
type Metrics struct {
	// BackupOperationsTotal counts backup-family operations.
	// Labels: operation (create, restore, prune, verify), status (success, error, conflict)
	BackupOperationsTotal *prometheus.CounterVec

	// BackupDurationSeconds observes how long creates and restores take.
	// Labels: operation (create, restore)
	BackupDurationSeconds *prometheus.HistogramVec

	// BackupArchiveBytes records the size of the most recent archive.
	BackupArchiveBytes prometheus.Gauge

	// TrainingRunsTotal counts training runs by outcome.
	// Labels: status (success, error)
	TrainingRunsTotal *prometheus.CounterVec

	// TrainingTablesProcessed counts tables written to the vector index.
	TrainingTablesProcessed prometheus.Counter

	// TasksSubmittedTotal counts task submissions by kind.
	// Labels: kind
	TasksSubmittedTotal *prometheus.CounterVec

	// TaskOutcomesTotal counts terminal task states.
	// Labels: kind, status (completed, failed)
	TaskOutcomesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all datakeeper metrics with the
// default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer registers against a caller-supplied
// registry. Tests use this to avoid default-registry collisions.
func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BackupOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: datakeeperSubsystem,
				Name:      "backup_operations_total",
				Help:      "Backup-family operations by operation and status.",
			},
			[]string{"operation", "status"},
		),
		BackupDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: datakeeperSubsystem,
				Name:      "backup_duration_seconds",
				Help:      "Duration of backup creates and restores.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"operation"},
		),
		BackupArchiveBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: datakeeperSubsystem,
				Name:      "backup_archive_bytes",
				Help:      "Size of the most recently created archive.",
			},
		),
		TrainingRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: datakeeperSubsystem,
				Name:      "training_runs_total",
				Help:      "Vector index training runs by outcome.",
			},
			[]string{"status"},
		),
		TrainingTablesProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: datakeeperSubsystem,
				Name:      "training_tables_processed_total",
				Help:      "Tables written to the vector index across all runs.",
			},
		),
		TasksSubmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: datakeeperSubsystem,
				Name:      "tasks_submitted_total",
				Help:      "Background task submissions by kind.",
			},
			[]string{"kind"},
		),
		TaskOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: datakeeperSubsystem,
				Name:      "task_outcomes_total",
				Help:      "Terminal background task states by kind and status.",
			},
			[]string{"kind", "status"},
		),
	}
}
