// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bootstrap brings the datakeeper service from cold start to
// ready. Steps run in a fixed order; each reports ok, warning, or
// fatal. A fatal outcome stops the sequence and the process should
// exit. Warnings leave the service running in a degraded mode that
// the health endpoint surfaces.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/config"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/goldencopy"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/schema"
	"github.com/AleutianAI/AleutianInsight/services/datakeeper/stores"
)

// StepStatus classifies a bootstrap step outcome.
type StepStatus string

const (
	StatusOk      StepStatus = "ok"
	StatusWarning StepStatus = "warning"
	StatusFatal   StepStatus = "fatal"
)

// StepOutcome is one step's result in the bootstrap report.
type StepOutcome struct {
	Step     string        `json:"step"`
	Status   StepStatus    `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report is the full bootstrap record, kept for the health endpoint.
type Report struct {
	Steps      []StepOutcome `json:"steps"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Fatal reports whether any step ended the sequence.
func (r *Report) Fatal() bool {
	for _, s := range r.Steps {
		if s.Status == StatusFatal {
			return true
		}
	}
	return false
}

// Degraded reports whether any step produced a warning.
func (r *Report) Degraded() bool {
	for _, s := range r.Steps {
		if s.Status == StatusWarning {
			return true
		}
	}
	return false
}

// Orchestrator wires the bootstrap sequence to the live stores.
type Orchestrator struct {
	cfg      config.Config
	system   *stores.SystemStore
	vector   *stores.VectorStore
	cache    *stores.CacheStore
	golden   *goldencopy.Manager
	pipeline *schema.Pipeline
	logger   *slog.Logger
}

// Deps carries everything the orchestrator needs; nil optional fields
// (vector, cache, golden, pipeline) skip their steps with a warning.
type Deps struct {
	Config   config.Config
	System   *stores.SystemStore
	Vector   *stores.VectorStore
	Cache    *stores.CacheStore
	Golden   *goldencopy.Manager
	Pipeline *schema.Pipeline
	Logger   *slog.Logger
}

func NewOrchestrator(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      deps.Config,
		system:   deps.System,
		vector:   deps.Vector,
		cache:    deps.Cache,
		golden:   deps.Golden,
		pipeline: deps.Pipeline,
		logger:   logger,
	}
}

type step struct {
	name string
	run  func(ctx context.Context) StepOutcome
}

// Run executes the bootstrap sequence and returns its report. The
// sequence stops at the first fatal step; callers decide whether to
// exit from Report.Fatal. Every step runs under its own wall-clock
// deadline so a wedged store connection cannot stall bring-up forever.
func (o *Orchestrator) Run(ctx context.Context) *Report {
	report := &Report{StartedAt: time.Now()}

	steps := []step{
		{"check_environment", o.checkEnvironment},
		{"init_system_store", o.initSystemStore},
		{"ensure_golden_copy", o.ensureGoldenCopy},
		{"train_vector_index", o.trainVectorIndex},
		{"probe_cache", o.probeCache},
	}

	for _, s := range steps {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout())
		outcome := s.run(stepCtx)
		cancel()
		outcome.Step = s.name
		outcome.Duration = time.Since(start)
		report.Steps = append(report.Steps, outcome)

		switch outcome.Status {
		case StatusFatal:
			o.logger.Error("bootstrap step failed fatally", "step", s.name, "reason", outcome.Reason)
			report.FinishedAt = time.Now()
			return report
		case StatusWarning:
			o.logger.Warn("bootstrap step degraded", "step", s.name, "reason", outcome.Reason)
		default:
			o.logger.Info("bootstrap step complete", "step", s.name, "duration", outcome.Duration)
		}
	}

	report.FinishedAt = time.Now()
	return report
}

// stepTimeout bounds one bootstrap step's wall clock. The task timeout
// is the natural ceiling: no startup step should outlast a background
// task of the same work.
func (o *Orchestrator) stepTimeout() time.Duration {
	if o.cfg.TaskTimeout > 0 {
		return o.cfg.TaskTimeout
	}
	return 30 * time.Minute
}

// checkEnvironment validates directories the service cannot run
// without. It creates what it can and fails fatally on what it can't.
func (o *Orchestrator) checkEnvironment(context.Context) StepOutcome {
	for _, dir := range []string{o.cfg.SystemStoreDir, o.cfg.BackupDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0750); err != nil {
			return StepOutcome{
				Status: StatusFatal,
				Reason: fmt.Sprintf("cannot create required directory %s: %v", dir, err),
			}
		}
	}
	return StepOutcome{Status: StatusOk}
}

// initSystemStore verifies the system store answers and seeds demo
// data into an empty store when seeding is enabled. A dead system
// store is fatal; nothing else works without it.
func (o *Orchestrator) initSystemStore(ctx context.Context) StepOutcome {
	if o.system == nil {
		return StepOutcome{Status: StatusFatal, Reason: "system store not constructed"}
	}
	if probe := o.system.Probe(ctx); probe.State != stores.StateHealthy {
		return StepOutcome{Status: StatusFatal, Reason: "system store probe: " + probe.Message}
	}

	if !o.cfg.SeedDemoData {
		return StepOutcome{Status: StatusOk}
	}
	empty, err := o.system.IsEmpty()
	if err != nil {
		return StepOutcome{Status: StatusFatal, Reason: "system store emptiness check: " + err.Error()}
	}
	if !empty {
		return StepOutcome{Status: StatusOk}
	}
	if err := seedDemoData(o.system); err != nil {
		return StepOutcome{Status: StatusWarning, Reason: "demo data seeding failed: " + err.Error()}
	}
	o.logger.Info("seeded demo data into empty system store")
	return StepOutcome{Status: StatusOk}
}

// ensureGoldenCopy brings the analytical working copy up to date. A
// missing source is only a warning: the service keeps running without
// analytical features.
func (o *Orchestrator) ensureGoldenCopy(ctx context.Context) StepOutcome {
	if o.golden == nil || !o.cfg.EnableAnalyticalStore {
		return StepOutcome{Status: StatusOk, Reason: "analytical store disabled"}
	}
	result, err := o.golden.EnsureCopy(ctx)
	if err != nil {
		return StepOutcome{Status: StatusWarning, Reason: "golden copy: " + err.Error()}
	}
	if result.SourceMissing {
		return StepOutcome{Status: StatusWarning, Reason: "golden copy source not present"}
	}
	if result.AlreadyPresent {
		return StepOutcome{Status: StatusOk, Reason: "working copy already current"}
	}
	return StepOutcome{Status: StatusOk,
		Reason: fmt.Sprintf("copied %d bytes", result.BytesCopied)}
}

// trainVectorIndex runs a synchronous training pass at startup when
// the analytical store and auto-training are both enabled. Failures
// degrade rather than kill the service.
func (o *Orchestrator) trainVectorIndex(ctx context.Context) StepOutcome {
	if !o.cfg.EnableAnalyticalStore || !o.cfg.AutoTrainVectorIndex {
		return StepOutcome{Status: StatusOk, Reason: "auto-training disabled"}
	}
	if o.pipeline == nil || o.vector == nil || !o.vector.Available() {
		return StepOutcome{Status: StatusWarning, Reason: "vector index not configured"}
	}

	analytical, err := stores.OpenAnalytical(o.cfg.AnalyticalWorkingCopy, true)
	if err != nil {
		return StepOutcome{Status: StatusWarning, Reason: "open analytical working copy: " + err.Error()}
	}
	defer analytical.Close()

	result, err := o.pipeline.Run(ctx, analytical.DB(), nil)
	if err != nil {
		return StepOutcome{Status: StatusWarning, Reason: "startup training failed: " + err.Error()}
	}
	return StepOutcome{Status: StatusOk,
		Reason: fmt.Sprintf("trained %d of %d tables", result.ProcessedTables, result.TotalTables)}
}

// probeCache checks cache reachability. The cache is an accelerator;
// its absence is never worse than a warning.
func (o *Orchestrator) probeCache(ctx context.Context) StepOutcome {
	if o.cache == nil {
		return StepOutcome{Status: StatusOk, Reason: "cache not configured"}
	}
	probe := o.cache.Probe(ctx)
	switch probe.State {
	case stores.StateHealthy:
		return StepOutcome{Status: StatusOk}
	case stores.StateDegraded:
		return StepOutcome{Status: StatusOk, Reason: probe.Message}
	default:
		return StepOutcome{Status: StatusWarning, Reason: "cache unreachable: " + probe.Message}
	}
}
