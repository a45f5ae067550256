// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tasks runs slow operations off the request path. A submit
// returns a task ID immediately; callers poll the record until it
// reaches a terminal status. Records outlive their task long enough to
// be polled, then a janitor reclaims them.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTaskNotFound is returned for unknown or already-reclaimed IDs.
var ErrTaskNotFound = errors.New("task not found")

// ErrQueueFull is returned when every worker is busy and the backlog
// is at capacity.
var ErrQueueFull = errors.New("task queue is full")

// Status is the lifecycle position of a task record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusRetrying  Status = "retrying"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status will never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TaskRecord is the pollable snapshot of one task. Get returns copies,
// so callers can hold a record without racing the worker.
type TaskRecord struct {
	ID          string      `json:"task_id"`
	Kind        string      `json:"kind"`
	Status      Status      `json:"status"`
	Progress    int         `json:"progress"`
	Message     string      `json:"message,omitempty"`
	Result      interface{} `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
}

// Reporter is the task body's write handle onto its own record. It is
// the only way task state changes; the runner owns the terminal
// transitions.
type Reporter struct {
	runner *Runner
	id     string
}

// SetStatus moves the record to a non-terminal status with a message.
// Terminal statuses are set by the runner from the task's return value
// and are ignored here.
func (r *Reporter) SetStatus(status Status, message string) {
	if status.Terminal() {
		return
	}
	r.runner.update(r.id, func(rec *TaskRecord) {
		rec.Status = status
		rec.Message = message
	})
}

// SetProgress clamps to [0,100] and never moves backwards.
func (r *Reporter) SetProgress(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	r.runner.update(r.id, func(rec *TaskRecord) {
		if percent > rec.Progress {
			rec.Progress = percent
		}
	})
}

// SetResult attaches a structured payload to the record. Payloads are
// returned verbatim to pollers, so they must never contain connection
// credentials.
func (r *Reporter) SetResult(result interface{}) {
	r.runner.update(r.id, func(rec *TaskRecord) {
		rec.Result = result
	})
}

// Task is one unit of background work. A nil error marks the record
// completed; anything else marks it failed with the error string.
type Task func(ctx context.Context, report *Reporter) error

// Config sizes the runner. Zero values fall back to the defaults used
// by the datakeeper service.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Retention time.Duration
	Logger    *slog.Logger

	// OnOutcome, when set, is called once per task after its record
	// reaches a terminal status. The service wires this to the outcome
	// counter metric.
	OnOutcome func(kind string, status Status)
}

// Runner owns the worker pool and the record table.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Record mutation
// funnels through update under the table mutex.
type Runner struct {
	mu      sync.Mutex
	records map[string]*TaskRecord

	queue     chan queued
	timeout   time.Duration
	retention time.Duration
	logger    *slog.Logger
	onOutcome func(kind string, status Status)

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type queued struct {
	id   string
	kind string
	task Task
}

// NewRunner starts the worker pool and the janitor immediately.
func NewRunner(cfg Config) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Runner{
		records:   make(map[string]*TaskRecord),
		queue:     make(chan queued, cfg.QueueSize),
		timeout:   cfg.Timeout,
		retention: cfg.Retention,
		logger:    cfg.Logger,
		onOutcome: cfg.OnOutcome,
		stop:      make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.wg.Add(1)
	go r.janitor()
	return r
}

// Submit registers a record and hands the task to the pool. It never
// blocks: a full queue fails fast with ErrQueueFull so the HTTP layer
// can answer with a retryable status.
func (r *Runner) Submit(kind string, task Task) (string, error) {
	id := uuid.NewString()
	rec := &TaskRecord{
		ID:          id,
		Kind:        kind,
		Status:      StatusPending,
		SubmittedAt: time.Now(),
	}

	r.mu.Lock()
	r.records[id] = rec
	r.mu.Unlock()

	select {
	case r.queue <- queued{id: id, kind: kind, task: task}:
		return id, nil
	default:
		r.mu.Lock()
		delete(r.records, id)
		r.mu.Unlock()
		return "", ErrQueueFull
	}
}

// Get returns a copy of the record for id.
func (r *Runner) Get(id string) (TaskRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return TaskRecord{}, ErrTaskNotFound
	}
	return *rec, nil
}

// Close drains nothing: queued-but-unstarted tasks are abandoned, and
// running tasks see their context cancelled. Safe to call twice.
func (r *Runner) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			return
		case q := <-r.queue:
			r.run(q)
		}
	}
}

func (r *Runner) run(q queued) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	now := time.Now()
	r.update(q.id, func(rec *TaskRecord) {
		rec.Status = StatusRunning
		rec.StartedAt = &now
	})

	err := q.task(ctx, &Reporter{runner: r, id: q.id})

	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	finished := time.Now()
	r.update(q.id, func(rec *TaskRecord) {
		rec.FinishedAt = &finished
		rec.Status = status
		if err != nil {
			rec.Error = err.Error()
			return
		}
		rec.Progress = 100
	})

	if r.onOutcome != nil {
		r.onOutcome(q.kind, status)
	}

	if err != nil {
		r.logger.Warn("background task failed", "task_id", q.id, "kind", q.kind, "error", err)
	} else {
		r.logger.Info("background task completed", "task_id", q.id, "kind", q.kind)
	}
}

// update applies fn to the record under the table mutex. Unknown IDs
// are a no-op; the janitor may have reclaimed the record.
func (r *Runner) update(id string, fn func(*TaskRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		fn(rec)
	}
}

// janitor reclaims terminal records once they have been held past the
// retention window.
func (r *Runner) janitor() {
	defer r.wg.Done()
	interval := r.retention / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

func (r *Runner) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.records {
		if rec.Status.Terminal() && rec.FinishedAt != nil &&
			now.Sub(*rec.FinishedAt) > r.retention {
			delete(r.records, id)
		}
	}
}
