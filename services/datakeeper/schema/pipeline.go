// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/datatypes"
)

// ErrConfirmationRequired guards the one destructive pipeline
// operation. It is always a local mistake, never retried.
var ErrConfirmationRequired = errors.New("destructive operation requires explicit confirmation")

// JobState is the lifecycle position of one training run.
type JobState string

const (
	StatePending    JobState = "pending"
	StateExtracting JobState = "extracting"
	StateEmbedding  JobState = "embedding"
	StateRetrying   JobState = "retrying"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

// Reporter receives pipeline progress. Progress percentages must be
// treated as monotone by implementations; the pipeline never reports a
// lower value than it already has.
type Reporter interface {
	SetState(state JobState, message string)
	SetProgress(percent int)
}

// nopReporter lets the pipeline run without an observer.
type nopReporter struct{}

func (nopReporter) SetState(JobState, string) {}
func (nopReporter) SetProgress(int)           {}

// TrainingResult is the structured outcome attached to a completed run.
type TrainingResult struct {
	TotalTables     int       `json:"total_tables"`
	ProcessedTables int       `json:"processed_tables"`
	SkippedTables   []string  `json:"skipped_tables,omitempty"`
	Collection      string    `json:"collection"`
	FinishedAt      time.Time `json:"finished_at"`
}

// VectorIndex is the slice of vector store capability the pipeline
// needs. stores.VectorStore satisfies it; tests use a fake.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, class *models.Class) error
	Upsert(ctx context.Context, collection, id string, properties map[string]interface{}) error
	Count(ctx context.Context, collection string) (int, error)
	ListCollections(ctx context.Context) ([]*models.Class, error)
	DeleteCollection(ctx context.Context, name string) error
}

// Pipeline drives schema extraction and vector index training.
//
// # Thread Safety
//
// Pipeline itself is stateless between calls; concurrent Run calls are
// safe but will race on index writes, so callers serialize training
// through the task runner.
type Pipeline struct {
	index  VectorIndex
	logger *slog.Logger
}

// NewPipeline builds a pipeline over the given vector index. A nil
// logger falls back to slog.Default().
func NewPipeline(index VectorIndex, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{index: index, logger: logger}
}

// Run executes one full training job: extract, then train. db may be
// nil (analytical store disabled); the job then completes immediately
// with a message noting no schema was available.
func (p *Pipeline) Run(ctx context.Context, db *sql.DB, report Reporter) (*TrainingResult, error) {
	if report == nil {
		report = nopReporter{}
	}

	report.SetState(StateExtracting, "extracting analytical schema")
	doc, err := p.Extract(ctx, db, func(attempt int, err error) {
		report.SetState(StateRetrying,
			fmt.Sprintf("extraction attempt %d failed, retrying", attempt))
	})
	if err != nil {
		report.SetState(StateFailed, err.Error())
		return nil, err
	}

	return p.Train(ctx, doc, report)
}

// Train partitions the schema document into per-table units and
// upserts each into the TableSchema collection.
//
// # Description
//
// Entries are keyed by a deterministic UUID derived from the table
// name, so re-running training on an unchanged schema updates entries
// in place and leaves the collection count unchanged. Individual
// upsert failures are logged, recorded in SkippedTables, and do not
// abort the remaining tables. Progress is processed/total*100, updated
// after each table, never decreasing.
func (p *Pipeline) Train(ctx context.Context, doc *SchemaDocument, report Reporter) (*TrainingResult, error) {
	if report == nil {
		report = nopReporter{}
	}

	result := &TrainingResult{
		TotalTables: len(doc.Tables),
		Collection:  datatypes.TableSchemaCollection,
	}

	if doc.Empty() {
		result.FinishedAt = time.Now()
		report.SetProgress(100)
		report.SetState(StateCompleted, "no analytical schema available, nothing to train")
		return result, nil
	}

	report.SetState(StateEmbedding, "updating vector index")
	if err := p.index.EnsureCollection(ctx, datatypes.GetTableSchemaClass()); err != nil {
		report.SetState(StateFailed, err.Error())
		return nil, fmt.Errorf("ensure %s collection: %w", datatypes.TableSchemaCollection, err)
	}

	trainedAt := time.Now().UnixMilli()
	for i, table := range doc.Tables {
		if err := ctx.Err(); err != nil {
			report.SetState(StateFailed, "training cancelled")
			return nil, err
		}

		err := p.index.Upsert(ctx, datatypes.TableSchemaCollection, tableEntryID(table.Name),
			map[string]interface{}{
				"table_name":   table.Name,
				"ddl":          table.DDL,
				"column_count": table.ColumnCount,
				"trained_at":   trainedAt,
			})
		if err != nil {
			p.logger.Warn("skipping table after vector index write failure",
				"table", table.Name, "error", err)
			result.SkippedTables = append(result.SkippedTables, table.Name)
		} else {
			result.ProcessedTables++
		}

		report.SetProgress((i + 1) * 100 / len(doc.Tables))
	}

	result.FinishedAt = time.Now()
	message := fmt.Sprintf("trained %d of %d tables", result.ProcessedTables, result.TotalTables)
	if len(result.SkippedTables) > 0 {
		message += fmt.Sprintf(" (%d skipped)", len(result.SkippedTables))
	}
	report.SetState(StateCompleted, message)
	p.logger.Info("vector index training finished",
		"processed", result.ProcessedTables,
		"skipped", len(result.SkippedTables))
	return result, nil
}

// InspectCollections summarizes every collection: name, object count,
// and a small metadata blob. No embeddings are transferred.
func (p *Pipeline) InspectCollections(ctx context.Context) ([]datatypes.CollectionInfo, error) {
	classes, err := p.index.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]datatypes.CollectionInfo, 0, len(classes))
	for _, class := range classes {
		count, err := p.index.Count(ctx, class.Class)
		if err != nil {
			p.logger.Warn("failed to count collection", "collection", class.Class, "error", err)
			count = -1
		}
		infos = append(infos, datatypes.CollectionInfo{
			Name:        class.Class,
			Count:       count,
			Description: class.Description,
			Vectorizer:  class.Vectorizer,
		})
	}
	return infos, nil
}

// ClearCollection deletes a collection and everything in it. The only
// destructive pipeline operation; refuses to run without confirm. The
// TableSchema collection is recreated empty afterwards so training can
// resume without a bring-up cycle.
func (p *Pipeline) ClearCollection(ctx context.Context, name string, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	p.logger.Warn("clearing vector index collection", "collection", name)
	if err := p.index.DeleteCollection(ctx, name); err != nil {
		return err
	}
	if name == datatypes.TableSchemaCollection {
		return p.index.EnsureCollection(ctx, datatypes.GetTableSchemaClass())
	}
	return nil
}

// tableEntryID derives the stable per-table object ID. Same table name,
// same ID: that is the whole upsert story.
func tableEntryID(tableName string) string {
	hash := sha256.Sum256([]byte("table_schema/" + tableName))
	id, _ := uuid.FromBytes(hash[:16])
	return id.String()
}
