// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schema extracts structural metadata from the analytical store
// and drives incremental re-training of the vector index.
//
// The flow is deliberately forgiving: a missing or disabled analytical
// store yields an empty SchemaDocument and a training run that
// completes with zero tables, because demo deployments legitimately
// run without analytical data.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// TableSchema is one extracted table: its name, a rendered DDL-like
// structural description, and the column count.
type TableSchema struct {
	Name        string `json:"name"`
	DDL         string `json:"ddl"`
	ColumnCount int    `json:"column_count"`
}

// SchemaDocument is the full extraction output: one entry per table,
// in stable name order.
type SchemaDocument struct {
	Tables      []TableSchema `json:"tables"`
	ExtractedAt time.Time     `json:"extracted_at"`
}

// Empty reports whether the document describes no tables at all.
func (d *SchemaDocument) Empty() bool { return len(d.Tables) == 0 }

const (
	extractMaxAttempts = 3
	extractBackoffBase = 250 * time.Millisecond
)

// Extract enumerates the analytical store's tables and renders a
// structural description for each.
//
// # Description
//
// Reads sqlite_master for table names, PRAGMA table_info for columns,
// and renders CREATE-TABLE style text per table. A nil db (analytical
// store disabled or working copy absent) returns an empty document and
// no error. Connectivity failures are retried with doubling backoff;
// the onRetry callback fires before each retry sleep so the caller can
// reflect a retrying state.
func (p *Pipeline) Extract(ctx context.Context, db *sql.DB, onRetry func(attempt int, err error)) (*SchemaDocument, error) {
	if db == nil {
		p.logger.Info("analytical store unavailable, extracting empty schema document")
		return &SchemaDocument{ExtractedAt: time.Now()}, nil
	}

	var doc *SchemaDocument
	var err error
	backoff := extractBackoffBase
	for attempt := 1; attempt <= extractMaxAttempts; attempt++ {
		doc, err = extractOnce(ctx, db)
		if err == nil {
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < extractMaxAttempts {
			p.logger.Warn("schema extraction failed, retrying",
				"attempt", attempt, "backoff", backoff, "error", err)
			if onRetry != nil {
				onRetry(attempt, err)
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("schema extraction failed after %d attempts: %w", extractMaxAttempts, err)
}

func extractOnce(ctx context.Context, db *sql.DB) (*SchemaDocument, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("enumerate tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("enumerate tables: %w", err)
	}

	doc := &SchemaDocument{ExtractedAt: time.Now()}
	for _, name := range names {
		table, err := describeTable(ctx, db, name)
		if err != nil {
			return nil, err
		}
		doc.Tables = append(doc.Tables, table)
	}
	return doc, nil
}

// describeTable renders one table's columns as CREATE TABLE text.
func describeTable(ctx context.Context, db *sql.DB, name string) (TableSchema, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
	if err != nil {
		return TableSchema{}, fmt.Errorf("describe table %s: %w", name, err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var (
			cid     int
			colName string
			colType string
			notNull int
			deflt   sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &deflt, &pk); err != nil {
			return TableSchema{}, fmt.Errorf("scan column of %s: %w", name, err)
		}

		line := fmt.Sprintf("  %s %s", colName, colType)
		if pk > 0 {
			line += " PRIMARY KEY"
		}
		if notNull != 0 {
			line += " NOT NULL"
		}
		if deflt.Valid {
			line += " DEFAULT " + deflt.String
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return TableSchema{}, fmt.Errorf("describe table %s: %w", name, err)
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (\n%s\n);", name, strings.Join(lines, ",\n"))
	return TableSchema{Name: name, DDL: ddl, ColumnCount: len(lines)}, nil
}
