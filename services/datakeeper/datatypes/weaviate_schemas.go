// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the shared data shapes of the datakeeper:
// the Weaviate collection definitions and the API payloads exchanged
// with the excluded web layer.
package datatypes

import (
	"github.com/weaviate/weaviate/entities/models"
)

// TableSchemaCollection is the named collection holding one entry per
// analytical table, keyed deterministically by table name so repeated
// training runs update entries instead of duplicating them.
const TableSchemaCollection = "TableSchema"

// GetTableSchemaClass returns the Weaviate class for analytical table
// schemas. Vectorization is delegated to the index's configured
// vectorizer module; the datakeeper only supplies text.
func GetTableSchemaClass() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       TableSchemaCollection,
		Description: "Structural description of one analytical store table.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:         "ddl",
				DataType:     []string{"text"},
				Description:  "CREATE TABLE style structural description used for retrieval.",
				Tokenization: "word",
			},
			{
				Name:            "table_name",
				DataType:        []string{"text"},
				Description:     "The analytical table this entry describes.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "column_count",
				DataType:        []string{"int"},
				Description:     "Number of columns in the table.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "trained_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of the training run that wrote this entry.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}
