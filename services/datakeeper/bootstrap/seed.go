// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bootstrap

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/stores"
)

// demoRecord is one seeded system store entry.
type demoRecord struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// seedDemoData populates a brand-new system store with a handful of
// records so a first-run install has something to list, back up, and
// restore. Only called when the store is empty.
func seedDemoData(system *stores.SystemStore) error {
	now := time.Now().UTC()
	records := map[string]demoRecord{
		"notes/welcome": {
			Title:     "Welcome to AleutianInsight",
			Body:      "This record was seeded on first start. Delete it whenever you like.",
			Tags:      []string{"demo"},
			CreatedAt: now,
		},
		"notes/backups": {
			Title:     "Backups",
			Body:      "POST /v1/backups takes a point-in-time archive of every configured store.",
			Tags:      []string{"demo", "operations"},
			CreatedAt: now,
		},
		"notes/training": {
			Title:     "Vector index training",
			Body:      "POST /v1/training extracts the analytical schema and updates the TableSchema collection.",
			Tags:      []string{"demo", "operations"},
			CreatedAt: now,
		},
	}

	for key, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal demo record %s: %w", key, err)
		}
		if err := system.Put("demo/"+key, data); err != nil {
			return fmt.Errorf("seed demo record %s: %w", key, err)
		}
	}
	return nil
}
