// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// QueuedResponse is returned when a long operation is accepted for
// background execution. Callers poll StatusURL for progress.
type QueuedResponse struct {
	Status    string `json:"status"`
	TaskID    string `json:"task_id"`
	StatusURL string `json:"status_url"`
}

// TaskStatusResponse is the pollable view of one background operation.
type TaskStatusResponse struct {
	TaskID   string      `json:"task_id"`
	Status   string      `json:"status"`
	Progress int         `json:"progress"`
	Message  string      `json:"message"`
	Result   interface{} `json:"result,omitempty"`
}

// RestoreRequest names the archive to restore and carries the explicit
// confirmation flag every destructive operation requires.
type RestoreRequest struct {
	Filename string `json:"filename" binding:"required"`
	Confirm  bool   `json:"confirm"`
}

// PruneRequest overrides the configured retention count for one prune.
type PruneRequest struct {
	Retention *int `json:"retention,omitempty"`
}

// CollectionInfo summarizes one vector index collection without
// transferring any embeddings.
type CollectionInfo struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	Description string `json:"description,omitempty"`
	Vectorizer  string `json:"vectorizer,omitempty"`
}
