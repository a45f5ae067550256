// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/datatypes"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// doJSON runs one request against the datakeeper service and decodes
// the JSON response into out (when out is non-nil). Non-2xx responses
// become errors carrying the server's error message.
func doJSON(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			return fmt.Errorf("%s %s: %s (%d)", method, path, errBody.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// pollTask follows a queued task until it reaches a terminal status,
// printing progress transitions along the way.
func pollTask(taskID string) (*datatypes.TaskStatusResponse, error) {
	var lastProgress = -1
	for {
		var status datatypes.TaskStatusResponse
		if err := doJSON(http.MethodGet, "/v1/tasks/"+taskID, nil, &status); err != nil {
			return nil, err
		}
		if status.Progress != lastProgress {
			fmt.Printf("  [%3d%%] %s\n", status.Progress, status.Message)
			lastProgress = status.Progress
		}
		switch status.Status {
		case "completed":
			return &status, nil
		case "failed":
			return &status, fmt.Errorf("task failed: %s", status.Message)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(data))
}
