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
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var healthJSONOutput bool // --json

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe every configured store on the datakeeper service",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Status string `json:"status"`
			Stores map[string]struct {
				State   string `json:"state"`
				Message string `json:"message"`
				Latency int64  `json:"latency_ns"`
			} `json:"stores"`
		}
		if err := doJSON(http.MethodGet, "/health", nil, &out); err != nil {
			return err
		}
		if healthJSONOutput {
			printJSON(out)
			return nil
		}

		fmt.Println("Overall:", out.Status)
		for kind, probe := range out.Stores {
			line := fmt.Sprintf("  %-12s %-12s %6.1fms", kind, probe.State,
				float64(probe.Latency)/1e6)
			if probe.Message != "" {
				line += "  " + probe.Message
			}
			fmt.Println(line)
		}
		if out.Status != "ok" {
			return fmt.Errorf("one or more stores are degraded")
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSONOutput, "json", false,
		"Output as JSON for scripting")
}
