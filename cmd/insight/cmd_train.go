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
	"net/url"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/datatypes"
)

var deleteConfirmed bool // --yes on collections delete

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Extract the analytical schema and re-train the vector index",
	RunE: func(cmd *cobra.Command, args []string) error {
		var queued datatypes.QueuedResponse
		if err := doJSON(http.MethodPost, "/v1/training", struct{}{}, &queued); err != nil {
			return err
		}
		fmt.Println("Training queued:", queued.TaskID)
		status, err := pollTask(queued.TaskID)
		if err != nil {
			return err
		}
		fmt.Println("Training complete.")
		printJSON(status.Result)
		return nil
	},
}

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Inspect and manage vector index collections",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Summarize every collection (name, count, vectorizer)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Collections []datatypes.CollectionInfo `json:"collections"`
		}
		if err := doJSON(http.MethodGet, "/v1/collections", nil, &out); err != nil {
			return err
		}
		if len(out.Collections) == 0 {
			fmt.Println("No collections found.")
			return nil
		}
		for _, c := range out.Collections {
			fmt.Printf("%-30s %8d objects  %s\n", c.Name, c.Count, c.Vectorizer)
		}
		return nil
	},
}

var collectionsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Drop a collection and everything in it (destructive)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !deleteConfirmed {
			return fmt.Errorf("deleting a collection is irreversible; re-run with --yes to confirm")
		}
		path := "/v1/collections/" + url.PathEscape(args[0]) + "?confirm=true"
		if err := doJSON(http.MethodDelete, path, nil, nil); err != nil {
			return err
		}
		fmt.Println("Deleted collection", args[0])
		return nil
	},
}

func init() {
	collectionsDeleteCmd.Flags().BoolVar(&deleteConfirmed, "yes", false,
		"Confirm the irreversible collection delete")

	collectionsCmd.AddCommand(collectionsListCmd)
	collectionsCmd.AddCommand(collectionsDeleteCmd)
}
