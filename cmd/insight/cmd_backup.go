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

	"github.com/AleutianAI/AleutianInsight/services/datakeeper/datatypes"
)

var (
	restoreConfirmed bool // --yes on backup restore
	pruneRetention   int  // --keep on backup prune
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list, restore, prune, and verify backup archives",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Take a full backup and wait for it to finish",
	RunE: func(cmd *cobra.Command, args []string) error {
		var queued datatypes.QueuedResponse
		if err := doJSON(http.MethodPost, "/v1/backups", struct{}{}, &queued); err != nil {
			return err
		}
		fmt.Println("Backup queued:", queued.TaskID)
		status, err := pollTask(queued.TaskID)
		if err != nil {
			return err
		}
		fmt.Println("Backup complete.")
		printJSON(status.Result)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the archive inventory, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Backups []struct {
				Filename  string `json:"filename"`
				SizeBytes int64  `json:"size_bytes"`
				CreatedAt string `json:"created_at"`
			} `json:"backups"`
		}
		if err := doJSON(http.MethodGet, "/v1/backups", nil, &out); err != nil {
			return err
		}
		if len(out.Backups) == 0 {
			fmt.Println("No backup archives found.")
			return nil
		}
		for _, b := range out.Backups {
			fmt.Printf("%-55s %12d bytes  %s\n", b.Filename, b.SizeBytes, b.CreatedAt)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <filename>",
	Short: "Restore every store from an archive (destructive)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !restoreConfirmed {
			return fmt.Errorf("restore overwrites live data; re-run with --yes to confirm")
		}
		var queued datatypes.QueuedResponse
		req := datatypes.RestoreRequest{Filename: args[0], Confirm: true}
		if err := doJSON(http.MethodPost, "/v1/backups/restore", req, &queued); err != nil {
			return err
		}
		fmt.Println("Restore queued:", queued.TaskID)
		status, err := pollTask(queued.TaskID)
		if err != nil {
			return err
		}
		fmt.Println("Restore complete.")
		if status.Result != nil {
			printJSON(status.Result)
		}
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req datatypes.PruneRequest
		if cmd.Flags().Changed("keep") {
			req.Retention = &pruneRetention
		}
		var out struct {
			Retention int      `json:"retention"`
			Removed   []string `json:"removed"`
		}
		if err := doJSON(http.MethodPost, "/v1/backups/prune", req, &out); err != nil {
			return err
		}
		fmt.Printf("Kept the newest %d archives, removed %d.\n", out.Retention, len(out.Removed))
		for _, name := range out.Removed {
			fmt.Println("  removed", name)
		}
		return nil
	},
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <filename>",
	Short: "Check an archive's checksums without touching any store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var report struct {
			Valid    bool     `json:"valid"`
			Entries  int      `json:"entries"`
			Problems []string `json:"problems"`
		}
		if err := doJSON(http.MethodGet, "/v1/backups/"+args[0]+"/verify", nil, &report); err != nil {
			return err
		}
		if report.Valid {
			fmt.Printf("Archive is valid (%d entries).\n", report.Entries)
			return nil
		}
		fmt.Println("Archive FAILED verification:")
		for _, p := range report.Problems {
			fmt.Println("  -", p)
		}
		return fmt.Errorf("archive %s is not restorable", args[0])
	},
}

func init() {
	backupRestoreCmd.Flags().BoolVar(&restoreConfirmed, "yes", false,
		"Confirm that live store contents may be overwritten")
	backupPruneCmd.Flags().IntVar(&pruneRetention, "keep", 5,
		"How many of the newest archives to keep")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupPruneCmd)
	backupCmd.AddCommand(backupVerifyCmd)
}
