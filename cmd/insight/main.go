// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// The insight CLI administers a running datakeeper service over HTTP:
// backups, restores, training runs, collection inspection, and health.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "insight",
	Short: "Administer an AleutianInsight datakeeper service",
	Long: `insight talks to a running datakeeper service.

Examples:
  insight health                       # Probe every configured store
  insight backup create                # Take a full backup and wait for it
  insight backup list                  # Show the archive inventory
  insight backup restore <file> --yes  # Restore an archive (destructive)
  insight train                        # Re-train the vector index
  insight collections list             # Summarize vector index collections`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		"http://localhost:12300", "Base URL of the datakeeper service")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(collectionsCmd)
}
