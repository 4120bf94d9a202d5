// Package cmd holds simctl's cobra command tree: batch backfill, ad-hoc
// scans, and config validation against a running store, grounded on
// idlab-discover/AIBoMGen-cli's cobra command layout.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var patternTablePath string
var databaseURLFlag string

var rootCmd = &cobra.Command{
	Use:   "simctl",
	Short: "Operator CLI for the similarity engine",
	Long:  "simctl drives batch backfill, ad-hoc scans, and config validation against a running similarity engine store.",
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&patternTablePath, "pattern-table", "", "path to a versioned pattern table YAML (overrides the built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&databaseURLFlag, "database-url", "", "Postgres connection string (overrides SIMENGINE_DATABASE_URL)")

	rootCmd.AddCommand(backfillCmd, scanCmd, configCmd)
}

func resolvedDatabaseURL() string {
	if databaseURLFlag != "" {
		return databaseURLFlag
	}
	return os.Getenv("SIMENGINE_DATABASE_URL")
}
