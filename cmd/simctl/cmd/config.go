package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/templateguard/simengine/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config utilities",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a config/pattern-table before a deploy",
	Long:  "Loads defaults, environment overrides, and the pattern table (if --pattern-table is set), then runs the same ConfigInvalid checks the engine runs at startup. Exits non-zero on any violation.",
	RunE:  runConfigCheck,
}

func init() {
	configCmd.AddCommand(configCheckCmd)
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(patternTablePath)
	if err != nil {
		return err
	}
	fmt.Printf("config OK: sketch_dimension=%d bands=%d rows_per_band=%d candidate_threshold=%.2f pattern_table_version=%d\n",
		cfg.SketchDimension, cfg.Bands, cfg.RowsPerBand, cfg.CandidateThreshold, cfg.Patterns.Version)
	return nil
}
