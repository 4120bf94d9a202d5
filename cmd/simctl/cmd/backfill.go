package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/templateguard/simengine/internal/backfill"
	"github.com/templateguard/simengine/internal/config"
	"github.com/templateguard/simengine/internal/fetch"
	"github.com/templateguard/simengine/internal/indexing"
	"github.com/templateguard/simengine/internal/obslog"
	"github.com/templateguard/simengine/internal/store"
)

var backfillPageSize int

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Reindex every stored template against the current config",
	Long:  "Drives the paged batch backfill to completion: every stored template is refetched and re-fingerprinted, so a pattern-table or sketch-dimension change propagates without a one-off migration script.",
	RunE:  runBackfill,
}

func init() {
	backfillCmd.Flags().IntVar(&backfillPageSize, "limit", 100, "templates reindexed per page")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	logger := obslog.Must(false)
	defer logger.Sync()

	cfg, err := config.Load(patternTablePath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	st, err := store.Connect(ctx, resolvedDatabaseURL(), logger)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer st.Close()

	engine := indexing.NewEngine(fetch.NewClient(logger), st, cfg, logger)
	runner := backfill.New(st, engine, logger, backfillPageSize)

	runner.Run(ctx)

	progress := runner.Progress()
	fmt.Printf("reindexed %d/%d templates (%d failed)\n", progress.Reindexed, progress.TotalTemplates, progress.Failed)
	return nil
}
