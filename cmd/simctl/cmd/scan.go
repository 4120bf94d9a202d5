package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/templateguard/simengine/internal/config"
	"github.com/templateguard/simengine/internal/fetch"
	"github.com/templateguard/simengine/internal/indexing"
	"github.com/templateguard/simengine/internal/obslog"
	"github.com/templateguard/simengine/internal/retriever"
	"github.com/templateguard/simengine/internal/store"
	"github.com/templateguard/simengine/pkg/models"
)

var scanThreshold float64

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Fingerprint a URL and report its closest indexed matches",
	Long:  "Performs an ad-hoc scan without standing up a server: fetches and fingerprints the given URL, then reports every indexed template at or above the candidate threshold. Useful for reporter-submitted URLs.",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().Float64Var(&scanThreshold, "threshold", 0, "override the configured candidate threshold")
}

func runScan(cmd *cobra.Command, args []string) error {
	logger := obslog.Must(false)
	defer logger.Sync()

	cfg, err := config.Load(patternTablePath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	threshold := scanThreshold
	if threshold <= 0 {
		threshold = cfg.CandidateThreshold
	}

	ctx := context.Background()
	st, err := store.Connect(ctx, resolvedDatabaseURL(), logger)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer st.Close()

	engine := indexing.NewEngine(fetch.NewClient(logger), st, cfg, logger)
	fp, err := engine.FingerprintPage(ctx, args[0])
	if err != nil {
		return fmt.Errorf("fingerprinting %s: %w", args[0], err)
	}

	retr := retriever.New(st, cfg.Bands, cfg.RowsPerBand, threshold)
	candidates, err := retr.FindCandidates(ctx, "", fp.Combined, "")
	if err != nil {
		return fmt.Errorf("finding candidates: %w", err)
	}

	if len(candidates) == 0 {
		fmt.Println("no candidates at or above threshold", threshold)
		return nil
	}

	for _, c := range candidates {
		fmt.Printf("%-40s jaccard=%.4f verdict=%s\n", c.TemplateID, c.Jaccard, models.VerdictForJaccard(c.Jaccard))
	}
	return nil
}
