package main

import (
	"context"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/templateguard/simengine/internal/analyzer"
	"github.com/templateguard/simengine/internal/api"
	"github.com/templateguard/simengine/internal/backfill"
	"github.com/templateguard/simengine/internal/config"
	"github.com/templateguard/simengine/internal/driftpoll"
	"github.com/templateguard/simengine/internal/fetch"
	"github.com/templateguard/simengine/internal/indexing"
	"github.com/templateguard/simengine/internal/obslog"
	"github.com/templateguard/simengine/internal/store"
	"github.com/templateguard/simengine/pkg/models"
)

func main() {
	dev := os.Getenv("GIN_MODE") != "release"
	logger := obslog.Must(dev)
	defer logger.Sync()

	logger.Info("starting similarity engine")

	cfg, err := config.Load(os.Getenv("PATTERN_TABLE_PATH"))
	if err != nil {
		log.Fatalf("FATAL: invalid config: %v", err)
	}

	dbURL := requireEnv("DATABASE_URL")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Connect(ctx, dbURL, logger)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to Postgres: %v", err)
	}
	defer st.Close()

	if err := st.InitSchema(ctx); err != nil {
		log.Fatalf("FATAL: schema init failed: %v", err)
	}

	wsHub := api.NewHub(logger)
	go wsHub.Run()

	fetcher := fetch.NewClient(logger)
	engine := indexing.NewEngine(fetcher, st, cfg, logger)

	backfillRunner := backfill.New(st, engine, logger, 100)

	rescanner := &engineRescanner{engine: engine, store: st, cfg: cfg}
	poller := driftpoll.New(st, rescanner, wsHub, logger, driftPollInterval())
	go poller.Run(ctx)

	r := api.SetupRouter(engine, st, wsHub, backfillRunner, cfg, logger)

	port := cfg.Port
	if port == "" {
		port = getEnvOrDefault("PORT", "8080")
	}

	logger.Info("engine listening", zap.String("port", port))
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("FATAL: server exited: %v", err)
	}
}

// engineRescanner adapts indexing.Rescan to driftpoll.Rescanner's
// baseline-in-hand signature.
type engineRescanner struct {
	engine *indexing.Engine
	store  *store.Store
	cfg    config.Config
}

func (r *engineRescanner) RescanCase(ctx context.Context, baseline models.CaseBaseline) (models.RescanRecord, error) {
	thresholds := analyzer.DriftThresholds{
		ResolvedSimilarity:   r.cfg.DriftResolvedSimilarity,
		ResolvedMinimumDrift: r.cfg.DriftResolvedMinimumDrift,
		InsufficientMax:      r.cfg.DriftInsufficientMax,
	}
	return indexing.Rescan(ctx, r.engine, r.store, thresholds, baseline)
}

func driftPollInterval() time.Duration {
	if raw := os.Getenv("DRIFT_POLL_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return 6 * time.Hour
}

func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
