// Package backfill is the Backfill Runner: a
// caller-driven reindex pass over every stored template, refetching and
// re-fingerprinting each one so a config change (new pattern table, new
// sketch dimension) propagates to already-indexed templates without a
// one-off migration script. Adapted from the engine's original block
// scanner, which walked a numeric range the same cooperative way.
package backfill

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/templateguard/simengine/pkg/models"
)

// Indexer is the subset of the indexing pipeline (Fetcher + Fingerprinter +
// Store) the runner needs for one template. indexing.Engine implements it
// (ReindexTemplate) and cmd/engine passes one in, keeping this package free
// of a dependency on every concrete collaborator type.
type Indexer interface {
	ReindexTemplate(ctx context.Context, tmpl models.Template) error
}

// PageSource supplies one page of stored templates at a time.
type PageSource interface {
	ListTemplatesPage(ctx context.Context, limit, offset int) ([]models.Template, error)
	CountTemplates(ctx context.Context) (int, error)
}

// Progress reports the runner's current state for the API's /health
// endpoint and simctl's progress output.
type Progress struct {
	IsRunning      bool
	TotalTemplates int64
	Reindexed      int64
	Failed         int64
}

// Runner drives one backfill pass at a time; a second call to Run while one
// is already in flight is a no-op rather than a queued second pass, since
// reindexing an already-reindexing corpus offers nothing.
type Runner struct {
	source  PageSource
	indexer Indexer
	logger  *zap.Logger

	pageSize int

	isRunning atomic.Bool
	total     atomic.Int64
	reindexed atomic.Int64
	failed    atomic.Int64
}

// New builds a Runner with the given page size.
func New(source PageSource, indexer Indexer, logger *zap.Logger, pageSize int) *Runner {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Runner{source: source, indexer: indexer, logger: logger, pageSize: pageSize}
}

// Progress returns the runner's current state.
func (r *Runner) Progress() Progress {
	return Progress{
		IsRunning:      r.isRunning.Load(),
		TotalTemplates: r.total.Load(),
		Reindexed:      r.reindexed.Load(),
		Failed:         r.failed.Load(),
	}
}

// Run walks every stored template page by page, reindexing each one, until
// either the corpus is exhausted or ctx is cancelled. It returns
// immediately if a run is already in progress.
func (r *Runner) Run(ctx context.Context) {
	if !r.isRunning.CompareAndSwap(false, true) {
		r.logger.Warn("backfill already in progress, ignoring duplicate request")
		return
	}
	defer r.isRunning.Store(false)

	total, err := r.source.CountTemplates(ctx)
	if err != nil {
		r.logger.Error("backfill: failed to count templates", zap.Error(err))
		return
	}
	r.total.Store(int64(total))
	r.reindexed.Store(0)
	r.failed.Store(0)

	r.logger.Info("backfill starting", zap.Int("total_templates", total), zap.Int("page_size", r.pageSize))
	start := time.Now()

	offset := 0
	for {
		select {
		case <-ctx.Done():
			r.logger.Warn("backfill cancelled", zap.Int("reindexed", int(r.reindexed.Load())))
			return
		default:
		}

		page, err := r.source.ListTemplatesPage(ctx, r.pageSize, offset)
		if err != nil {
			r.logger.Error("backfill: failed to list template page", zap.Int("offset", offset), zap.Error(err))
			return
		}
		if len(page) == 0 {
			break
		}

		for _, tmpl := range page {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := r.indexer.ReindexTemplate(ctx, tmpl); err != nil {
				r.failed.Add(1)
				r.logger.Warn("backfill: reindex failed", zap.String("template_id", tmpl.ID), zap.Error(err))
				continue
			}
			r.reindexed.Add(1)
		}

		offset += len(page)
		r.logger.Info("backfill progress", zap.Int("reindexed", int(r.reindexed.Load())), zap.Int("failed", int(r.failed.Load())), zap.Int("total", total))
	}

	r.logger.Info("backfill complete",
		zap.Int("reindexed", int(r.reindexed.Load())),
		zap.Int("failed", int(r.failed.Load())),
		zap.Duration("elapsed", time.Since(start)))
}
