// Package driftpoll is the Drift Poller: a ticker-driven background loop
// that periodically rescans every open case's alleged-copy URL, computes
// drift against its baseline, and broadcasts the resulting verdict over the
// live websocket feed. Adapted from the engine's original mempool poller,
// which drove its own ticker-and-broadcast loop the same way.
package driftpoll

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/templateguard/simengine/pkg/models"
)

// Rescanner performs one case's rescan: fetch the alleged copy fresh,
// re-fingerprint it, compare against the original, and compute drift
// against the stored baseline, returning the record ready to append.
type Rescanner interface {
	RescanCase(ctx context.Context, baseline models.CaseBaseline) (models.RescanRecord, error)
}

// CaseSource enumerates the cases due for polling.
type CaseSource interface {
	ListCaseIDs(ctx context.Context) ([]string, error)
	GetCaseBaseline(ctx context.Context, caseID string) (models.CaseBaseline, error)
	AppendRescan(ctx context.Context, record models.RescanRecord) error
}

// Broadcaster pushes a rescan result to connected clients. A nil
// Broadcaster is valid — the poller simply runs without live updates.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Poller runs one rescan pass over every open case on each tick.
type Poller struct {
	source    CaseSource
	rescanner Rescanner
	broadcast Broadcaster
	logger    *zap.Logger
	interval  time.Duration
}

// New builds a Poller. interval governs a single sweep over every open case,
// not a per-case schedule — cases are cheap enough to check in a batch that
// per-case scheduling isn't warranted.
func New(source CaseSource, rescanner Rescanner, broadcast Broadcaster, logger *zap.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Poller{source: source, rescanner: rescanner, broadcast: broadcast, logger: logger, interval: interval}
}

// rescanPayload is the websocket broadcast shape; kept local to this
// package since it is a transport detail, not a domain type.
type rescanPayload struct {
	Type   string              `json:"type"`
	CaseID string              `json:"caseId"`
	Record models.RescanRecord `json:"record"`
}

// Run blocks, rescanning every open case once per tick until ctx is
// cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("drift poller starting", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("drift poller stopping")
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	caseIDs, err := p.source.ListCaseIDs(ctx)
	if err != nil {
		p.logger.Error("drift poller: failed to list open cases", zap.Error(err))
		return
	}

	for _, caseID := range caseIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		baseline, err := p.source.GetCaseBaseline(ctx, caseID)
		if err != nil {
			p.logger.Warn("drift poller: failed to load baseline", zap.String("case_id", caseID), zap.Error(err))
			continue
		}

		record, err := p.rescanner.RescanCase(ctx, baseline)
		if err != nil {
			p.logger.Warn("drift poller: rescan failed", zap.String("case_id", caseID), zap.Error(err))
			continue
		}

		if err := p.source.AppendRescan(ctx, record); err != nil {
			p.logger.Error("drift poller: failed to append rescan", zap.String("case_id", caseID), zap.Error(err))
			continue
		}

		p.broadcastResult(caseID, record)
	}
}

func (p *Poller) broadcastResult(caseID string, record models.RescanRecord) {
	if p.broadcast == nil {
		return
	}
	payload, err := json.Marshal(rescanPayload{Type: "rescan_result", CaseID: caseID, Record: record})
	if err != nil {
		p.logger.Warn("drift poller: failed to marshal broadcast payload", zap.Error(err))
		return
	}
	p.broadcast.Broadcast(payload)
}
