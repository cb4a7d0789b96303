package poller

import (
	"context"
	"github.com/stripesight/stripesight/internal/errors"
	"github.com/stripesight/stripesight/internal/investigation"
	"log/slog"
	"time"
)

// DefaultInterval is how often the snapshot endpoint is polled.
const DefaultInterval = 2 * time.Second

// SnapshotFetcher fetches the full phase-status snapshot for an investigation.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, investigationID string) (investigation.Snapshot, error)
}

// SnapshotApplier reconciles a fetched snapshot, typically the engine.
type SnapshotApplier interface {
	ApplySnapshot(investigationID string, snapshot investigation.Snapshot)
}

// Poller periodically fetches poll snapshots while an investigation is bound.
// Polling is the consistency fallback for phase status: it keeps working when
// the push channel is down, so a failed fetch is logged and retried on the
// next tick rather than treated as fatal.
type Poller struct {
	fetcher  SnapshotFetcher
	applier  SnapshotApplier
	interval time.Duration
	logger   *slog.Logger
}

func New(fetcher SnapshotFetcher, applier SnapshotApplier, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		fetcher:  fetcher,
		applier:  applier,
		interval: interval,
		logger:   logger.With("source", "Poller"),
	}
}

// Run polls until ctx is cancelled. The first fetch happens immediately so a
// fresh watch does not wait a full interval for its first state.
func (p *Poller) Run(ctx context.Context, investigationID string) {
	p.poll(ctx, investigationID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, investigationID)
		}
	}
}

func (p *Poller) poll(ctx context.Context, investigationID string) {
	snapshot, err := p.fetcher.Snapshot(ctx, investigationID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Transport failures never clear existing state; the next tick retries.
		p.logger.Debug("snapshot fetch failed",
			slog.String("investigation_id", investigationID),
			errors.SlogError(err))
		return
	}
	p.applier.ApplySnapshot(investigationID, snapshot)
}
