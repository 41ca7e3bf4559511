package stream

import (
	"context"
	"time"

	"github.com/vasanthk84/oi-analyzer/models"
	"go.uber.org/zap"
)

const defaultPollInterval = 5 * time.Second

// PositionsFetcher is satisfied by the router
type PositionsFetcher interface {
	FetchPositions(ctx context.Context) (models.PositionsSnapshot, error)
}

// Poller fetches positions on a fixed cadence and broadcasts every result.
// Fetches go through the router, so breaker, retry and cache fallback apply
// unchanged; the poller itself never special-cases a failure beyond logging.
type Poller struct {
	fetcher  PositionsFetcher
	hub      *Broadcaster
	logger   *zap.Logger
	interval time.Duration
}

// NewPoller creates a poller. Zero interval selects the 5s default.
func NewPoller(fetcher PositionsFetcher, hub *Broadcaster, logger *zap.Logger, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &Poller{
		fetcher:  fetcher,
		hub:      hub,
		logger:   logger,
		interval: interval,
	}
}

// Run polls until the context is cancelled. Every tick broadcasts whatever
// the fetch produced, degraded and empty snapshots included.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("started positions poller", zap.Duration("interval", p.interval))

	p.poll(ctx)
	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case <-ctx.Done():
			p.logger.Info("stopping positions poller")
			return
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	snapshot, err := p.fetcher.FetchPositions(ctx)
	if err != nil {
		p.logger.Warn("positions poll did not reach a live source",
			zap.String("source", string(snapshot.Source)),
			zap.Error(err))
	}
	p.hub.Broadcast(snapshot)
}
