package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mini-rodalies-3d/overlay/internal/logging"
	"github.com/mini-rodalies-3d/overlay/internal/realtime/vehicles"
)

// Poller fetches a source on a fixed interval and hands each batch to a sink
type Poller struct {
	source   Source
	interval time.Duration
	sink     func(context.Context, vehicles.Batch)
	logger   *slog.Logger
}

func NewPoller(source Source, interval time.Duration, sink func(context.Context, vehicles.Batch), logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{source: source, interval: interval, sink: sink, logger: logging.OrDefault(logger)}
}

// Run polls once immediately, then every interval until ctx is done
func (p *Poller) Run(ctx context.Context) {
	p.PollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.PollOnce(ctx)
		case <-ctx.Done():
			p.logger.Info("polling loop stopped")
			return
		}
	}
}

// PollOnce performs a single fetch. An empty feed is still delivered: it
// means every vehicle of the scope has gone.
func (p *Poller) PollOnce(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	start := time.Now()
	batch, err := p.source.Fetch(fetchCtx)
	switch {
	case errors.Is(err, ErrEmptyFeed):
		p.logger.Info("feed empty", slog.String("scope", batch.Scope))
	case err != nil:
		logging.LogError(p.logger, "poll failed", err)
		return
	}

	p.sink(ctx, batch)
	logging.LogOperation(p.logger, "feed_polled",
		slog.String("scope", batch.Scope),
		slog.Int("vehicles", len(batch.Samples)),
		slog.Duration("duration", time.Since(start)))
}
