// Package poller periodically fetches a fresh snapshot from the gateway and
// fans it out to all subscribers.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/vhamers/smile-monitor/pkg/pubsub"
	"github.com/vhamers/smile-monitor/pkg/smile"
)

// Poller is the subscription surface offered to snapshot consumers.
type Poller interface {
	Subscribe() chan *smile.Snapshot
	Unsubscribe(ch chan *smile.Snapshot)
	Refresh()
}

// SmileUpdater is the part of the smile client the poller uses.
type SmileUpdater interface {
	Update(ctx context.Context) (*smile.Snapshot, error)
}

var _ Poller = &SmilePoller{}

// SmilePoller polls the gateway on a fixed interval, or on demand through
// Refresh. A failed poll is logged and the subscribers keep their previous
// snapshot.
type SmilePoller struct {
	Smile SmileUpdater
	*pubsub.Publisher[*smile.Snapshot]
	interval time.Duration
	logger   *slog.Logger
	refresh  chan struct{}
}

func New(client SmileUpdater, interval time.Duration, logger *slog.Logger) *SmilePoller {
	return &SmilePoller{
		Smile:     client,
		Publisher: pubsub.New[*smile.Snapshot](logger.With(slog.String("component", "registry"))),
		interval:  interval,
		logger:    logger,
		refresh:   make(chan struct{}),
	}
}

func (p *SmilePoller) Run(ctx context.Context) error {
	p.logger.Debug("started", slog.Duration("interval", p.interval))
	defer p.logger.Debug("stopped")

	// Poll immediately so subscribers don't wait a full interval for the
	// first snapshot.
	if err := p.poll(ctx); err != nil {
		p.logger.Error("failed to get gateway snapshot", slog.Any("err", err))
	}

	timer := time.NewTicker(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-p.refresh:
		}

		if err := p.poll(ctx); err != nil {
			p.logger.Error("failed to get gateway snapshot", slog.Any("err", err))
		}
	}
}

func (p *SmilePoller) Refresh() {
	p.refresh <- struct{}{}
}

func (p *SmilePoller) poll(ctx context.Context) error {
	start := time.Now()
	snapshot, err := p.Smile.Update(ctx)
	if err == nil {
		p.Publisher.Publish(snapshot)
		p.logger.Debug("poll completed", slog.Duration("duration", time.Since(start)))
	}
	return err
}
