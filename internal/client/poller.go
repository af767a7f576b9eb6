package client

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval is how often the health endpoint is checked.
const DefaultPollInterval = 5 * time.Second

// HealthUpdate is one observation of the service's health. Err is non-nil
// when the check itself failed (service unreachable).
type HealthUpdate struct {
	Status *HealthStatus
	Err    error
}

// Poller periodically checks the extraction service's health and pushes
// observations to a channel, for status bars and watch modes.
type Poller struct {
	client   *Client
	interval time.Duration
	log      *slog.Logger
}

// NewPoller creates a health poller. A zero interval uses the default.
func NewPoller(c *Client, interval time.Duration, log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{client: c, interval: interval, log: log}
}

// Watch polls until the context is cancelled, emitting one update
// immediately and then one per interval. The returned channel is closed
// when polling stops.
func (p *Poller) Watch(ctx context.Context) <-chan HealthUpdate {
	updates := make(chan HealthUpdate, 1)

	go func() {
		defer close(updates)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.check(ctx, updates)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.check(ctx, updates)
			}
		}
	}()

	return updates
}

func (p *Poller) check(ctx context.Context, updates chan<- HealthUpdate) {
	checkCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	status, err := p.client.Health(checkCtx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.log.Debug("health check failed", "error", err)
	}

	select {
	case updates <- HealthUpdate{Status: status, Err: err}:
	case <-ctx.Done():
	}
}
