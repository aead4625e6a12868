package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper releases wizard sessions that have been idle for too long
type Sweeper interface {
	Sweep(ctx context.Context, idle time.Duration) int
}

// DraftExpirer removes drafts that were not written since cutoff
type DraftExpirer interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Cleaner handles periodic release of idle wizards and expiry of old drafts
type Cleaner struct {
	sweeper  Sweeper
	interval time.Duration
	idleTTL  time.Duration

	expirer  DraftExpirer
	draftTTL time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(sweeper Sweeper, interval, idleTTL time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}

	return &Cleaner{
		sweeper:  sweeper,
		interval: interval,
		idleTTL:  idleTTL,
	}
}

// WithDraftExpiry also deletes drafts older than ttl on every cycle.
// It is meant for stores without native expiry.
func (c *Cleaner) WithDraftExpiry(expirer DraftExpirer, ttl time.Duration) *Cleaner {
	if ttl > 0 {
		c.expirer = expirer
		c.draftTTL = ttl
	}
	return c
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "idle_ttl", c.idleTTL)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup runs one cycle
func (c *Cleaner) cleanup(ctx context.Context) {
	slog.Debug("running cleanup cycle")

	if released := c.sweeper.Sweep(ctx, c.idleTTL); released > 0 {
		slog.Info("released idle wizards", "count", released)
	}

	if c.expirer == nil {
		return
	}

	deleted, err := c.expirer.DeleteOlderThan(ctx, time.Now().Add(-c.draftTTL))
	if err != nil {
		slog.Error("failed to expire drafts", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("expired drafts deleted", "count", deleted)
	}
}
