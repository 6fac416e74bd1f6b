package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"
)

// GateConfig defines concurrency limits
type GateConfig struct {
	MaxConcurrentSearches int64
}

// SearchGate bounds how many searches hold upstream connections at once.
// Waiters are admitted in FIFO order.
type SearchGate struct {
	logger    *slog.Logger
	semaphore *semaphore.Weighted
	limit     int64
}

func NewSearchGate(logger *slog.Logger, cfg GateConfig) *SearchGate {
	// Default to 16 concurrent searches if not set
	limit := cfg.MaxConcurrentSearches
	if limit <= 0 {
		limit = 16
	}

	return &SearchGate{
		logger:    logger,
		semaphore: semaphore.NewWeighted(limit),
		limit:     limit,
	}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// func must be called exactly once.
func (g *SearchGate) Acquire(ctx context.Context) (func(), error) {
	if !g.semaphore.TryAcquire(1) {
		g.logger.Debug("search waiting for a slot", "limit", g.limit)
		if err := g.semaphore.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("wait for search slot: %w", err)
		}
	}
	searchesInFlight.Inc()

	return func() {
		searchesInFlight.Dec()
		g.semaphore.Release(1)
	}, nil
}

// Limit is the configured number of concurrent searches
func (g *SearchGate) Limit() int64 {
	return g.limit
}
