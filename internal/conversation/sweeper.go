package conversation

import (
	"context"
	"time"

	"github.com/karibuhq/karibu-ai-platform/internal/observability/metrics"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

// Sweeper periodically evicts idle conversations from a MemoryStore. A
// message arriving for an evicted phone number simply starts a fresh
// conversation.
type Sweeper struct {
	store    *MemoryStore
	ttl      time.Duration
	interval time.Duration
	logger   *logging.Logger
	metrics  *metrics.PipelineMetrics
}

// NewSweeper creates a sweeper for the given memory store.
func NewSweeper(store *MemoryStore, ttl, interval time.Duration, logger *logging.Logger, m *metrics.PipelineMetrics) *Sweeper {
	if store == nil {
		panic("conversation: sweeper requires a memory store")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{store: store, ttl: ttl, interval: interval, logger: logger, metrics: m}
}

// Run blocks until ctx is done, sweeping on every tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.store.SweepIdle(s.ttl)
			if removed > 0 {
				s.logger.Debug("swept idle conversations", "removed", removed)
			}
			if count, err := s.store.Count(ctx); err == nil {
				s.metrics.SetActiveConversations(count)
			}
		}
	}
}
