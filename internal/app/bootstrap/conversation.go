package bootstrap

import (
	appconfig "github.com/karibuhq/karibu-ai-platform/internal/config"
	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/internal/messaging"
	"github.com/karibuhq/karibu-ai-platform/internal/observability/metrics"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

// BuildEngine wires the conversation engine from the data layer.
func BuildEngine(cfg *appconfig.Config, dl *DataLayer, store conversation.Store, logger *logging.Logger, m *metrics.PipelineMetrics) *conversation.Engine {
	return conversation.NewEngine(
		store,
		dl.Bookings,
		dl.Catalog,
		dl.Tenants,
		logger,
		m,
		conversation.WithGeminiModel(cfg.GeminiModelID),
	)
}

// BuildWorker wires the queue consumer: engine, per-tenant outbound
// messenger, and optional archive.
func BuildWorker(cfg *appconfig.Config, engine *conversation.Engine, queue conversation.Queue, dl *DataLayer, logger *logging.Logger, m *metrics.PipelineMetrics) *conversation.Worker {
	messenger := messaging.NewTenantMessenger(dl.Tenants, cfg.WhatsAppProvider, logger)
	opts := []conversation.WorkerOption{
		conversation.WithPollerCount(cfg.WorkerCount),
		conversation.WithLaneCount(cfg.LaneCount),
		conversation.WithDispatchDelay(cfg.ReplyDispatchDelay),
	}
	if dl.Archive != nil {
		opts = append(opts, conversation.WithArchive(dl.Archive))
	}
	return conversation.NewWorker(engine, queue, messenger, logger, m, opts...)
}
