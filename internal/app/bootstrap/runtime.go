// Package bootstrap wires shared infrastructure for the api and worker
// binaries.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/karibuhq/karibu-ai-platform/internal/config"
	"github.com/karibuhq/karibu-ai-platform/internal/conversation"
	"github.com/karibuhq/karibu-ai-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || !cfg.UseRedisStore || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, falling back to memory store", "error", err)
		return nil
	}
	return client
}

// BuildConversationStore picks the conversation state backend. Redis when
// configured and reachable, in-process memory otherwise. The second return
// is non-nil only for the memory store, which needs the expiry sweeper;
// Redis relies on key TTLs.
func BuildConversationStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.Store, *conversation.MemoryStore) {
	if client := BuildRedisClient(ctx, cfg, logger, true); client != nil {
		logger.Info("using redis conversation store", "addr", cfg.RedisAddr)
		return conversation.NewRedisStore(client, cfg.ConversationIdleTTL), nil
	}
	mem := conversation.NewMemoryStore()
	return mem, mem
}
