package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.WhatsAppProvider)
	assert.Equal(t, time.Hour, cfg.ConversationIdleTTL)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, time.Duration(0), cfg.ReplyDispatchDelay)
	assert.Equal(t, 8, cfg.LaneCount)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModelID)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WHATSAPP_PROVIDER", "Meta")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("USE_MEMORY_QUEUE", "true")
	t.Setenv("CONVERSATION_IDLE_TTL", "30m")
	t.Setenv("REPLY_DISPATCH_DELAY", "15s")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "meta", cfg.WhatsAppProvider)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.True(t, cfg.UseMemoryQueue)
	assert.Equal(t, 30*time.Minute, cfg.ConversationIdleTTL)
	assert.Equal(t, 15*time.Second, cfg.ReplyDispatchDelay)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("WORKER_COUNT", "not-a-number")
	t.Setenv("USE_MEMORY_QUEUE", "maybe")
	t.Setenv("CONVERSATION_IDLE_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 2, cfg.WorkerCount)
	assert.False(t, cfg.UseMemoryQueue)
	assert.Equal(t, time.Hour, cfg.ConversationIdleTTL)
}
