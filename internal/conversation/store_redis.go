package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore keeps conversation state in Redis with a TTL equal to the idle
// threshold, so eviction happens via key expiry instead of the sweeper.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed conversation store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("karibu.internal.conversation.store"),
	}
}

func redisStateKey(orgID, phone string) string {
	return fmt.Sprintf("conversation:%s:%s", orgID, phone)
}

// GetOrCreate loads the state for a phone number, creating a fresh one when
// the key is missing or expired.
func (s *RedisStore) GetOrCreate(ctx context.Context, orgID, phone string) (*ConversationState, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.store.get")
	defer span.End()

	data, err := s.redis.Get(ctx, redisStateKey(orgID, phone)).Bytes()
	if err == redis.Nil {
		return &ConversationState{
			OrgID:        orgID,
			PhoneNumber:  phone,
			LastActivity: time.Now().UTC(),
		}, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load state: %w", err)
	}

	var state ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return &state, nil
}

// Save persists the state and refreshes the idle TTL.
func (s *RedisStore) Save(ctx context.Context, state *ConversationState) error {
	ctx, span := s.tracer.Start(ctx, "conversation.store.save")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	key := redisStateKey(state.OrgID, state.PhoneNumber)
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

// Delete removes the state for a phone number.
func (s *RedisStore) Delete(ctx context.Context, orgID, phone string) error {
	if err := s.redis.Del(ctx, redisStateKey(orgID, phone)).Err(); err != nil {
		return fmt.Errorf("conversation: failed to delete state: %w", err)
	}
	return nil
}

// Count reports how many conversation keys are live.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	var count int
	iter := s.redis.Scan(ctx, 0, "conversation:*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("conversation: failed to scan states: %w", err)
	}
	return count, nil
}
