package redisstate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// StateRepository caches per-room presence counters and rate-limit
// buckets in Redis. The durable presence record lives in
// agent_session (MySQL); this cache exists so the hub and HTTP
// middleware don't hit the database on every message.
type StateRepository struct {
	client    *redis.Client
	keyPrefix string
}

func NewStateRepository(client *redis.Client, keyPrefix string) *StateRepository {
	if client == nil {
		panic("redis client cannot be nil for StateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "event:"
	}
	return &StateRepository{client: client, keyPrefix: keyPrefix}
}

func (r *StateRepository) roomPresenceKey(roomID uuid.UUID) string {
	return fmt.Sprintf("%sroom:%s:presence", r.keyPrefix, roomID)
}

func (r *StateRepository) roomEventsChannel(roomID uuid.UUID) string {
	return fmt.Sprintf("%sroom:%s:events", r.keyPrefix, roomID)
}

func (r *StateRepository) audienceEventsChannel(audience string) string {
	return fmt.Sprintf("%saudience:%s:events", r.keyPrefix, audience)
}

func (r *StateRepository) rateLimitKey(scope string) string {
	return fmt.Sprintf("%srate:%s", r.keyPrefix, scope)
}

// MarkPresent records agentID as present in roomID for ttl, refreshed
// on every incoming message so a crashed client's presence expires on
// its own instead of needing an explicit leave.
func (r *StateRepository) MarkPresent(ctx context.Context, roomID uuid.UUID, agentID string, ttl time.Duration) error {
	key := r.roomPresenceKey(roomID)
	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, key, agentID)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mark %s present in room %s: %w", agentID, roomID, err)
	}
	return nil
}

func (r *StateRepository) ClearPresent(ctx context.Context, roomID uuid.UUID, agentID string) error {
	if err := r.client.SRem(ctx, r.roomPresenceKey(roomID), agentID).Err(); err != nil {
		return fmt.Errorf("redis: clear presence for %s in room %s: %w", agentID, roomID, err)
	}
	return nil
}

func (r *StateRepository) PresentAgents(ctx context.Context, roomID uuid.UUID) ([]string, error) {
	agents, err := r.client.SMembers(ctx, r.roomPresenceKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list present agents in room %s: %w", roomID, err)
	}
	return agents, nil
}

// PublishRoomEvent fans a new event out on the room's topic, standing
// in for the rooms/{room_id}/events broadcast target of spec.md §6.
func (r *StateRepository) PublishRoomEvent(ctx context.Context, roomID uuid.UUID, payload []byte) error {
	if err := r.client.Publish(ctx, r.roomEventsChannel(roomID), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish event to room %s: %w", roomID, err)
	}
	return nil
}

// PublishAudienceEvent fans a new event out on the audience's topic,
// standing in for audiences/{audience}/events.
func (r *StateRepository) PublishAudienceEvent(ctx context.Context, audience string, payload []byte) error {
	if err := r.client.Publish(ctx, r.audienceEventsChannel(audience), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish event to audience %s: %w", audience, err)
	}
	return nil
}

func (r *StateRepository) SubscribeRoom(ctx context.Context, roomID uuid.UUID) *redis.PubSub {
	return r.client.Subscribe(ctx, r.roomEventsChannel(roomID))
}

func (r *StateRepository) SubscribeAudience(ctx context.Context, audience string) *redis.PubSub {
	return r.client.Subscribe(ctx, r.audienceEventsChannel(audience))
}

// CheckRateLimit atomically increments scope's counter and reports
// whether it has crossed limit within duration, the same
// incr-then-expire pipeline pattern the middleware layer already
// applies per-request.
func (r *StateRepository) CheckRateLimit(ctx context.Context, scope string, limit int, duration time.Duration) (bool, error) {
	key := r.rateLimitKey(scope)
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, duration)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: rate limit check for %s: %w", scope, err)
	}
	count, err := incr.Result()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit incr result for %s: %w", scope, err)
	}
	return count > int64(limit), nil
}
