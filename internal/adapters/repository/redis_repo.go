package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"woot-bridge/internal/core/ports"
)

// Ensure RedisRepository implements DedupRepository
var _ ports.DedupRepository = (*RedisRepository)(nil)

// RedisRepository implements webhook event deduplication using Redis.
// Chatwoot re-delivers webhooks on slow acknowledgements; processed message
// ids are cached with a TTL so re-deliveries are skipped.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository instance
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
	}
}

// IsDuplicate checks if an event ID has already been processed
func (r *RedisRepository) IsDuplicate(ctx context.Context, eventID string) (bool, error) {
	key := buildDedupKey(eventID)

	_, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// Key doesn't exist - not a duplicate
		return false, nil
	}
	if err != nil {
		slog.Error("Failed to check deduplication",
			"error", err,
			"event_id", eventID,
		)
		return false, fmt.Errorf("check duplicate: %w", err)
	}

	slog.Warn("Duplicate webhook event detected",
		"event_id", eventID,
		"key", key,
	)
	return true, nil
}

// MarkProcessed marks an event as processed in Redis with TTL
func (r *RedisRepository) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) error {
	key := buildDedupKey(eventID)

	// Value is timestamp for debugging purposes
	timestamp := time.Now().Unix()
	if err := r.client.Set(ctx, key, timestamp, ttl).Err(); err != nil {
		slog.Error("Failed to mark event as processed",
			"error", err,
			"event_id", eventID,
			"ttl", ttl,
		)
		return fmt.Errorf("mark processed: %w", err)
	}

	slog.Debug("Event marked as processed",
		"event_id", eventID,
		"key", key,
		"ttl", ttl,
	)
	return nil
}

// buildDedupKey constructs the Redis key for deduplication
func buildDedupKey(eventID string) string {
	return fmt.Sprintf("dedup:woot:%s", eventID)
}
