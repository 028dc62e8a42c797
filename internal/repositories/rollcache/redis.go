package rollcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/pkg/clock"
	"github.com/KirkDiggler/roll-sync/internal/platform"
)

const (
	// Key pattern: roll_cache:{entity_id}:{action}
	cacheKeyPrefix = "roll_cache:"

	errEntityIDEmpty = "entity ID cannot be empty"
	errActionEmpty   = "action cannot be empty"
	errEventNil      = "event cannot be nil"
)

// Config holds the configuration for the Redis repository
type Config struct {
	Client redis.UniversalClient
	Clock  clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	if c.Client == nil {
		return errors.InvalidArgument("redis client is required")
	}
	if c.Clock == nil {
		return errors.InvalidArgument("clock is required")
	}
	return nil
}

type redisRepository struct {
	client redis.UniversalClient
	clock  clock.Clock
}

// NewRedisRepository creates a new Redis repository for cached rolls
func NewRedisRepository(cfg *Config) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &redisRepository{
		client: cfg.Client,
		clock:  cfg.Clock,
	}, nil
}

// Ensure redisRepository implements Repository
var _ Repository = (*redisRepository)(nil)

type cacheRecord struct {
	Event      *platform.RollEvent `json:"event"`
	ReceivedAt int64               `json:"receivedAt"`
}

// Put stores a roll under (entityId, action) with the specified TTL
func (r *redisRepository) Put(ctx context.Context, input PutInput) error {
	if input.EntityID == "" {
		return errors.InvalidArgument(errEntityIDEmpty)
	}
	if input.Action == "" {
		return errors.InvalidArgument(errActionEmpty)
	}
	if input.Event == nil {
		return errors.InvalidArgument(errEventNil)
	}

	ttl := input.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	record := cacheRecord{
		Event:      input.Event,
		ReceivedAt: r.clock.Now().UnixMilli(),
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal cached roll")
	}

	key := buildKey(input.EntityID, input.Action)
	if err := r.client.Set(ctx, key, recordJSON, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to store cached roll in Redis")
	}
	return nil
}

// Take consumes a cached roll. Redis GETDEL makes retrieval and removal
// atomic, so two racing consumers cannot both observe the entry.
func (r *redisRepository) Take(ctx context.Context, input TakeInput) (*TakeOutput, error) {
	if input.EntityID == "" {
		return nil, errors.InvalidArgument(errEntityIDEmpty)
	}
	if input.Action == "" {
		return nil, errors.InvalidArgument(errActionEmpty)
	}

	key := buildKey(input.EntityID, input.Action)
	recordJSON, err := r.client.GetDel(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFound("no cached roll")
		}
		return nil, errors.Wrap(err, "failed to take cached roll from Redis")
	}

	var record cacheRecord
	if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal cached roll")
	}

	return &TakeOutput{
		Roll: &CachedRoll{
			Event:      record.Event,
			ReceivedAt: time.UnixMilli(record.ReceivedAt),
		},
	}, nil
}

// Has reports whether an unexpired entry exists
func (r *redisRepository) Has(ctx context.Context, input HasInput) (bool, error) {
	if input.EntityID == "" {
		return false, errors.InvalidArgument(errEntityIDEmpty)
	}
	if input.Action == "" {
		return false, errors.InvalidArgument(errActionEmpty)
	}

	n, err := r.client.Exists(ctx, buildKey(input.EntityID, input.Action)).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to probe cached roll in Redis")
	}
	return n > 0, nil
}

// Delete discards a cached roll
func (r *redisRepository) Delete(ctx context.Context, input DeleteInput) error {
	if input.EntityID == "" {
		return errors.InvalidArgument(errEntityIDEmpty)
	}
	if input.Action == "" {
		return errors.InvalidArgument(errActionEmpty)
	}

	if err := r.client.Del(ctx, buildKey(input.EntityID, input.Action)).Err(); err != nil {
		return errors.Wrap(err, "failed to delete cached roll from Redis")
	}
	return nil
}

// buildKey creates the Redis key for a cached roll
func buildKey(entityID, action string) string {
	return fmt.Sprintf("%s%s:%s", cacheKeyPrefix, entityID, action)
}
