package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTrackerKey is the key holding the serialized migration map
const DefaultRedisTrackerKey = "migrations"

// RedisTracker keeps a JSON object of migration name to applied flag under one key.
// Every update reads, mutates and writes back the whole object without a guard
// against concurrent writers.
type RedisTracker struct {
	client redis.Cmdable
	key    string
}

// NewRedisTracker creates a tracker stored under key
func NewRedisTracker(client redis.Cmdable, key string) *RedisTracker {
	if key == "" {
		key = DefaultRedisTrackerKey
	}
	return &RedisTracker{client: client, key: key}
}

// Init is a no-op; the key is created on the first recorded migration
func (t *RedisTracker) Init(ctx context.Context) error {
	return nil
}

// IsApplied reports whether version is present and true
func (t *RedisTracker) IsApplied(ctx context.Context, version string) (bool, error) {
	records, err := t.records(ctx)
	if err != nil {
		return false, err
	}
	return records[version], nil
}

// MarkApplied sets version to true and writes the whole map back
func (t *RedisTracker) MarkApplied(ctx context.Context, version string) error {
	records, err := t.records(ctx)
	if err != nil {
		return err
	}
	records[version] = true

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode migration records: %w", err)
	}
	return t.client.Set(ctx, t.key, data, 0).Err()
}

func (t *RedisTracker) records(ctx context.Context) (map[string]bool, error) {
	records := make(map[string]bool)
	raw, err := t.client.Get(ctx, t.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return records, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode migration records: %w", err)
	}
	// a stored JSON null decodes to a nil map
	if records == nil {
		records = make(map[string]bool)
	}
	return records, nil
}
