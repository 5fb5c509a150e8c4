package querycache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "stayfinder:query:"

// RedisStore keeps query entries in Redis so several gateway replicas
// share one cache. Entries expire after ttl (0 disables expiry).
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed query cache.
func NewRedisStore(addr, password string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return Entry{}, false, err
	}
	if len(fields) == 0 {
		return Entry{}, false, nil
	}
	entry := Entry{
		Key:   key,
		Data:  json.RawMessage(fields["data"]),
		Stale: fields["stale"] == "1",
	}
	if raw, ok := fields["updatedAt"]; ok {
		if nanos, err := strconv.ParseInt(raw, 10, 64); err == nil {
			entry.UpdatedAt = time.Unix(0, nanos).UTC()
		}
	}
	return entry, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, data json.RawMessage) error {
	redisKey := redisKeyPrefix + key
	err := s.client.HSet(ctx, redisKey, map[string]any{
		"data":      string(data),
		"stale":     "0",
		"updatedAt": strconv.FormatInt(time.Now().UTC().UnixNano(), 10),
	}).Err()
	if err != nil {
		return err
	}
	if s.ttl > 0 {
		return s.client.Expire(ctx, redisKey, s.ttl).Err()
	}
	return nil
}

func (s *RedisStore) Invalidate(ctx context.Context, key string) error {
	redisKey := redisKeyPrefix + key
	exists, err := s.client.Exists(ctx, redisKey).Result()
	if err != nil || exists == 0 {
		return err
	}
	return s.client.HSet(ctx, redisKey, "stale", "1").Err()
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}
