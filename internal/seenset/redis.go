package seenset

import (
	"context"
	"fmt"
	"time"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "salewatch:"

// RedisStore keeps a document as one hash: field = sale id, value = RFC3339 seen_at.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects using a redis:// URL.
func NewRedisStore(ctx context.Context, url, document string) (*RedisStore, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	if document == "" {
		return nil, fmt.Errorf("redis document name is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreFromClient(client, document), nil
}

func NewRedisStoreFromClient(client *redis.Client, document string) *RedisStore {
	return &RedisStore{client: client, key: redisKeyPrefix + document}
}

func (s *RedisStore) Load(ctx context.Context) (core.SeenSet, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	seen := make(core.SeenSet, len(fields))
	for id, raw := range fields {
		seenAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			// Presence is what matters; keep the key even if its timestamp is unreadable.
			seenAt = time.Time{}
		}
		seen[id] = seenAt
	}
	return seen, nil
}

func (s *RedisStore) Merge(ctx context.Context, delta core.SeenSet) error {
	if len(delta) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, seenAt := range delta {
			if id == "" {
				continue
			}
			if seenAt.IsZero() {
				seenAt = time.Now()
			}
			pipe.HSetNX(ctx, s.key, id, seenAt.UTC().Format(time.RFC3339Nano))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMerge, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
