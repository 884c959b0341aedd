package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jaeuk-oh/Chatbot-redis-local/internal/model/chat"
)

// RedisConfig describes the connection used by RedisStore.
type RedisConfig struct {
	URL string
	// TTL is refreshed on every append. Zero keeps histories forever.
	TTL time.Duration
}

// RedisStore keeps each history as a Redis list of JSON-encoded turns.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the configured server and verifies it with PING.
// Commands are issued at most once; go-redis retries are disabled.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = -1

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return NewRedisStoreFromClient(client, cfg.TTL), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Resolve returns the history bound to key.
func (s *RedisStore) Resolve(key string) History {
	return &redisHistory{client: s.client, key: key, ttl: s.ttl}
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

type redisHistory struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func (h *redisHistory) Append(ctx context.Context, turns ...chat.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		values = append(values, data)
	}

	_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, h.key, values...)
		if h.ttl > 0 {
			pipe.Expire(ctx, h.key, h.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history %s: %w", h.key, err)
	}
	return nil
}

func (h *redisHistory) ReadAll(ctx context.Context) ([]chat.Turn, error) {
	raw, err := h.client.LRange(ctx, h.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", h.key, err)
	}

	turns := make([]chat.Turn, 0, len(raw))
	for i, item := range raw {
		var turn chat.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode history %s[%d]: %w", h.key, i, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (h *redisHistory) Clear(ctx context.Context) error {
	if err := h.client.Del(ctx, h.key).Err(); err != nil {
		return fmt.Errorf("clear history %s: %w", h.key, err)
	}
	return nil
}
