package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zgsm-ai/chat-proxy/internal/config"
	"github.com/zgsm-ai/chat-proxy/internal/types"
)

// ErrStatusNotFound is returned when no tool status exists for a request
var ErrStatusNotFound = errors.New("tool status not found")

// RedisInterface is the tool status store
type RedisInterface interface {
	// SetToolStatus records the status of one tool for a request
	SetToolStatus(ctx context.Context, requestID, tool string, status types.ToolStatus) error
	// GetHash returns every tool status recorded for a request
	GetHash(ctx context.Context, requestID string) (map[string]string, error)
	Close() error
}

// RedisClient keeps tool status in a tool_status:<requestID> hash
type RedisClient struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisClient(c config.RedisConfig) *RedisClient {
	return &RedisClient{
		rdb: redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		}),
		ttl: c.StatusTTL,
	}
}

func statusKey(requestID string) string {
	return types.ToolStatusRedisKeyPrefix + requestID
}

func (c *RedisClient) SetToolStatus(ctx context.Context, requestID, tool string, status types.ToolStatus) error {
	key := statusKey(requestID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, tool, string(status))
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set tool status %s/%s: %w", requestID, tool, err)
	}
	return nil
}

func (c *RedisClient) GetHash(ctx context.Context, requestID string) (map[string]string, error) {
	fields, err := c.rdb.HGetAll(ctx, statusKey(requestID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get tool status %s: %w", requestID, err)
	}
	if len(fields) == 0 {
		return nil, ErrStatusNotFound
	}
	return fields, nil
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

// NoopStatusStore is used when redis is not configured
type NoopStatusStore struct{}

func (NoopStatusStore) SetToolStatus(context.Context, string, string, types.ToolStatus) error {
	return nil
}

func (NoopStatusStore) GetHash(context.Context, string) (map[string]string, error) {
	return nil, ErrStatusNotFound
}

func (NoopStatusStore) Close() error { return nil }
