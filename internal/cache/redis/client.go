package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/theorygraph/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("embedding:%s", textHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("text_hash", textHash))
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("embedding:%s", textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	err = json.Unmarshal(data, &embedding)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true, nil
}

// SetResolution caches a canonicalization outcome for a raw name. Entries
// carry a TTL and are flushed whenever the dictionary grows, so a cached
// result never outlives the rules that produced it for long.
func (c *Client) SetResolution(ctx context.Context, kind, nameHash string, resolution interface{}, ttl time.Duration) error {
	data, err := json.Marshal(resolution)
	if err != nil {
		return fmt.Errorf("failed to marshal resolution: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("resolve:%s:%s", kind, nameHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set resolution cache: %w", err)
	}

	logger.Debug("Resolution cached", zap.String("kind", kind), zap.String("name_hash", nameHash))
	return nil
}

func (c *Client) GetResolution(ctx context.Context, kind, nameHash string, resolution interface{}) (bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("resolve:%s:%s", kind, nameHash)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get resolution cache: %w", err)
	}

	err = json.Unmarshal(data, resolution)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal resolution: %w", err)
	}

	logger.Debug("Resolution cache hit", zap.String("kind", kind), zap.String("name_hash", nameHash))
	return true, nil
}

// InvalidateResolutions drops every cached canonicalization result.
func (c *Client) InvalidateResolutions(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "resolve:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Resolution cache invalidated")
	return nil
}
