package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xhad/agentic/pkg/vecmath"
)

const cacheKeyPrefix = "agentic:emb:"

// EmbeddingCache keeps embedding vectors in Redis keyed by model and a hash
// of the text.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEmbeddingCache(client *redis.Client, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{client: client, ttl: ttl}
}

// DialEmbeddingCache connects to url and checks the connection.
func DialEmbeddingCache(ctx context.Context, url string, ttl time.Duration) (*EmbeddingCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewEmbeddingCache(client, ttl), nil
}

func (c *EmbeddingCache) GetMany(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = cacheKey(model, t)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		vec, err := vecmath.FromBytesLE([]byte(s))
		if err != nil {
			// corrupt entries count as misses and get overwritten
			continue
		}
		out[i] = vec
	}
	return out, nil
}

func (c *EmbeddingCache) SetMany(ctx context.Context, model string, texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts))
	}

	pipe := c.client.Pipeline()
	for i, t := range texts {
		pipe.Set(ctx, cacheKey(model, t), vecmath.ToBytesLE(vectors[i]), c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *EmbeddingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *EmbeddingCache) Close() error {
	return c.client.Close()
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + model + ":" + hex.EncodeToString(sum[:])
}
