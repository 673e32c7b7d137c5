// Package embedcache caches embeddings in Redis, keyed by model and text.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/a-h/vectorserver/store"
	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/embeddings"
)

func New(log *slog.Logger, client *redis.Client, model string, ttl time.Duration, next embeddings.Embedder) *Cache {
	return &Cache{
		log:    log,
		client: client,
		model:  model,
		ttl:    ttl,
		next:   next,
	}
}

// Cache is a read-through embeddings.Embedder. Redis failures are logged
// and the underlying embedder is used instead.
type Cache struct {
	log    *slog.Logger
	client *redis.Client
	model  string
	ttl    time.Duration
	next   embeddings.Embedder
}

func Key(model, text string) string {
	h := sha256.Sum256([]byte(text))
	return "embedding:" + model + ":" + hex.EncodeToString(h[:])
}

func (c *Cache) get(ctx context.Context, key string) (embedding []float32, ok bool) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("embedding cache get failed", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	embedding, err = store.DecodeEmbedding(b)
	if err != nil {
		c.log.Warn("embedding cache entry invalid", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return embedding, true
}

func (c *Cache) set(ctx context.Context, key string, embedding []float32) {
	if err := c.client.Set(ctx, key, store.EncodeEmbedding(embedding), c.ttl).Err(); err != nil {
		c.log.Warn("embedding cache set failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *Cache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := Key(c.model, text)
	if embedding, ok := c.get(ctx, key); ok {
		return embedding, nil
	}
	embedding, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, embedding)
	return embedding, nil
}

func (c *Cache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missingIndices []int
	var missingTexts []string
	for i, text := range texts {
		if embedding, ok := c.get(ctx, Key(c.model, text)); ok {
			result[i] = embedding
			continue
		}
		missingIndices = append(missingIndices, i)
		missingTexts = append(missingTexts, text)
	}
	if len(missingTexts) == 0 {
		return result, nil
	}
	embedded, err := c.next.EmbedDocuments(ctx, missingTexts)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missingTexts) {
		return nil, errors.New("embedcache: embedder returned the wrong number of embeddings")
	}
	for i, embedding := range embedded {
		result[missingIndices[i]] = embedding
		c.set(ctx, Key(c.model, missingTexts[i]), embedding)
	}
	return result, nil
}

var _ embeddings.Embedder = (*Cache)(nil)
