package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cortexnotes/cortex/internal/backend"
)

const cacheKeyPrefix = "emb_cache:"

// KV is the consumer interface for the embedding cache store.
// Get returns (nil, nil) for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// cachedEntry is the stored cache payload.
type cachedEntry struct {
	Model  string    `json:"model"`
	Vector []float32 `json:"vector"`
}

// Cached is a decorator that caches embeddings in a key-value store.
// Cache failures are logged and degrade to the inner embedder; a broken
// cache must never fail an embed call.
type Cached struct {
	inner      Embedder
	store      KV
	keyPrefix  string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// NewCached creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss").
func NewCached(
	inner Embedder,
	store KV,
	keyPrefix string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Cached {
	return &Cached{
		inner:      inner,
		store:      store,
		keyPrefix:  keyPrefix + cacheKeyPrefix,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
func (c *Cached) Embed(ctx context.Context, text string) (backend.Embedding, error) {
	key := c.cacheKey(text)

	if emb, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return emb, nil
	}

	c.incCache("miss")

	emb, err := c.inner.Embed(ctx, text)
	if err != nil {
		return backend.Embedding{}, fmt.Errorf("embed text: %w", err)
	}

	c.putToCache(ctx, key, emb)
	return emb, nil
}

func (c *Cached) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *Cached) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.keyPrefix + hex.EncodeToString(h[:])
}

func (c *Cached) getFromCache(ctx context.Context, key string) (backend.Embedding, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		return backend.Embedding{}, false
	}
	if len(data) == 0 {
		return backend.Embedding{}, false
	}

	var entry cachedEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return backend.Embedding{}, false
	}
	if len(entry.Vector) == 0 {
		return backend.Embedding{}, false
	}

	return backend.Embedding{Vector: entry.Vector, Model: entry.Model}, true
}

func (c *Cached) putToCache(ctx context.Context, key string, emb backend.Embedding) {
	data, err := json.Marshal(cachedEntry{Model: emb.Model, Vector: emb.Vector})
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}
