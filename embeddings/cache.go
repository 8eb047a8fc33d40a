package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/phuslu/log"
	"github.com/redis/go-redis/v9"
)

// Cache is the subset of a redis client the embedding cache needs.
type Cache interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

var _ Cache = (*redis.Client)(nil)

// CachedEmbedder memoizes vectors in redis. Embeddings are deterministic for
// a given model, so entries are keyed by model and text hash. Cache failures
// are logged and the wrapped embedder is used instead.
type CachedEmbedder struct {
	next   Embedder
	cache  Cache
	model  string
	ttl    time.Duration
	logger *log.Logger
}

func NewCachedEmbedder(next Embedder, cache Cache, model string, ttl time.Duration, logger *log.Logger) *CachedEmbedder {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &CachedEmbedder{
		next:   next,
		cache:  cache,
		model:  model,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.key(text)
	}

	results := make([][]float32, len(texts))
	missing := make([]int, 0, len(texts))

	values, err := c.cache.MGet(ctx, keys...).Result()
	if err != nil || len(values) != len(keys) {
		if err != nil {
			c.logger.Warn().Err(err).Msg("embedding cache read failed")
		}
		for i := range texts {
			missing = append(missing, i)
		}
	} else {
		for i, value := range values {
			raw, ok := value.(string)
			if !ok || len(raw) == 0 || len(raw)%4 != 0 {
				missing = append(missing, i)
				continue
			}
			results[i] = decodeVector([]byte(raw))
		}
	}

	if len(missing) == 0 {
		c.logger.Debug().Int("texts", len(texts)).Msg("embedding cache hit")
		return results, nil
	}

	pending := make([]string, len(missing))
	for i, idx := range missing {
		pending[i] = texts[idx]
	}

	computed, err := c.next.Embed(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(computed) != len(pending) {
		return nil, fmt.Errorf("embedding count mismatch: have %d texts, %d embeddings", len(pending), len(computed))
	}

	for i, idx := range missing {
		results[idx] = computed[i]
		if err := c.cache.Set(ctx, keys[idx], encodeVector(computed[i]), c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("key", keys[idx]).Msg("embedding cache write failed")
		}
	}

	c.logger.Debug().Int("texts", len(texts)).Int("misses", len(missing)).Msg("embedding cache lookup")
	return results, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.model + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeVector(b []byte) []float32 {
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec
}
