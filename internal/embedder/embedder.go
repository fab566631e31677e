package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	// ErrProvider marks a non-transient provider failure (auth, malformed
	// request) or a transient one that exhausted its retries.
	ErrProvider = errors.New("embedding provider failed")

	// ErrCountMismatch is returned when the provider returns a different
	// number of vectors than texts requested. It is a data-integrity fault
	// and is never padded or truncated away.
	ErrCountMismatch = errors.New("embedding count mismatch")

	// ErrDimensionMismatch is returned when a vector's length disagrees with
	// the configured model's expected dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrRateLimited and ErrTimeout classify transient provider failures
	// eligible for retry with backoff.
	ErrRateLimited = errors.New("embedding provider rate limited")
	ErrTimeout     = errors.New("embedding provider timeout")
)

// IsTransient reports whether an error is eligible for retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}

// Embedder converts batches of text into fixed-dimension vectors.
type Embedder interface {
	// EmbedTexts embeds texts in input order. Empty input returns an empty
	// result without contacting the provider. Inputs larger than the provider
	// batch ceiling are split into sequential sub-batches and results are
	// concatenated in original order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model identifier in use.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// DefaultDimensions returns the known-model dimension table. It is injected
// into clients at construction rather than consulted as a package global, so
// tests can substitute fixtures for unknown or future models. Unrecognized
// models skip dimension validation.
func DefaultDimensions() map[string]int {
	return map[string]int{
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// Cache provides in-memory LRU caching of embeddings keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Only possible with a non-positive size, which we just corrected.
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector so caller mutations cannot corrupt
// the cached value.
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a copy of the vector, evicting the least recently used entry
// when full. Copying on both sides keeps the cache isolated from callers
// that reuse or mutate their slices.
func (c *Cache) Set(hash string, vec []float32) {
	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.cache.Add(hash, stored)
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// ComputeHash computes the SHA-256 content hash used as the cache key.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
