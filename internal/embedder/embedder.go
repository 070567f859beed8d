package embedder

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

// Embedder projects text into a fixed-dimension vector space.
type Embedder interface {
	// Embed generates a vector for a single text. Empty text is an error.
	Embed(text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts. Inputs are validated
	// up front; one empty text fails the whole batch.
	EmbedBatch(texts []string) ([][]float32, error)

	// Dimension returns the output vector length.
	Dimension() int

	// ID identifies the embedding scheme; vectors from different IDs are
	// not comparable.
	ID() string

	// IsSemantic reports whether the embedder captures meaning rather than
	// lexical overlap.
	IsSemantic() bool
}

// Cache provides in-memory LRU caching of vectors by content hash.
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
		// Unreachable with a positive size.
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a deep copy of a cached vector. Returning a copy keeps
// caller mutations out of the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a vector; LRU eviction happens automatically at capacity.
func (c *Cache) Set(hash string, vec []float32) {
	c.cache.Add(hash, vec)
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

// validateBatch rejects a batch containing any empty text before any work
// is done, so a batch either fully succeeds or fully fails.
func validateBatch(texts []string) error {
	for _, t := range texts {
		if t == "" {
			return types.ErrEmptyText
		}
	}
	return nil
}
