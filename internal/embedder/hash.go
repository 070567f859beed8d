package embedder

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

// FNV-1a 64-bit parameters.
const (
	fnvOffsetBasis uint64 = 0xcbf29ce484222325
	fnvPrime       uint64 = 0x100000001b3
)

// DefaultDimension matches MiniLM-class models so stored vectors stay
// interchangeable if a real model is swapped in later.
const DefaultDimension = 384

// minTokenLen filters noise tokens before hashing.
const minTokenLen = 2

// HashEmbedder is a deterministic FNV-1a feature-hashing embedder. Each
// token hashes to one dimension, with the hash's top bit choosing the sign
// of the contribution. It captures lexical overlap rather than meaning, but
// needs no model, no network, and no warm-up.
type HashEmbedder struct {
	dimension int
	id        string
	cache     *Cache
}

// NewHashEmbedder creates a hash embedder with the given dimension. Higher
// dimensions reduce hash collisions at the cost of storage. Panics if
// dimension is not positive. The cache may be nil.
func NewHashEmbedder(dimension int, cache *Cache) *HashEmbedder {
	if dimension <= 0 {
		panic("embedder: dimension must be positive")
	}
	return &HashEmbedder{
		dimension: dimension,
		id:        fmt.Sprintf("fnv1a-%d", dimension),
		cache:     cache,
	}
}

// NewDefaultHashEmbedder creates a hash embedder with DefaultDimension.
func NewDefaultHashEmbedder(cache *Cache) *HashEmbedder {
	return NewHashEmbedder(DefaultDimension, cache)
}

func (e *HashEmbedder) Embed(text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", types.ErrEmptyText)
	}

	var key string
	if e.cache != nil {
		key = ComputeHash(text)
		if vec, ok := e.cache.Get(key); ok {
			return vec, nil
		}
	}

	tokens := tokenize(text)
	var vec []float32
	if len(tokens) == 0 {
		// Everything filtered out (punctuation-only input). A uniform unit
		// vector keeps downstream cosine math NaN-free.
		vec = uniformVector(e.dimension)
	} else {
		vec = e.embedTokens(tokens)
	}

	if e.cache != nil {
		e.cache.Set(key, vec)
	}
	return vec, nil
}

func (e *HashEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *HashEmbedder) Dimension() int   { return e.dimension }
func (e *HashEmbedder) ID() string       { return e.id }
func (e *HashEmbedder) IsSemantic() bool { return false }

// embedTokens accumulates signed token contributions and normalizes.
func (e *HashEmbedder) embedTokens(tokens []string) []float32 {
	vec := make([]float32, e.dimension)
	for _, tok := range tokens {
		hash := fnv1a(tok)
		idx := int(hash % uint64(e.dimension))
		if hash>>63 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	l2Normalize(vec)
	return vec
}

// tokenize lowercases, splits on non-alphanumeric runes, and drops tokens
// shorter than minTokenLen.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// fnv1a computes the 64-bit FNV-1a hash of a token.
func fnv1a(s string) uint64 {
	hash := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= fnvPrime
	}
	return hash
}

// l2Normalize scales a vector to unit length in place. Zero vectors are
// left untouched.
func l2Normalize(vec []float32) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm <= math.SmallestNonzeroFloat64 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// uniformVector builds the already-normalized constant vector used when no
// tokens survive filtering.
func uniformVector(dim int) []float32 {
	v := float32(1.0 / math.Sqrt(float64(dim)))
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = v
	}
	return vec
}
