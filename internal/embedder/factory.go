package embedder

import (
	"fmt"
	"os"
	"strings"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

// Embedder mode names accepted by the factory.
const (
	ModeHash = "hash"
)

// EnvEmbedder selects the embedding scheme.
const EnvEmbedder = "AGENTSEARCH_EMBEDDER"

// NewFromEnv creates an embedder based on the environment. Unset or "hash"
// yields the feature-hashing embedder; anything else is rejected rather
// than silently producing incompatible vectors.
func NewFromEnv() (Embedder, error) {
	mode := strings.ToLower(os.Getenv(EnvEmbedder))
	switch mode {
	case "", ModeHash:
		return NewDefaultHashEmbedder(NewCache(10000)), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", types.ErrInvalidInput, mode)
	}
}
