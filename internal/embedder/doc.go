// Package embedder projects message text into fixed-dimension vectors for
// semantic-style search.
//
// The default scheme is FNV-1a feature hashing: deterministic, offline, and
// instant, at the cost of capturing lexical overlap rather than true
// meaning. Vectors are L2-normalized so cosine similarity reduces to a dot
// product. An LRU cache keyed by content hash avoids re-embedding repeated
// text during indexing.
package embedder
