// Package searcher answers ranked queries over the message index.
//
// Matching is tiered: an exact phrase match is preferred, then a per-token
// prefix match, then a fuzzy match that expands the query against the index
// vocabulary with a small edit-distance budget. Each hit is classified by
// the tier that produced it. An empty query is a valid request for the most
// recent messages. Text ranking uses BM25; the optional semantic mode blends
// in cosine similarity over stored hash-embedding vectors via Reciprocal
// Rank Fusion.
package searcher
