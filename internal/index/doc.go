// Package index maintains the searchable full-text index over scanned
// messages.
//
// Each message becomes one FTS5 document carrying its conversation's agent,
// workspace, and title alongside the content. The index lives in a
// schema-versioned directory so incompatible layout changes start fresh
// instead of corrupting existing data. Writes go through a single Index
// value and become visible atomically on Commit; queries run against Reader
// snapshots. Hash-embedding vectors are stored next to the documents for
// the optional semantic blend.
package index
