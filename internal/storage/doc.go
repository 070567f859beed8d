// Package storage persists scanned conversations in SQLite.
//
// The relational store is the durable record of what has been scanned:
// agents, workspaces, conversation trees (messages plus extracted
// snippets), and free-form metadata. It also answers the per-agent
// high-water mark queries that drive incremental scans. The searchable
// FTS index lives in the index package; this store is the source of truth
// it can be rebuilt from.
//
// Two SQLite drivers are supported through build tags: mattn/go-sqlite3
// (cgo, cgo_sqlite tag) and modernc.org/sqlite (pure Go, the default).
// Schema changes go through ordered semver migrations recorded in the
// schema_version table.
package storage
