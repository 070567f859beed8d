package types

import (
	"errors"
	"fmt"
)

// Structural errors surfaced to callers. Parsing-level failures inside
// connectors are recovered locally and never reach this taxonomy.
var (
	// ErrIndexMissing is returned when a query is made before any index
	// exists. Distinct from a query with zero results.
	ErrIndexMissing = errors.New("search index does not exist; run indexing first")

	// ErrSchemaIncompatible is returned when an index or database directory
	// holds a schema version this build cannot read.
	ErrSchemaIncompatible = errors.New("incompatible schema version")

	// ErrEmptyText is returned when an embedding is requested for literally
	// empty input.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInvalidInput is returned for malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// SourceError wraps a failure to open or read one physical store. The store's
// contribution to a scan is empty; sibling stores are unaffected.
type SourceError struct {
	Slug string // Connector slug
	Path string // Store path
	Op   string // "open", "read", "query"
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Slug, e.Op, e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// RecordError wraps a single malformed row or line. It is logged and skipped;
// the surrounding file continues.
type RecordError struct {
	Path string
	Line int // 1-based, 0 when not line-oriented
	Err  error
}

func (e *RecordError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("record %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("record %s: %v", e.Path, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
