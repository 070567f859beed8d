package connector

import (
	"context"
	"sync"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

// Connector detects and scans one coding-assistant tool's on-disk session
// storage into the canonical model.
//
// Detect must be a cheap existence probe with no parsing. Scan creates fresh
// values on every invocation; connectors hold no persistent state between
// scans, so a single Connector value is safe to share across goroutines.
type Connector interface {
	// Slug is the stable agent identifier stamped on every conversation.
	Slug() string

	// Detect probes for the tool's data store without parsing anything.
	Detect() DetectionResult

	// Scan reads the tool's storage into canonical conversations. A store
	// that cannot be opened is logged and skipped; it never aborts the scan
	// of sibling stores. A single malformed record is skipped individually.
	Scan(ctx context.Context, sc ScanContext) ([]types.NormalizedConversation, error)
}

// ScanContext carries the per-run parameters threaded through a scan.
type ScanContext struct {
	// DataRoot overrides the connector's default storage locations when
	// non-empty. Used by tests and by remote-sync staging directories.
	DataRoot string

	// SinceTS is the high-water mark in epoch milliseconds. When > 0, only
	// messages with a strictly newer timestamp are emitted.
	SinceTS int64

	// Dedup is the shared identifier set for cross-store deduplication
	// within one run. May be nil, in which case no deduplication happens.
	Dedup *DedupSet
}

// DetectionResult reports whether a connector found its data store.
type DetectionResult struct {
	Detected bool
	Evidence []string
}

// NotFound is the DetectionResult for an absent data store.
func NotFound() DetectionResult {
	return DetectionResult{}
}

// DedupSet tracks (agent slug, external id) pairs seen during one scan run.
// It is the only shared mutable state in a multi-connector scan and is safe
// for concurrent use; each accepted conversation performs exactly one
// mutation.
type DedupSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDedupSet creates an empty deduplication set for one scan run.
func NewDedupSet() *DedupSet {
	return &DedupSet{seen: make(map[string]struct{})}
}

// Insert records the key and reports whether it was new. Conversations with
// an empty external id are always considered new: they are never deduplicated.
func (d *DedupSet) Insert(slug, externalID string) bool {
	if externalID == "" {
		return true
	}
	key := slug + ":" + externalID
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Len returns the number of recorded keys.
func (d *DedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// All returns every known connector. The order is stable and used for
// deterministic scan reporting.
func All() []Connector {
	return []Connector{
		NewAmpConnector(),
		NewClaudeCodeConnector(),
		NewCodexConnector(),
		NewGeminiConnector(),
		NewOpenCodeConnector(),
	}
}
