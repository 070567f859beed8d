package types

import (
	"path/filepath"
	"sort"
	"strings"
)

// MaxTitleLen is the maximum length of a derived conversation title in runes.
// Longer titles are truncated with no added ellipsis.
const MaxTitleLen = 100

// Snippet is a code fragment extracted from a message.
type Snippet struct {
	FilePath  string // Optional: file the fragment came from
	StartLine int    // Optional: 1-based, 0 when unknown
	EndLine   int
	Language  string
	Text      string
}

// NormalizedMessage is a single message in canonical form. Every connector
// produces these regardless of how the source tool stores its sessions.
type NormalizedMessage struct {
	// Idx is the zero-based position within the owning conversation. It is
	// reassigned whenever the message set is filtered or reordered and never
	// carried over from source ordering.
	Idx int

	// Role is the free-form role string from the source; callers map it to
	// MessageRole when a closed enum is needed.
	Role string

	// Author is an optional author identifier, e.g. a model name.
	Author string

	// CreatedAt is an epoch-millisecond timestamp; 0 means unknown.
	CreatedAt int64

	// Content is the flattened plain text of the message. Tool invocations
	// are rendered inline as bracketed annotations.
	Content string

	// Extra captures source-specific fields for diagnostics. Its contents are
	// never consulted by business logic.
	Extra map[string]any

	// Snippets are code fragments extracted from the message, in order.
	Snippets []Snippet
}

// NormalizedConversation is the canonical conversation produced by connectors
// and consumed by storage and the index.
type NormalizedConversation struct {
	AgentSlug string

	// ExternalID is a connector-defined stable identifier used for
	// deduplication. Empty means unknown; such conversations are never
	// deduplicated.
	ExternalID string

	Title      string
	Workspace  string
	SourcePath string

	// StartedAt and EndedAt are the min/max message timestamps in epoch
	// milliseconds; 0 means unknown. Recomputed whenever the message set
	// changes.
	StartedAt int64
	EndedAt   int64

	// Metadata is an open structured bag of source-specific values.
	Metadata map[string]any

	Messages []NormalizedMessage
}

// Reindex reassigns message Idx values to the contiguous sequence 0..len-1.
// Call after any filter or reorder of Messages.
func (c *NormalizedConversation) Reindex() {
	for i := range c.Messages {
		c.Messages[i].Idx = i
	}
}

// SortMessages orders messages by ascending timestamp. Messages with an
// unknown timestamp sort last. The sort is stable so source order is kept
// for ties. Idx values are reassigned afterwards.
func (c *NormalizedConversation) SortMessages() {
	sort.SliceStable(c.Messages, func(i, j int) bool {
		return sortKey(c.Messages[i].CreatedAt) < sortKey(c.Messages[j].CreatedAt)
	})
	c.Reindex()
}

// sortKey maps an unknown timestamp to the maximum representable value so it
// sorts after every known one.
func sortKey(ts int64) int64 {
	if ts == 0 {
		return int64(^uint64(0) >> 1)
	}
	return ts
}

// RecomputeBounds recalculates StartedAt/EndedAt from the current message set.
// Messages with unknown timestamps are ignored; with no timestamped messages
// both bounds become 0.
func (c *NormalizedConversation) RecomputeBounds() {
	c.StartedAt = 0
	c.EndedAt = 0
	for _, m := range c.Messages {
		if m.CreatedAt == 0 {
			continue
		}
		if c.StartedAt == 0 || m.CreatedAt < c.StartedAt {
			c.StartedAt = m.CreatedAt
		}
		if m.CreatedAt > c.EndedAt {
			c.EndedAt = m.CreatedAt
		}
	}
}

// FilterSince drops every message whose timestamp is not strictly newer than
// since (messages with unknown timestamps are dropped too), then reindexes
// and recomputes the time bounds. since <= 0 is a no-op. Returns true when
// any messages remain; a conversation left empty must be discarded by the
// caller, never persisted or indexed.
func (c *NormalizedConversation) FilterSince(since int64) bool {
	if since <= 0 {
		return len(c.Messages) > 0
	}
	kept := c.Messages[:0]
	for _, m := range c.Messages {
		if m.CreatedAt > since {
			kept = append(kept, m)
		}
	}
	c.Messages = kept
	c.Reindex()
	c.RecomputeBounds()
	return len(c.Messages) > 0
}

// DeriveTitle fills Title when it is empty: first line of the earliest
// message, else the workspace directory name. The result is truncated to
// MaxTitleLen runes with no added ellipsis.
func (c *NormalizedConversation) DeriveTitle() {
	if c.Title == "" {
		if len(c.Messages) > 0 {
			first := strings.TrimSpace(c.Messages[0].Content)
			if i := strings.IndexByte(first, '\n'); i >= 0 {
				first = first[:i]
			}
			c.Title = strings.TrimSpace(first)
		}
	}
	if c.Title == "" && c.Workspace != "" {
		c.Title = filepath.Base(c.Workspace)
	}
	c.Title = TruncateTitle(c.Title)
}

// TruncateTitle enforces the MaxTitleLen invariant on a title string.
func TruncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= MaxTitleLen {
		return title
	}
	return string(runes[:MaxTitleLen])
}
