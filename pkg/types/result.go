package types

// MatchType classifies how a query matched a document.
type MatchType string

const (
	// MatchExact means the hit came from an exact-phrase match.
	MatchExact MatchType = "exact"
	// MatchWildcard means the hit came from a prefix/wildcard match.
	MatchWildcard MatchType = "wildcard"
	// MatchFuzzy means the hit came from an edit-distance-tolerant match.
	MatchFuzzy MatchType = "fuzzy"
)

// SourceKind distinguishes where a session's data originated.
type SourceKind string

const (
	SourceLocal  SourceKind = "local"
	SourceRemote SourceKind = "remote"
)

// Provenance records which configured source a hit's data came from.
type Provenance struct {
	// Source is the configured source name, empty for implicit local data.
	Source string
	Kind   SourceKind
	// Host is the remote host for SourceRemote, empty otherwise.
	Host string
}

// Hit is one ranked search result.
type Hit struct {
	Title     string
	Agent     string
	Workspace string

	// Snippet is a bounded-length excerpt around the match.
	Snippet string

	// Content is the full message content; populated only when requested.
	Content string

	// Score is the ranking score; higher is better. Zero for recency-ordered
	// results from an empty query.
	Score float64

	SourcePath string

	// LineNo is the 1-based line of the first match within the message
	// content, 0 when not determined.
	LineNo int

	// MsgIdx is the message position within its conversation.
	MsgIdx int

	// CreatedAt is the message timestamp in epoch milliseconds, 0 if unknown.
	CreatedAt int64

	Match      MatchType
	Provenance Provenance
}
