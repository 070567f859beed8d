package searcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/agentsearch-mcp/internal/embedder"
	"github.com/dshills/agentsearch-mcp/internal/index"
	"github.com/dshills/agentsearch-mcp/pkg/types"
)

// buildIndex commits the given conversations into a fresh index and returns
// a searcher over it.
func buildIndex(t *testing.T, emb embedder.Embedder, convs ...*types.NormalizedConversation) *Searcher {
	t.Helper()
	ix, err := index.OpenOrCreate(t.TempDir(), emb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	for _, conv := range convs {
		ix.AddConversation(conv)
	}
	require.NoError(t, ix.Commit(context.Background()))
	return NewSearcher(ix.Reader(), emb, nil)
}

func conv(agent, title string, messages ...types.NormalizedMessage) *types.NormalizedConversation {
	for i := range messages {
		messages[i].Idx = i
	}
	return &types.NormalizedConversation{
		AgentSlug:  agent,
		ExternalID: title,
		Title:      title,
		Workspace:  "/home/u/proj",
		SourcePath: "/data/" + agent + "/" + title,
		StartedAt:  1000,
		Messages:   messages,
	}
}

func TestExactMatch(t *testing.T) {
	s := buildIndex(t, nil, conv("claude_code", "greeting",
		types.NormalizedMessage{Role: "user", CreatedAt: 1000, Content: "hello there"}))

	hits, err := s.Search(context.Background(), SearchRequest{Query: "hello"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, types.MatchExact, hits[0].Match)
	require.NotZero(t, hits[0].Score)
	require.Equal(t, "claude_code", hits[0].Agent)
	require.Equal(t, "greeting", hits[0].Title)
	require.Equal(t, types.SourceLocal, hits[0].Provenance.Kind)
}

func TestAbsentTermReturnsNoHitsNoError(t *testing.T) {
	s := buildIndex(t, nil, conv("claude_code", "greeting",
		types.NormalizedMessage{Role: "user", CreatedAt: 1000, Content: "hello there"}))

	hits, err := s.Search(context.Background(), SearchRequest{Query: "xylophone"})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestEmptyQueryRecencyOrder(t *testing.T) {
	s := buildIndex(t, nil,
		conv("claude_code", "old", types.NormalizedMessage{Role: "user", CreatedAt: 1000, Content: "oldest message"}),
		conv("claude_code", "new", types.NormalizedMessage{Role: "user", CreatedAt: 3000, Content: "newest message"}),
		conv("claude_code", "mid", types.NormalizedMessage{Role: "user", CreatedAt: 2000, Content: "middle message"}),
	)

	hits, err := s.Search(context.Background(), SearchRequest{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, "new", hits[0].Title)
	require.Equal(t, "mid", hits[1].Title)
	require.Equal(t, "old", hits[2].Title)
}

func TestWildcardTier(t *testing.T) {
	s := buildIndex(t, nil, conv("claude_code", "sorting",
		types.NormalizedMessage{Role: "user", CreatedAt: 1000, Content: "sorting a slice of structs"}))

	// "sort" only matches "sorting" as a prefix, so the wildcard tier fires.
	hits, err := s.Search(context.Background(), SearchRequest{Query: "sort"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, types.MatchWildcard, hits[0].Match)
}

func TestFuzzyTier(t *testing.T) {
	s := buildIndex(t, nil, conv("claude_code", "goroutines",
		types.NormalizedMessage{Role: "user", CreatedAt: 1000, Content: "goroutine leak in the worker pool"}))

	// One transposition away from "goroutine"; neither exact nor prefix.
	hits, err := s.Search(context.Background(), SearchRequest{Query: "goroutnie"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, types.MatchFuzzy, hits[0].Match)
}

func TestAgentFilterConjunction(t *testing.T) {
	s := buildIndex(t, nil,
		conv("claude_code", "a", types.NormalizedMessage{Role: "user", CreatedAt: 1000, Content: "shared term here"}),
		conv("codex", "b", types.NormalizedMessage{Role: "user", CreatedAt: 1000, Content: "shared term here"}),
	)

	hits, err := s.Search(context.Background(), SearchRequest{
		Query:   "shared",
		Filters: SearchFilters{Agents: []string{"codex"}},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "codex", hits[0].Agent)
}

func TestOffsetAndLimitAfterRanking(t *testing.T) {
	s := buildIndex(t, nil,
		conv("claude_code", "c1", types.NormalizedMessage{Role: "user", CreatedAt: 3000, Content: "paging"}),
		conv("claude_code", "c2", types.NormalizedMessage{Role: "user", CreatedAt: 2000, Content: "paging"}),
		conv("claude_code", "c3", types.NormalizedMessage{Role: "user", CreatedAt: 1000, Content: "paging"}),
	)

	page1, err := s.Search(context.Background(), SearchRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page2, err := s.Search(context.Background(), SearchRequest{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.NotEqual(t, page1[0].Title, page2[0].Title)
	require.NotEqual(t, page1[1].Title, page2[0].Title)
}

func TestSemanticBlendKeepsClassification(t *testing.T) {
	emb := embedder.NewHashEmbedder(64, nil)
	s := buildIndex(t, emb,
		conv("claude_code", "a", types.NormalizedMessage{Role: "user", CreatedAt: 1000, Content: "database connection pooling"}),
		conv("claude_code", "b", types.NormalizedMessage{Role: "user", CreatedAt: 2000, Content: "database schema migration"}),
	)

	hits, err := s.Search(context.Background(), SearchRequest{Query: "database", Semantic: true})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		require.Equal(t, types.MatchExact, h.Match, "blend must not change match classification")
		require.NotZero(t, h.Score)
	}
}

func TestSnippetAndLineNumber(t *testing.T) {
	s := buildIndex(t, nil, conv("claude_code", "long",
		types.NormalizedMessage{Role: "user", CreatedAt: 1000, Content: "first line\nsecond line\nthe needle is here\nlast line"}))

	hits, err := s.Search(context.Background(), SearchRequest{Query: "needle"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Contains(t, hits[0].Snippet, "needle")
	require.Equal(t, 3, hits[0].LineNo)
}

func TestQueryCache(t *testing.T) {
	s := buildIndex(t, nil, conv("claude_code", "cached",
		types.NormalizedMessage{Role: "user", CreatedAt: 1000, Content: "cache this query"}))

	req := SearchRequest{Query: "cache", UseCache: true}
	first, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first, second)

	s.InvalidateCache()
	third, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first, third)
}

func TestWithinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		max  int
		want bool
	}{
		{"kitten", "sitting", 2, false},
		{"kitten", "sitting", 3, true},
		{"sort", "sort", 0, true},
		{"sort", "sorted", 2, true},
		{"sort", "sorting", 2, false},
		{"abc", "xyz", 2, false},
		{"", "ab", 2, true},
	}
	for _, tt := range tests {
		if got := withinDistance(tt.a, tt.b, tt.max); got != tt.want {
			t.Errorf("withinDistance(%q, %q, %d) = %v, want %v", tt.a, tt.b, tt.max, got, tt.want)
		}
	}
}
