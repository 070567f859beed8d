package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleConversation() *types.NormalizedConversation {
	return &types.NormalizedConversation{
		AgentSlug:  "claude_code",
		ExternalID: "abc.jsonl",
		Title:      "Fix the tests",
		SourcePath: "/data/abc.jsonl",
		StartedAt:  1000,
		EndedAt:    2000,
		Metadata:   map[string]any{"sessionId": "abc"},
		Messages: []types.NormalizedMessage{
			{Idx: 0, Role: "user", CreatedAt: 1000, Content: "the tests are red"},
			{Idx: 1, Role: "agent", Author: "sonnet", CreatedAt: 2000, Content: "fixed:\n```go\nfunc TestX(t *testing.T) {}\n```",
				Snippets: []types.Snippet{{Language: "go", Text: "func TestX(t *testing.T) {}"}}},
		},
	}
}

func TestEnsureAgentIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	agent := types.Agent{Slug: "claude_code", Name: "Claude Code", Kind: types.AgentKindCLI}
	id1, err := s.EnsureAgent(ctx, agent)
	require.NoError(t, err)

	agent.Version = "2.0"
	id2, err := s.EnsureAgent(ctx, agent)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	agents, err := s.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, "2.0", agents[0].Version)
}

func TestEnsureWorkspaceKeepsDisplayName(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id1, err := s.EnsureWorkspace(ctx, "/home/u/proj", "proj")
	require.NoError(t, err)

	// A later ensure without a display name must not erase the stored one.
	id2, err := s.EnsureWorkspace(ctx, "/home/u/proj", "")
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestInsertConversationTree(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	agentID, err := s.EnsureAgent(ctx, types.Agent{Slug: "claude_code", Name: "Claude Code", Kind: types.AgentKindCLI})
	require.NoError(t, err)
	wsID, err := s.EnsureWorkspace(ctx, "/home/u/proj", "")
	require.NoError(t, err)

	convID, created, err := s.InsertConversationTree(ctx, agentID, wsID, sampleConversation())
	require.NoError(t, err)
	require.True(t, created)
	require.NotZero(t, convID)

	count, err := s.CountConversations(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	var msgs, snips int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", convID).Scan(&msgs))
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM snippets").Scan(&snips))
	require.Equal(t, 2, msgs)
	require.Equal(t, 1, snips)
}

func TestInsertConversationTreeIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	agentID, err := s.EnsureAgent(ctx, types.Agent{Slug: "claude_code", Name: "Claude Code", Kind: types.AgentKindCLI})
	require.NoError(t, err)

	first, created, err := s.InsertConversationTree(ctx, agentID, 0, sampleConversation())
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.InsertConversationTree(ctx, agentID, 0, sampleConversation())
	require.NoError(t, err)
	require.False(t, created, "re-insert must be a no-op")
	require.Equal(t, first, second)

	var msgs int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&msgs))
	require.Equal(t, 2, msgs, "re-insert must not duplicate messages")
}

func TestLastMessageTS(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	agentID, err := s.EnsureAgent(ctx, types.Agent{Slug: "claude_code", Name: "Claude Code", Kind: types.AgentKindCLI})
	require.NoError(t, err)

	ts, err := s.LastMessageTS(ctx, "claude_code")
	require.NoError(t, err)
	require.Zero(t, ts, "empty store has no high-water mark")

	_, _, err = s.InsertConversationTree(ctx, agentID, 0, sampleConversation())
	require.NoError(t, err)

	ts, err = s.LastMessageTS(ctx, "claude_code")
	require.NoError(t, err)
	require.Equal(t, int64(2000), ts)

	// Another agent's watermark is independent.
	ts, err = s.LastMessageTS(ctx, "codex")
	require.NoError(t, err)
	require.Zero(t, ts)
}

func TestMetaRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.GetMeta(ctx, "run_id")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetMeta(ctx, "run_id", "r1"))
	require.NoError(t, s.SetMeta(ctx, "run_id", "r2"))

	v, err := s.GetMeta(ctx, "run_id")
	require.NoError(t, err)
	require.Equal(t, "r2", v)
}
