package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(s.close)
	return s
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, result.Content)

	var text string
	switch v := result.Content[0].(type) {
	case mcp.TextContent:
		text = v.Text
	case *mcp.TextContent:
		text = v.Text
	default:
		t.Fatalf("unexpected content type %T", result.Content[0])
	}

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	return payload
}

func TestNewServerInitializesComponents(t *testing.T) {
	s := newTestServer(t)

	require.NotNil(t, s.mcp)
	require.NotNil(t, s.storage)
	require.NotNil(t, s.index)
	require.NotNil(t, s.scanner)
	require.NotNil(t, s.searcher)
}

func TestSearchSessionsEmptyIndex(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleSearchSessions(context.Background(), callRequest(map[string]interface{}{
		"query": "race condition",
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	require.Equal(t, float64(0), payload["count"])
}

func TestSearchSessionsRejectsBadLimit(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSearchSessions(context.Background(), callRequest(map[string]interface{}{
		"query": "x",
		"limit": float64(0),
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	require.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestSearchSessionsRejectsBadAgents(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSearchSessions(context.Background(), callRequest(map[string]interface{}{
		"query":  "x",
		"agents": []interface{}{float64(7)},
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	require.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestListAgentsReportsEveryConnector(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleListAgents(context.Background(), callRequest(nil))
	require.NoError(t, err)

	payload := resultText(t, result)
	agents, ok := payload["agents"].([]interface{})
	require.True(t, ok)
	require.Len(t, agents, 5)

	slugs := make(map[string]bool)
	for _, a := range agents {
		entry := a.(map[string]interface{})
		slugs[entry["slug"].(string)] = true
		_, hasIndexed := entry["indexed"]
		require.True(t, hasIndexed)
	}
	for _, want := range []string{"amp", "claude_code", "codex", "gemini", "opencode"} {
		require.True(t, slugs[want], "missing agent %s", want)
	}
}
