package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeThread(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, "threads")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestAmpParsesThread(t *testing.T) {
	root := t.TempDir()
	writeThread(t, root, "T-1.json", `{
		"id": "T-1",
		"title": "Wire up the cache",
		"created": 1000,
		"messages": [
			{"role":"user","content":"cache misses are slow","created":1000},
			{"role":"assistant","content":[{"type":"text","text":"added an LRU in front"}],"created":2000}
		]
	}`)

	c := NewAmpConnector()
	convs, err := c.Scan(context.Background(), ScanContext{DataRoot: root})
	require.NoError(t, err)
	require.Len(t, convs, 1)

	conv := convs[0]
	require.Equal(t, "amp", conv.AgentSlug)
	require.Equal(t, "T-1", conv.ExternalID)
	require.Equal(t, "Wire up the cache", conv.Title)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, "added an LRU in front", conv.Messages[1].Content)
	require.Equal(t, int64(1000), conv.StartedAt)
	require.Equal(t, int64(2000), conv.EndedAt)
}

func TestAmpThreadCreatedBackfillsMessageTime(t *testing.T) {
	root := t.TempDir()
	writeThread(t, root, "T-2.json", `{
		"id": "T-2",
		"created": 5000,
		"messages": [{"role":"user","content":"no per-message time"}]
	}`)

	c := NewAmpConnector()
	convs, err := c.Scan(context.Background(), ScanContext{DataRoot: root})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Equal(t, int64(5000), convs[0].Messages[0].CreatedAt)
}

func TestAmpExternalIDFallsBackToFilename(t *testing.T) {
	root := t.TempDir()
	writeThread(t, root, "anon.json", `{"messages":[{"role":"user","content":"hi"}]}`)

	c := NewAmpConnector()
	convs, err := c.Scan(context.Background(), ScanContext{DataRoot: root})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Equal(t, "anon.json", convs[0].ExternalID)
}
