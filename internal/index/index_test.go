package index

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/agentsearch-mcp/internal/embedder"
	"github.com/dshills/agentsearch-mcp/pkg/types"
)

func sampleConversation() *types.NormalizedConversation {
	return &types.NormalizedConversation{
		AgentSlug:  "claude_code",
		ExternalID: "abc.jsonl",
		Title:      "Sorting maps",
		Workspace:  "/home/u/proj",
		SourcePath: "/data/abc.jsonl",
		StartedAt:  1000,
		Messages: []types.NormalizedMessage{
			{Idx: 0, Role: "user", CreatedAt: 1000, Content: "how do I sort a map"},
			{Idx: 1, Role: "agent", Content: "extract the keys and sort them"},
		},
	}
}

func TestOpenOrCreateVersionedLayout(t *testing.T) {
	dataDir := t.TempDir()
	ix, err := OpenOrCreate(dataDir, nil)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	expected := filepath.Join(dataDir, "index", "v"+SchemaVersion, "messages.db")
	_, err = os.Stat(expected)
	require.NoError(t, err, "index db must live in the versioned directory")
}

func TestCommitMakesDocumentsVisible(t *testing.T) {
	dataDir := t.TempDir()
	ix, err := OpenOrCreate(dataDir, nil)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	ix.AddConversation(sampleConversation())
	require.Equal(t, 2, ix.Pending())

	require.NoError(t, ix.Commit(context.Background()))
	require.Zero(t, ix.Pending())

	n, err := ix.Reader().Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestCreatedAtFallsBackToConversationStart(t *testing.T) {
	dataDir := t.TempDir()
	ix, err := OpenOrCreate(dataDir, nil)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	ix.AddConversation(sampleConversation())
	require.NoError(t, ix.Commit(context.Background()))

	var createdAt int64
	err = ix.Reader().DB().QueryRow(
		"SELECT created_at FROM messages WHERE msg_idx = 1").Scan(&createdAt)
	require.NoError(t, err)
	require.Equal(t, int64(1000), createdAt, "timestampless message inherits conversation start")
}

func TestCommitStoresEmbeddings(t *testing.T) {
	dataDir := t.TempDir()
	emb := embedder.NewHashEmbedder(64, nil)
	ix, err := OpenOrCreate(dataDir, emb)
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	ix.AddConversation(sampleConversation())
	require.NoError(t, ix.Commit(context.Background()))

	var n int
	require.NoError(t, ix.Reader().DB().QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&n))
	require.Equal(t, 2, n)

	var blob []byte
	var dim int
	var id string
	require.NoError(t, ix.Reader().DB().QueryRow(
		"SELECT vector, dimension, embedder_id FROM embeddings LIMIT 1").Scan(&blob, &dim, &id))
	require.Equal(t, 64, dim)
	require.Equal(t, "fnv1a-64", id)
	require.Len(t, DeserializeVector(blob), 64)
}

func TestOpenReaderMissingIndex(t *testing.T) {
	_, err := OpenReader(t.TempDir())
	require.ErrorIs(t, err, types.ErrIndexMissing)
}

func TestOpenReaderAfterCommit(t *testing.T) {
	dataDir := t.TempDir()
	ix, err := OpenOrCreate(dataDir, nil)
	require.NoError(t, err)
	ix.AddConversation(sampleConversation())
	require.NoError(t, ix.Commit(context.Background()))
	require.NoError(t, ix.Close())

	r, err := OpenReader(dataDir)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	n, err := r.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 0, 3.75}
	got := DeserializeVector(SerializeVector(vec))
	require.Equal(t, vec, got)
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	require.InDelta(t, 0, CosineSimilarity(a, b), 1e-9)
	require.InDelta(t, 1, CosineSimilarity(a, a), 1e-9)
	require.Zero(t, CosineSimilarity(a, []float32{1}), "length mismatch scores zero")
	require.True(t, math.Abs(CosineSimilarity([]float32{1, 1}, []float32{1, 1})-1) < 1e-9)
}
