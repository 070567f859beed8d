package connector

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/agentsearch-mcp/internal/storage"
)

// newFixtureDB creates a writable SQLite database under dir and returns its
// path plus an open handle the caller must close.
func newFixtureDB(t *testing.T, dir, name string) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(dir, name)
	db, err := sql.Open(storage.DriverName, path)
	require.NoError(t, err)
	return path, db
}

func TestOpenCodeGroupsBySession(t *testing.T) {
	dir := t.TempDir()
	path, db := newFixtureDB(t, dir, "sessions.db")

	_, err := db.Exec(`
		CREATE TABLE sessions (id TEXT, title TEXT, workspace TEXT);
		CREATE TABLE messages (session_id TEXT, role TEXT, content TEXT, created_at INTEGER);
	`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO sessions VALUES ('s1', 'Fix the parser', '/home/u/proj');
		INSERT INTO messages VALUES ('s1', 'user', 'parser panics on empty input', 1000);
		INSERT INTO messages VALUES ('s1', 'assistant', 'guard added', 2000);
		INSERT INTO messages VALUES ('s2', 'user', 'second session', 3000);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c := NewOpenCodeConnector()
	convs, err := c.Scan(context.Background(), ScanContext{DataRoot: dir})
	require.NoError(t, err)
	require.Len(t, convs, 2)

	byID := map[string]int{}
	for i, conv := range convs {
		byID[conv.ExternalID] = i
	}
	s1 := convs[byID["session-s1"]]
	require.Equal(t, "opencode", s1.AgentSlug)
	require.Equal(t, "Fix the parser", s1.Title)
	require.Equal(t, "/home/u/proj", s1.Workspace)
	require.Equal(t, path, s1.SourcePath)
	require.Len(t, s1.Messages, 2)
	require.Equal(t, int64(1000), s1.StartedAt)
	require.Equal(t, int64(2000), s1.EndedAt)
	require.Equal(t, 0, s1.Messages[0].Idx)
	require.Equal(t, 1, s1.Messages[1].Idx)

	s2 := convs[byID["session-s2"]]
	require.Len(t, s2.Messages, 1)
	// No sessions row for s2, so the title falls back to the message text.
	require.Equal(t, "second session", s2.Title)
}

func TestOpenCodeFallbackConversationPerDB(t *testing.T) {
	dir := t.TempDir()
	path, db := newFixtureDB(t, dir, "flat.db")

	_, err := db.Exec(`CREATE TABLE messages (role TEXT, content TEXT, created_at INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO messages VALUES ('user', 'no session column here', 500);
		INSERT INTO messages VALUES ('assistant', 'still indexed', 600);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c := NewOpenCodeConnector()
	convs, err := c.Scan(context.Background(), ScanContext{DataRoot: dir})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Equal(t, "db:"+path, convs[0].ExternalID)
	require.Len(t, convs[0].Messages, 2)
}

func TestOpenCodeResolvesAlternateColumns(t *testing.T) {
	dir := t.TempDir()
	_, db := newFixtureDB(t, dir, "alt.db")

	// sender/text/ts instead of role/content/created_at.
	_, err := db.Exec(`CREATE TABLE messages (session_id TEXT, sender TEXT, text TEXT, ts INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO messages VALUES ('s1', 'human', 'alternate schema works', 42);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c := NewOpenCodeConnector()
	convs, err := c.Scan(context.Background(), ScanContext{DataRoot: dir})
	require.NoError(t, err)
	require.Len(t, convs, 1)

	msg := convs[0].Messages[0]
	require.Equal(t, "human", msg.Role)
	require.Equal(t, "alternate schema works", msg.Content)
	require.Equal(t, int64(42), msg.CreatedAt)
}

func TestOpenCodeSinceWatermark(t *testing.T) {
	dir := t.TempDir()
	_, db := newFixtureDB(t, dir, "inc.db")

	_, err := db.Exec(`CREATE TABLE messages (session_id TEXT, role TEXT, content TEXT, created_at INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO messages VALUES ('s1', 'user', 'old message', 1000);
		INSERT INTO messages VALUES ('s1', 'user', 'boundary message', 2000);
		INSERT INTO messages VALUES ('s1', 'user', 'new message', 3000);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c := NewOpenCodeConnector()
	convs, err := c.Scan(context.Background(), ScanContext{DataRoot: dir, SinceTS: 2000})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	// The boundary timestamp itself is excluded; only strictly newer survives.
	require.Len(t, convs[0].Messages, 1)
	require.Equal(t, "new message", convs[0].Messages[0].Content)
	require.Equal(t, int64(3000), convs[0].StartedAt)
}

func TestOpenCodeSkipsDatabasesWithoutMessages(t *testing.T) {
	dir := t.TempDir()
	_, db := newFixtureDB(t, dir, "other.db")
	_, err := db.Exec(`CREATE TABLE settings (key TEXT, value TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c := NewOpenCodeConnector()
	convs, err := c.Scan(context.Background(), ScanContext{DataRoot: dir})
	require.NoError(t, err)
	require.Empty(t, convs)
}

func TestOpenCodeDedupAcrossScans(t *testing.T) {
	dir := t.TempDir()
	_, db := newFixtureDB(t, dir, "dup.db")
	_, err := db.Exec(`CREATE TABLE messages (session_id TEXT, role TEXT, content TEXT, created_at INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO messages VALUES ('s1', 'user', 'hello', 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	dedup := NewDedupSet()
	c := NewOpenCodeConnector()

	convs, err := c.Scan(context.Background(), ScanContext{DataRoot: dir, Dedup: dedup})
	require.NoError(t, err)
	require.Len(t, convs, 1)

	convs, err = c.Scan(context.Background(), ScanContext{DataRoot: dir, Dedup: dedup})
	require.NoError(t, err)
	require.Empty(t, convs)
}
