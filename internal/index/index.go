package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/agentsearch-mcp/internal/embedder"
	"github.com/dshills/agentsearch-mcp/internal/storage"
	"github.com/dshills/agentsearch-mcp/pkg/types"
)

// SchemaVersion names the on-disk index layout. Bumping it starts a fresh
// versioned directory instead of corrupting an index written by older code.
const SchemaVersion = "1"

const createSchema = `
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- One document per message.
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    agent TEXT NOT NULL,
    workspace TEXT,
    source_path TEXT NOT NULL,
    msg_idx INTEGER NOT NULL,
    created_at INTEGER,
    title TEXT,
    content TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_agent ON messages(agent);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at DESC);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    content, title, agent, workspace,
    content='messages',
    content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, content, title, agent, workspace)
    VALUES (new.id, new.content, new.title, new.agent, new.workspace);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content, title, agent, workspace)
    VALUES ('delete', old.id, old.content, old.title, old.agent, old.workspace);
END;

-- Vocabulary view used by the fuzzy search tier.
CREATE VIRTUAL TABLE IF NOT EXISTS messages_vocab USING fts5vocab(messages_fts, row);

CREATE TABLE IF NOT EXISTS embeddings (
    message_id INTEGER PRIMARY KEY REFERENCES messages(id) ON DELETE CASCADE,
    vector BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    embedder_id TEXT NOT NULL
);
`

// document is one pending per-message index entry.
type document struct {
	agent      string
	workspace  string
	sourcePath string
	msgIdx     int
	createdAt  int64
	title      string
	content    string
}

// Index is the single writer over one versioned index directory. Documents
// accumulate in memory via AddConversation and become durable and visible
// to readers only on Commit.
type Index struct {
	db      *sql.DB
	path    string
	emb     embedder.Embedder
	pending []document
}

// Dir returns the versioned index directory under a data dir.
func Dir(dataDir string) string {
	return filepath.Join(dataDir, "index", "v"+SchemaVersion)
}

func dbPath(dataDir string) string {
	return filepath.Join(Dir(dataDir), "messages.db")
}

// OpenOrCreate opens the index under dataDir, initializing the schema on
// first use. The embedder may be nil, in which case no vectors are stored.
func OpenOrCreate(dataDir string, emb embedder.Embedder) (*Index, error) {
	path := dbPath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open(storage.DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(createSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}
	if err := checkSchemaVersion(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Index{db: db, path: path, emb: emb}, nil
}

// checkSchemaVersion records the schema version on first open and rejects a
// mismatch afterwards. The versioned directory layout makes a mismatch rare,
// but a hard error beats silently corrupting an old index.
func checkSchemaVersion(db *sql.DB) error {
	var stored string
	err := db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&stored)
	if err == sql.ErrNoRows {
		_, err = db.Exec("INSERT INTO meta (key, value) VALUES ('schema_version', ?)", SchemaVersion)
		return err
	}
	if err != nil {
		return err
	}
	if stored != SchemaVersion {
		return fmt.Errorf("%w: index schema %s, expected %s", types.ErrSchemaIncompatible, stored, SchemaVersion)
	}
	return nil
}

// AddConversation enqueues one document per message. A message without its
// own timestamp inherits the conversation's start time so recency ordering
// still works.
func (ix *Index) AddConversation(conv *types.NormalizedConversation) {
	for i := range conv.Messages {
		msg := &conv.Messages[i]
		createdAt := msg.CreatedAt
		if createdAt == 0 {
			createdAt = conv.StartedAt
		}
		ix.pending = append(ix.pending, document{
			agent:      conv.AgentSlug,
			workspace:  conv.Workspace,
			sourcePath: conv.SourcePath,
			msgIdx:     msg.Idx,
			createdAt:  createdAt,
			title:      conv.Title,
			content:    msg.Content,
		})
	}
}

// Pending returns the number of queued documents.
func (ix *Index) Pending() int {
	return len(ix.pending)
}

// Commit flushes all pending documents in one transaction, embedding their
// content when an embedder is configured. Readers opened after Commit see
// the new documents.
func (ix *Index) Commit(ctx context.Context) error {
	if len(ix.pending) == 0 {
		return nil
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	insertDoc := `
		INSERT INTO messages (agent, workspace, source_path, msg_idx, created_at, title, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	insertVec := `
		INSERT INTO embeddings (message_id, vector, dimension, embedder_id)
		VALUES (?, ?, ?, ?)
	`
	for _, doc := range ix.pending {
		var workspace, title, createdAt any
		if doc.workspace != "" {
			workspace = doc.workspace
		}
		if doc.title != "" {
			title = doc.title
		}
		if doc.createdAt != 0 {
			createdAt = doc.createdAt
		}
		result, err := tx.ExecContext(ctx, insertDoc,
			doc.agent, workspace, doc.sourcePath, doc.msgIdx, createdAt, title, doc.content)
		if err != nil {
			return fmt.Errorf("failed to index document: %w", err)
		}

		if ix.emb == nil {
			continue
		}
		vec, err := ix.emb.Embed(doc.content)
		if err != nil {
			// Unembeddable content (empty after filtering) still gets full-text
			// search; skip only the vector.
			continue
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertVec, id, SerializeVector(vec), ix.emb.Dimension(), ix.emb.ID()); err != nil {
			return fmt.Errorf("failed to store embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	ix.pending = ix.pending[:0]
	return nil
}

// Reader returns a snapshot handle over the committed documents.
func (ix *Index) Reader() *Reader {
	return &Reader{db: ix.db}
}

// Close releases the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Reader is a read-only view of a committed index.
type Reader struct {
	db *sql.DB
}

// OpenReader opens the index under dataDir for querying only. Returns
// ErrIndexMissing when no index has been built yet.
func OpenReader(dataDir string) (*Reader, error) {
	path := dbPath(dataDir)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrIndexMissing, path)
	}

	db, err := sql.Open(storage.DriverName, fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := checkReaderVersion(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func checkReaderVersion(db *sql.DB) error {
	var stored string
	err := db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&stored)
	if err != nil {
		return fmt.Errorf("%w: unreadable schema version", types.ErrSchemaIncompatible)
	}
	if stored != SchemaVersion {
		return fmt.Errorf("%w: index schema %s, expected %s", types.ErrSchemaIncompatible, stored, SchemaVersion)
	}
	return nil
}

// DB exposes the underlying handle for the query engine.
func (r *Reader) DB() *sql.DB {
	return r.db
}

// Count returns the number of indexed documents.
func (r *Reader) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n)
	return n, err
}

// Close releases the reader. Readers obtained from a live Index share its
// handle and must not be closed individually; only OpenReader handles own
// their connection.
func (r *Reader) Close() error {
	return r.db.Close()
}
