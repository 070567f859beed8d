package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", p, err)
		}
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Agent operations

func (s *SQLiteStorage) EnsureAgent(ctx context.Context, agent types.Agent) (int64, error) {
	now := time.Now().UnixMilli()
	query := `
		INSERT INTO agents (slug, name, version, kind, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			kind = excluded.kind,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		agent.Slug, agent.Name, nullString(agent.Version), string(agent.Kind), now, now); err != nil {
		return 0, fmt.Errorf("failed to ensure agent %s: %w", agent.Slug, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, "SELECT id FROM agents WHERE slug = ?", agent.Slug).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to fetch agent id for %s: %w", agent.Slug, err)
	}
	return id, nil
}

func (s *SQLiteStorage) ListAgents(ctx context.Context) ([]types.Agent, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT slug, name, version, kind FROM agents ORDER BY slug")
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var agents []types.Agent
	for rows.Next() {
		var a types.Agent
		var version sql.NullString
		var kind string
		if err := rows.Scan(&a.Slug, &a.Name, &version, &kind); err != nil {
			return nil, err
		}
		a.Version = version.String
		a.Kind = types.AgentKind(kind)
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// Workspace operations

func (s *SQLiteStorage) EnsureWorkspace(ctx context.Context, path, displayName string) (int64, error) {
	query := `
		INSERT INTO workspaces (path, display_name)
		VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET
			display_name = COALESCE(excluded.display_name, workspaces.display_name)
	`
	if _, err := s.db.ExecContext(ctx, query, path, nullString(displayName)); err != nil {
		return 0, fmt.Errorf("failed to ensure workspace %s: %w", path, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, "SELECT id FROM workspaces WHERE path = ?", path).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to fetch workspace id for %s: %w", path, err)
	}
	return id, nil
}

// Conversation operations

func (s *SQLiteStorage) InsertConversationTree(ctx context.Context, agentID, workspaceID int64, conv *types.NormalizedConversation) (int64, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback() }()

	if conv.ExternalID != "" {
		var existing int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM conversations WHERE agent_id = ? AND external_id = ?",
			agentID, conv.ExternalID).Scan(&existing)
		if err == nil {
			// Already stored; idempotent no-op.
			return existing, false, nil
		}
		if err != sql.ErrNoRows {
			return 0, false, fmt.Errorf("failed to check conversation existence: %w", err)
		}
	}

	convID, err := insertConversation(ctx, tx, agentID, workspaceID, conv)
	if err != nil {
		return 0, false, err
	}
	for i := range conv.Messages {
		msgID, err := insertMessage(ctx, tx, convID, &conv.Messages[i])
		if err != nil {
			return 0, false, err
		}
		if err := insertSnippets(ctx, tx, msgID, conv.Messages[i].Snippets); err != nil {
			return 0, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit conversation: %w", err)
	}
	return convID, true, nil
}

func insertConversation(ctx context.Context, tx *sql.Tx, agentID, workspaceID int64, conv *types.NormalizedConversation) (int64, error) {
	var metadata any
	if len(conv.Metadata) > 0 {
		data, err := json.Marshal(conv.Metadata)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal conversation metadata: %w", err)
		}
		metadata = string(data)
	}

	query := `
		INSERT INTO conversations (agent_id, workspace_id, external_id, title, source_path, started_at, ended_at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		agentID, nullID(workspaceID), nullString(conv.ExternalID), nullString(conv.Title),
		conv.SourcePath, nullTS(conv.StartedAt), nullTS(conv.EndedAt), metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return result.LastInsertId()
}

func insertMessage(ctx context.Context, tx *sql.Tx, convID int64, msg *types.NormalizedMessage) (int64, error) {
	var extra any
	if len(msg.Extra) > 0 {
		data, err := json.Marshal(msg.Extra)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal message extra: %w", err)
		}
		extra = string(data)
	}

	query := `
		INSERT INTO messages (conversation_id, idx, role, author, created_at, content, extra_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, query,
		convID, msg.Idx, msg.Role, nullString(msg.Author), nullTS(msg.CreatedAt), msg.Content, extra)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message %d: %w", msg.Idx, err)
	}
	return result.LastInsertId()
}

func insertSnippets(ctx context.Context, tx *sql.Tx, msgID int64, snippets []types.Snippet) error {
	if len(snippets) == 0 {
		return nil
	}
	query := `
		INSERT INTO snippets (message_id, file_path, start_line, end_line, language, snippet_text)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, sn := range snippets {
		if _, err := tx.ExecContext(ctx, query,
			msgID, nullString(sn.FilePath), nullInt(sn.StartLine), nullInt(sn.EndLine),
			nullString(sn.Language), sn.Text); err != nil {
			return fmt.Errorf("failed to insert snippet: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) CountConversations(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations").Scan(&n)
	return n, err
}

func (s *SQLiteStorage) LastMessageTS(ctx context.Context, agentSlug string) (int64, error) {
	query := `
		SELECT COALESCE(MAX(m.created_at), 0)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		JOIN agents a ON a.id = c.agent_id
		WHERE a.slug = ?
	`
	var ts sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, agentSlug).Scan(&ts); err != nil {
		return 0, fmt.Errorf("failed to read high-water mark for %s: %w", agentSlug, err)
	}
	return ts.Int64, nil
}

// Meta operations

func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// Null helpers: the schema stores absent values as NULL, the canonical model
// as zero values.

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTS(ts int64) any {
	if ts == 0 {
		return nil
	}
	return ts
}

func nullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
