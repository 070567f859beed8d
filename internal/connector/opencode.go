package connector

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

const opencodeSlug = "opencode"

// OpenCodeConnector scans OpenCode's SQLite databases. OpenCode has shipped
// several schema variants, so every logical field is resolved against the
// columns actually present rather than a fixed layout.
type OpenCodeConnector struct{}

func NewOpenCodeConnector() *OpenCodeConnector {
	return &OpenCodeConnector{}
}

func (c *OpenCodeConnector) Slug() string { return opencodeSlug }

// opencodeDirs returns the candidate storage directories, most specific
// first.
func opencodeDirs() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, ".opencode"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".opencode"))
		dirs = append(dirs, filepath.Join(home, ".local", "share", "opencode"))
	}
	return dirs
}

func (c *OpenCodeConnector) Detect() DetectionResult {
	for _, d := range opencodeDirs() {
		if info, err := os.Stat(d); err == nil && info.IsDir() {
			return DetectionResult{
				Detected: true,
				Evidence: []string{fmt.Sprintf("found %s", d)},
			}
		}
	}
	return NotFound()
}

func (c *OpenCodeConnector) Scan(ctx context.Context, sc ScanContext) ([]types.NormalizedConversation, error) {
	roots := opencodeDirs()
	if sc.DataRoot != "" {
		roots = []string{sc.DataRoot}
	}

	dedup := sc.Dedup
	if dedup == nil {
		// Still dedupe across this connector's own database files.
		dedup = NewDedupSet()
	}

	var convs []types.NormalizedConversation
	for _, root := range roots {
		for _, dbPath := range findDatabases(root) {
			found, err := c.loadDB(dbPath, sc.SinceTS, dedup)
			if err != nil {
				// One unreadable store never aborts its siblings.
				log.Printf("%v", err)
				continue
			}
			convs = append(convs, found...)
		}
	}
	return convs, nil
}

// findDatabases walks a root collecting SQLite database files.
func findDatabases(root string) []string {
	if _, err := os.Stat(root); err != nil {
		return nil
	}
	var dbs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".db") || strings.HasSuffix(name, ".sqlite") ||
			strings.EqualFold(name, "database") || strings.EqualFold(name, "storage") {
			dbs = append(dbs, path)
		}
		return nil
	})
	return dbs
}

// sessionMeta is the per-session metadata sniffed from a sessions table.
type sessionMeta struct {
	title     string
	workspace string
	startedAt int64
}

// loadDB reads one database into conversations. Messages carrying a session
// or task identifier are grouped by it; the rest are collected into a single
// fallback conversation for the file, never dropped silently.
func (c *OpenCodeConnector) loadDB(dbPath string, since int64, dedup *DedupSet) ([]types.NormalizedConversation, error) {
	db, err := openReadOnly(dbPath)
	if err != nil {
		return nil, &types.SourceError{Slug: opencodeSlug, Path: dbPath, Op: "open", Err: err}
	}
	defer func() { _ = db.Close() }()

	if ok, err := hasTable(db, "messages"); err != nil || !ok {
		if err != nil {
			return nil, &types.SourceError{Slug: opencodeSlug, Path: dbPath, Op: "query", Err: err}
		}
		return nil, nil
	}

	sessions, err := c.readSessions(db)
	if err != nil {
		log.Printf("%s: sessions table unreadable in %s: %v", opencodeSlug, dbPath, err)
		sessions = nil
	}

	rows, err := c.readMessages(db)
	if err != nil {
		return nil, &types.SourceError{Slug: opencodeSlug, Path: dbPath, Op: "read", Err: err}
	}

	bySession := make(map[string][]types.NormalizedMessage)
	var sessionOrder []string
	var fallback []types.NormalizedMessage

	for _, r := range rows {
		msg := messageFromRow(r)
		// Cheap read-time watermark check; group membership can reorder rows,
		// so the strict filter runs again per conversation below.
		if since > 0 && msg.CreatedAt > 0 && msg.CreatedAt <= since {
			continue
		}
		key, ok := r.resolveString(sessionCandidates)
		if !ok {
			if n, nok := r.resolveInt64(sessionCandidates); nok {
				key, ok = fmt.Sprintf("%d", n), true
			}
		}
		if !ok {
			key, ok = r.resolveString(taskCandidates)
			if !ok {
				if n, nok := r.resolveInt64(taskCandidates); nok {
					key, ok = fmt.Sprintf("%d", n), true
				}
			}
		}
		if !ok {
			fallback = append(fallback, msg)
			continue
		}
		if _, seen := bySession[key]; !seen {
			sessionOrder = append(sessionOrder, key)
		}
		bySession[key] = append(bySession[key], msg)
	}

	var convs []types.NormalizedConversation
	for _, key := range sessionOrder {
		conv := types.NormalizedConversation{
			AgentSlug:  opencodeSlug,
			ExternalID: "session-" + key,
			SourcePath: dbPath,
			Messages:   bySession[key],
			Metadata:   map[string]any{"db_path": dbPath, "session_id": key},
		}
		if meta, ok := sessions[key]; ok {
			conv.Title = meta.title
			conv.Workspace = meta.workspace
		}
		finishOpenCode(&conv, since)
		if len(conv.Messages) == 0 {
			continue
		}
		convs = append(convs, conv)
	}

	if len(fallback) > 0 {
		conv := types.NormalizedConversation{
			AgentSlug:  opencodeSlug,
			ExternalID: "db:" + dbPath,
			SourcePath: dbPath,
			Messages:   fallback,
			Metadata:   map[string]any{"db_path": dbPath},
		}
		finishOpenCode(&conv, since)
		if len(conv.Messages) > 0 {
			convs = append(convs, conv)
		}
	}

	// Multiple database files under one root can share identifiers.
	unique := convs[:0]
	for _, conv := range convs {
		if dedup.Insert(opencodeSlug, conv.ExternalID) {
			unique = append(unique, conv)
		}
	}
	return unique, nil
}

// finishOpenCode applies the shared ordering, watermark, and title rules to
// one grouped conversation.
func finishOpenCode(conv *types.NormalizedConversation, since int64) {
	conv.SortMessages()
	if !conv.FilterSince(since) {
		conv.Messages = nil
		return
	}
	conv.RecomputeBounds()
	conv.DeriveTitle()
}

// readSessions sniffs the optional sessions table for titles, workspaces,
// and start times, keyed by the stringified session id.
func (c *OpenCodeConnector) readSessions(db *sql.DB) (map[string]sessionMeta, error) {
	ok, err := hasTable(db, "sessions")
	if err != nil || !ok {
		return nil, err
	}
	cols, err := tableColumns(db, "sessions")
	if err != nil {
		return nil, err
	}
	rows, err := db.Query("SELECT * FROM sessions")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	maps, err := scanRows(rows, cols)
	if err != nil {
		return nil, err
	}

	out := make(map[string]sessionMeta, len(maps))
	for _, r := range maps {
		var key string
		if s, ok := r.resolveString(idCandidates); ok {
			key = s
		} else if n, ok := r.resolveInt64(idCandidates); ok {
			key = fmt.Sprintf("%d", n)
		} else {
			continue
		}
		meta := sessionMeta{}
		meta.title, _ = r.resolveString(titleCandidates)
		meta.workspace, _ = r.resolveString(workspaceCandidates)
		meta.startedAt, _ = r.resolveTimestamp(createdAtCandidates)
		out[key] = meta
	}
	return out, nil
}

// readMessages selects every message row, ordered by the first timestamp
// column that actually exists so grouping sees a stable base order.
func (c *OpenCodeConnector) readMessages(db *sql.DB) ([]rowMap, error) {
	cols, err := tableColumns(db, "messages")
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM messages"
	if col := firstPresent(createdAtCandidates, cols); col != "" {
		query = fmt.Sprintf("SELECT * FROM messages ORDER BY %q", col)
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows, cols)
}

// firstPresent returns the first candidate that exists in cols.
func firstPresent(candidates, cols []string) string {
	for _, cand := range candidates {
		for _, col := range cols {
			if col == cand {
				return col
			}
		}
	}
	return ""
}

// messageFromRow resolves one message row through the candidate-field table.
// The whole row is preserved in Extra for diagnostics.
func messageFromRow(r rowMap) types.NormalizedMessage {
	role, ok := r.resolveString(roleCandidates)
	if !ok {
		role = "agent"
	}
	author, _ := r.resolveString(authorCandidates)
	created, _ := r.resolveTimestamp(createdAtCandidates)
	content, _ := r.resolveString(contentCandidates)

	return types.NormalizedMessage{
		Role:      role,
		Author:    author,
		CreatedAt: created,
		Content:   content,
		Extra:     r.extra(),
		Snippets:  extractSnippets(content),
	}
}
