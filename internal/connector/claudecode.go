package connector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

const claudeSlug = "claude_code"

// claudeEntry is one line of a Claude Code session JSONL file.
type claudeEntry struct {
	Type      string          `json:"type"`
	Cwd       string          `json:"cwd"`
	SessionID string          `json:"sessionId"`
	GitBranch string          `json:"gitBranch"`
	Version   string          `json:"version"`
	Timestamp string          `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
}

// claudeMessage is the nested message object of an entry, or one element of
// a document-format "messages" array.
type claudeMessage struct {
	Role      string          `json:"role"`
	Model     string          `json:"model"`
	Content   json.RawMessage `json:"content"`
	Timestamp string          `json:"timestamp"`
}

// claudeDocument is the non-JSONL single-document format (.json / .claude).
type claudeDocument struct {
	Title    string          `json:"title"`
	Messages []claudeMessage `json:"messages"`
}

// contentBlock is one element of an array-form message content.
type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input"`
	Content json.RawMessage `json:"content"`
}

// ClaudeCodeConnector scans Claude Code session files stored as JSONL (one
// entry per line) or as single JSON documents under <root>/projects/.
type ClaudeCodeConnector struct{}

func NewClaudeCodeConnector() *ClaudeCodeConnector {
	return &ClaudeCodeConnector{}
}

func (c *ClaudeCodeConnector) Slug() string { return claudeSlug }

// claudeRoots returns the default storage locations probed when no data-root
// override is supplied.
func claudeRoots() []string {
	var roots []string
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots,
			filepath.Join(home, ".claude"),
			filepath.Join(home, ".config", "claude"),
		)
	}
	return roots
}

func (c *ClaudeCodeConnector) Detect() DetectionResult {
	for _, root := range claudeRoots() {
		projects := filepath.Join(root, "projects")
		if info, err := os.Stat(projects); err == nil && info.IsDir() {
			return DetectionResult{
				Detected: true,
				Evidence: []string{fmt.Sprintf("found %s", projects)},
			}
		}
	}
	return NotFound()
}

func (c *ClaudeCodeConnector) Scan(ctx context.Context, sc ScanContext) ([]types.NormalizedConversation, error) {
	roots := claudeRoots()
	if sc.DataRoot != "" {
		roots = []string{sc.DataRoot}
	}

	var convs []types.NormalizedConversation
	for _, root := range roots {
		dir := filepath.Join(root, "projects")
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		files := findSessionFiles(dir)
		for _, path := range files {
			conv, err := c.loadFile(path, sc.SinceTS)
			if err != nil {
				log.Printf("%s: skipping %s: %v", claudeSlug, path, err)
				continue
			}
			if conv == nil {
				continue
			}
			if sc.Dedup != nil && !sc.Dedup.Insert(claudeSlug, conv.ExternalID) {
				continue
			}
			convs = append(convs, *conv)
		}
	}
	return convs, nil
}

// findSessionFiles walks a projects directory collecting supported session
// files. Unreadable entries are skipped.
func findSessionFiles(dir string) []string {
	var files []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".jsonl", ".json", ".claude":
			files = append(files, path)
		}
		return nil
	})
	return files
}

// loadFile parses one session file into a conversation. Returns nil when the
// file yields no messages (after blank-content and watermark filtering).
func (c *ClaudeCodeConnector) loadFile(path string, since int64) (*types.NormalizedConversation, error) {
	conv := &types.NormalizedConversation{
		AgentSlug:  claudeSlug,
		ExternalID: filepath.Base(path),
		SourcePath: path,
		Metadata:   map[string]any{},
	}

	var err error
	if filepath.Ext(path) == ".jsonl" {
		err = c.loadJSONL(path, since, conv)
	} else {
		err = c.loadDocument(path, conv)
	}
	if err != nil {
		return nil, err
	}

	conv.SortMessages()
	if !conv.FilterSince(since) {
		return nil, nil
	}
	conv.RecomputeBounds()
	c.deriveTitle(conv)
	if len(conv.Metadata) == 0 {
		conv.Metadata = nil
	}
	return conv, nil
}

// loadJSONL reads one entry per line. Malformed lines and non-message entry
// types (summary, file-history-snapshot, ...) are skipped individually.
func (c *ClaudeCodeConnector) loadJSONL(path string, since int64, conv *types.NormalizedConversation) error {
	f, err := os.Open(path)
	if err != nil {
		return &types.SourceError{Slug: claudeSlug, Path: path, Op: "open", Err: err}
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry claudeEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			log.Printf("%v", &types.RecordError{Path: path, Line: lineNo, Err: err})
			continue
		}

		switch entry.Type {
		case "summary", "file-history-snapshot":
			continue
		}
		if len(entry.Message) == 0 {
			continue
		}

		var msg claudeMessage
		if err := json.Unmarshal(entry.Message, &msg); err != nil {
			log.Printf("%v", &types.RecordError{Path: path, Line: lineNo, Err: err})
			continue
		}

		content, snippets := flattenContent(msg.Content)
		if strings.TrimSpace(content) == "" {
			continue
		}

		role := msg.Role
		if role == "" {
			role = entry.Type
		}

		ts := parseRFC3339Millis(entry.Timestamp)
		if since > 0 && ts > 0 && ts <= since {
			// Cheap read-time exit; FilterSince enforces the watermark again
			// after grouping and sorting.
			continue
		}

		if conv.Workspace == "" && entry.Cwd != "" {
			conv.Workspace = entry.Cwd
		}
		recordClaudeMeta(conv.Metadata, entry)

		conv.Messages = append(conv.Messages, types.NormalizedMessage{
			Role:      role,
			Author:    msg.Model,
			CreatedAt: ts,
			Content:   content,
			Snippets:  snippets,
			Extra:     map[string]any{"type": entry.Type},
		})
	}
	return scanner.Err()
}

// loadDocument reads the single-JSON-document format.
func (c *ClaudeCodeConnector) loadDocument(path string, conv *types.NormalizedConversation) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &types.SourceError{Slug: claudeSlug, Path: path, Op: "read", Err: err}
	}
	var doc claudeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return &types.SourceError{Slug: claudeSlug, Path: path, Op: "parse", Err: err}
	}

	conv.Title = types.TruncateTitle(doc.Title)
	for _, m := range doc.Messages {
		content, snippets := flattenContent(m.Content)
		if strings.TrimSpace(content) == "" {
			continue
		}
		conv.Messages = append(conv.Messages, types.NormalizedMessage{
			Role:      m.Role,
			Author:    m.Model,
			CreatedAt: parseRFC3339Millis(m.Timestamp),
			Content:   content,
			Snippets:  snippets,
		})
	}
	return nil
}

// deriveTitle prefers the first line of the first user message, then the
// workspace directory name. An explicit document title is kept as-is.
func (c *ClaudeCodeConnector) deriveTitle(conv *types.NormalizedConversation) {
	if conv.Title == "" {
		for _, m := range conv.Messages {
			if types.ParseRole(m.Role) != types.RoleUser {
				continue
			}
			first := strings.TrimSpace(m.Content)
			if i := strings.IndexByte(first, '\n'); i >= 0 {
				first = first[:i]
			}
			conv.Title = strings.TrimSpace(first)
			break
		}
	}
	if conv.Title == "" && conv.Workspace != "" {
		conv.Title = filepath.Base(conv.Workspace)
	}
	conv.Title = types.TruncateTitle(conv.Title)
}

// recordClaudeMeta captures session-level fields the first time they appear.
func recordClaudeMeta(meta map[string]any, entry claudeEntry) {
	if entry.SessionID != "" {
		if _, ok := meta["sessionId"]; !ok {
			meta["sessionId"] = entry.SessionID
		}
	}
	if entry.GitBranch != "" {
		if _, ok := meta["gitBranch"]; !ok {
			meta["gitBranch"] = entry.GitBranch
		}
	}
	if entry.Version != "" {
		if _, ok := meta["version"]; !ok {
			meta["version"] = entry.Version
		}
	}
}

// flattenContent renders message content to plain text. String content passes
// through; array content concatenates text blocks and renders tool calls as
// bracketed annotations. Fenced code blocks become snippets.
func flattenContent(raw json.RawMessage) (string, []types.Snippet) {
	if len(raw) == 0 {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, extractSnippets(s)
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", nil
	}

	var parts []string
	var snippets []types.Snippet
	for _, b := range blocks {
		switch b.Type {
		case "text", "thinking":
			if b.Text != "" {
				parts = append(parts, b.Text)
				snippets = append(snippets, extractSnippets(b.Text)...)
			}
		case "tool_use":
			input := strings.TrimSpace(string(b.Input))
			if input == "" || input == "null" {
				parts = append(parts, fmt.Sprintf("[Tool: %s]", b.Name))
			} else {
				parts = append(parts, fmt.Sprintf("[Tool: %s %s]", b.Name, input))
			}
		case "tool_result":
			text := flattenToolResult(b.Content)
			if text != "" {
				parts = append(parts, fmt.Sprintf("[Tool result: %s]", text))
			}
		}
	}
	return strings.Join(parts, "\n"), snippets
}

// flattenToolResult extracts the text of a tool_result block, which may be a
// bare string or a nested block array.
func flattenToolResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
