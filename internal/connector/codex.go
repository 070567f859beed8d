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

const codexSlug = "codex"

// codexEntry is one line of a Codex rollout file. Newer versions wrap the
// record in a payload envelope; older ones put the message fields at the top
// level, so both shapes are carried and the payload wins when present.
type codexEntry struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
}

// codexPayload is the envelope body: either a message or session metadata.
type codexPayload struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Cwd     string          `json:"cwd"`
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
}

// codexBlock is one element of an array-form content field.
type codexBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CodexConnector scans Codex CLI rollout files under <root>/sessions/.
type CodexConnector struct{}

func NewCodexConnector() *CodexConnector {
	return &CodexConnector{}
}

func (c *CodexConnector) Slug() string { return codexSlug }

func codexRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".codex")
}

func (c *CodexConnector) Detect() DetectionResult {
	root := codexRoot()
	if root == "" {
		return NotFound()
	}
	sessions := filepath.Join(root, "sessions")
	if info, err := os.Stat(sessions); err == nil && info.IsDir() {
		return DetectionResult{
			Detected: true,
			Evidence: []string{fmt.Sprintf("found %s", sessions)},
		}
	}
	return NotFound()
}

func (c *CodexConnector) Scan(ctx context.Context, sc ScanContext) ([]types.NormalizedConversation, error) {
	root := codexRoot()
	if sc.DataRoot != "" {
		root = sc.DataRoot
	}
	if root == "" {
		return nil, nil
	}

	dir := filepath.Join(root, "sessions")
	if _, err := os.Stat(dir); err != nil {
		return nil, nil
	}

	var files []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".jsonl" {
			files = append(files, path)
		}
		return nil
	})

	var convs []types.NormalizedConversation
	for _, path := range files {
		conv, err := c.loadRollout(path, sc.SinceTS)
		if err != nil {
			log.Printf("%s: skipping %s: %v", codexSlug, path, err)
			continue
		}
		if conv == nil {
			continue
		}
		if sc.Dedup != nil && !sc.Dedup.Insert(codexSlug, conv.ExternalID) {
			continue
		}
		convs = append(convs, *conv)
	}
	return convs, nil
}

// loadRollout parses one rollout file. Returns nil when nothing survives
// filtering.
func (c *CodexConnector) loadRollout(path string, since int64) (*types.NormalizedConversation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.SourceError{Slug: codexSlug, Path: path, Op: "open", Err: err}
	}
	defer func() { _ = f.Close() }()

	conv := &types.NormalizedConversation{
		AgentSlug:  codexSlug,
		ExternalID: filepath.Base(path),
		SourcePath: path,
		Metadata:   map[string]any{},
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry codexEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			log.Printf("%v", &types.RecordError{Path: path, Line: lineNo, Err: err})
			continue
		}

		role := entry.Role
		content := entry.Content
		author := ""
		if len(entry.Payload) > 0 {
			var p codexPayload
			if err := json.Unmarshal(entry.Payload, &p); err != nil {
				log.Printf("%v", &types.RecordError{Path: path, Line: lineNo, Err: err})
				continue
			}
			if p.Type == "session_meta" || entry.Type == "session_meta" {
				if p.ID != "" {
					conv.Metadata["sessionId"] = p.ID
				}
				if p.Cwd != "" && conv.Workspace == "" {
					conv.Workspace = p.Cwd
				}
				continue
			}
			if p.Role != "" {
				role = p.Role
			}
			if len(p.Content) > 0 {
				content = p.Content
			}
			author = p.Model
		}
		if role == "" {
			continue
		}

		text := flattenCodexContent(content)
		if strings.TrimSpace(text) == "" {
			continue
		}

		ts := parseRFC3339Millis(entry.Timestamp)
		if since > 0 && ts > 0 && ts <= since {
			continue
		}

		conv.Messages = append(conv.Messages, types.NormalizedMessage{
			Role:      role,
			Author:    author,
			CreatedAt: ts,
			Content:   text,
			Snippets:  extractSnippets(text),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, &types.SourceError{Slug: codexSlug, Path: path, Op: "read", Err: err}
	}

	conv.SortMessages()
	if !conv.FilterSince(since) {
		return nil, nil
	}
	conv.RecomputeBounds()
	conv.DeriveTitle()
	if len(conv.Metadata) == 0 {
		conv.Metadata = nil
	}
	return conv, nil
}

// flattenCodexContent renders a content field that is either a bare string or
// an array of typed text blocks (input_text, output_text, text).
func flattenCodexContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []codexBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "input_text", "output_text", "text":
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}
