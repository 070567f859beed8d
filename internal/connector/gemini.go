package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

const geminiSlug = "gemini"

// geminiRecord is one element of a logs.json array.
type geminiRecord struct {
	SessionID string `json:"sessionId"`
	MessageID int    `json:"messageId"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// GeminiConnector scans Gemini CLI history: per-project logs.json arrays
// under <root>/tmp/<project-hash>/.
type GeminiConnector struct{}

func NewGeminiConnector() *GeminiConnector {
	return &GeminiConnector{}
}

func (c *GeminiConnector) Slug() string { return geminiSlug }

func geminiRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gemini")
}

func (c *GeminiConnector) Detect() DetectionResult {
	root := geminiRoot()
	if root == "" {
		return NotFound()
	}
	tmp := filepath.Join(root, "tmp")
	if info, err := os.Stat(tmp); err == nil && info.IsDir() {
		return DetectionResult{
			Detected: true,
			Evidence: []string{fmt.Sprintf("found %s", tmp)},
		}
	}
	return NotFound()
}

func (c *GeminiConnector) Scan(ctx context.Context, sc ScanContext) ([]types.NormalizedConversation, error) {
	root := geminiRoot()
	if sc.DataRoot != "" {
		root = sc.DataRoot
	}
	if root == "" {
		return nil, nil
	}

	tmp := filepath.Join(root, "tmp")
	entries, err := os.ReadDir(tmp)
	if err != nil {
		return nil, nil
	}

	var convs []types.NormalizedConversation
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(tmp, e.Name(), "logs.json")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		found, err := c.loadLog(path, sc.SinceTS)
		if err != nil {
			log.Printf("%s: skipping %s: %v", geminiSlug, path, err)
			continue
		}
		for _, conv := range found {
			if sc.Dedup != nil && !sc.Dedup.Insert(geminiSlug, conv.ExternalID) {
				continue
			}
			convs = append(convs, conv)
		}
	}
	return convs, nil
}

// loadLog parses one logs.json into per-session conversations. Records
// without a sessionId collapse into a single fallback conversation for the
// file.
func (c *GeminiConnector) loadLog(path string, since int64) ([]types.NormalizedConversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.SourceError{Slug: geminiSlug, Path: path, Op: "read", Err: err}
	}

	var records []geminiRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &types.SourceError{Slug: geminiSlug, Path: path, Op: "parse", Err: err}
	}

	const fallbackKey = ""
	bySession := make(map[string][]types.NormalizedMessage)
	var order []string

	for _, rec := range records {
		if strings.TrimSpace(rec.Message) == "" {
			continue
		}
		ts := parseRFC3339Millis(rec.Timestamp)
		if since > 0 && ts > 0 && ts <= since {
			continue
		}
		role := rec.Type
		if role == "" {
			role = "user"
		}
		msg := types.NormalizedMessage{
			Role:      role,
			CreatedAt: ts,
			Content:   rec.Message,
			Snippets:  extractSnippets(rec.Message),
			Extra:     map[string]any{"messageId": rec.MessageID},
		}
		key := rec.SessionID
		if _, seen := bySession[key]; !seen {
			order = append(order, key)
		}
		bySession[key] = append(bySession[key], msg)
	}

	projectDir := filepath.Base(filepath.Dir(path))
	var convs []types.NormalizedConversation
	for _, key := range order {
		conv := types.NormalizedConversation{
			AgentSlug:  geminiSlug,
			SourcePath: path,
			Messages:   bySession[key],
		}
		if key == fallbackKey {
			conv.ExternalID = "log:" + path
		} else {
			conv.ExternalID = key
			conv.Metadata = map[string]any{"sessionId": key, "project": projectDir}
		}
		conv.SortMessages()
		if !conv.FilterSince(since) {
			continue
		}
		conv.RecomputeBounds()
		conv.DeriveTitle()
		convs = append(convs, conv)
	}
	return convs, nil
}
