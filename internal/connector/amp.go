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

const ampSlug = "amp"

// ampThread is one cached thread file.
type ampThread struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Created  int64        `json:"created"`
	Messages []ampMessage `json:"messages"`
}

type ampMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Created int64           `json:"created"`
}

type ampBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AmpConnector scans Amp's local thread cache: one JSON document per thread
// under <root>/threads/.
type AmpConnector struct{}

func NewAmpConnector() *AmpConnector {
	return &AmpConnector{}
}

func (c *AmpConnector) Slug() string { return ampSlug }

func ampRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".amp")
}

func (c *AmpConnector) Detect() DetectionResult {
	root := ampRoot()
	if root == "" {
		return NotFound()
	}
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		return DetectionResult{
			Detected: true,
			Evidence: []string{fmt.Sprintf("found %s", root)},
		}
	}
	return NotFound()
}

func (c *AmpConnector) Scan(ctx context.Context, sc ScanContext) ([]types.NormalizedConversation, error) {
	root := ampRoot()
	if sc.DataRoot != "" {
		root = sc.DataRoot
	}
	if root == "" {
		return nil, nil
	}

	dir := filepath.Join(root, "threads")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}

	var convs []types.NormalizedConversation
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		conv, err := c.loadThread(path, sc.SinceTS)
		if err != nil {
			log.Printf("%s: skipping %s: %v", ampSlug, path, err)
			continue
		}
		if conv == nil {
			continue
		}
		if sc.Dedup != nil && !sc.Dedup.Insert(ampSlug, conv.ExternalID) {
			continue
		}
		convs = append(convs, *conv)
	}
	return convs, nil
}

// loadThread parses one thread document. Returns nil when nothing survives
// filtering.
func (c *AmpConnector) loadThread(path string, since int64) (*types.NormalizedConversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.SourceError{Slug: ampSlug, Path: path, Op: "read", Err: err}
	}

	var thread ampThread
	if err := json.Unmarshal(data, &thread); err != nil {
		return nil, &types.SourceError{Slug: ampSlug, Path: path, Op: "parse", Err: err}
	}

	externalID := thread.ID
	if externalID == "" {
		externalID = filepath.Base(path)
	}

	conv := &types.NormalizedConversation{
		AgentSlug:  ampSlug,
		ExternalID: externalID,
		Title:      types.TruncateTitle(thread.Title),
		SourcePath: path,
	}

	for _, m := range thread.Messages {
		text := flattenAmpContent(m.Content)
		if strings.TrimSpace(text) == "" {
			continue
		}
		ts := m.Created
		if ts == 0 {
			ts = thread.Created
		}
		if since > 0 && ts > 0 && ts <= since {
			continue
		}
		conv.Messages = append(conv.Messages, types.NormalizedMessage{
			Role:      m.Role,
			CreatedAt: ts,
			Content:   text,
			Snippets:  extractSnippets(text),
		})
	}

	conv.SortMessages()
	if !conv.FilterSince(since) {
		return nil, nil
	}
	conv.RecomputeBounds()
	conv.DeriveTitle()
	return conv, nil
}

// flattenAmpContent renders a content field that is either a bare string or
// an array of text blocks.
func flattenAmpContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []ampBlock
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
