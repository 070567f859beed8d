package connector

import (
	"strings"
	"time"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

// parseRFC3339Millis converts an RFC 3339 timestamp string to epoch
// milliseconds, returning 0 for anything unparsable.
func parseRFC3339Millis(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// extractSnippets pulls fenced code blocks out of markdown-ish text. The
// info string after the opening fence becomes the snippet language.
func extractSnippets(text string) []types.Snippet {
	if !strings.Contains(text, "```") {
		return nil
	}

	var snippets []types.Snippet
	lines := strings.Split(text, "\n")
	var (
		inFence bool
		lang    string
		buf     []string
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				if body := strings.Join(buf, "\n"); strings.TrimSpace(body) != "" {
					snippets = append(snippets, types.Snippet{
						Language: lang,
						Text:     body,
					})
				}
				inFence = false
				buf = buf[:0]
				continue
			}
			inFence = true
			lang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			continue
		}
		if inFence {
			buf = append(buf, line)
		}
	}
	return snippets
}
