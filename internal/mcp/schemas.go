package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexSessionsTool returns the tool definition for index_sessions
func indexSessionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_sessions",
		Description: "Scan local coding agent session histories and index them for search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"full": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-read every source ignoring incremental high-water marks",
					"default":     false,
				},
			},
		},
	}
}

// searchSessionsTool returns the tool definition for search_sessions
func searchSessionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_sessions",
		Description: "Search indexed agent sessions. An empty query lists the most recent messages.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search terms. Matching degrades from exact phrase to prefix to fuzzy; empty returns recent messages",
				},
				"agents": map[string]interface{}{
					"type":        "array",
					"description": "Restrict results to these agent slugs",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"amp", "claude_code", "codex", "gemini", "opencode"},
					},
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-500)",
					"default":     20,
					"minimum":     1,
					"maximum":     500,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of ranked results to skip, for paging",
					"default":     0,
					"minimum":     0,
				},
				"semantic": map[string]interface{}{
					"type":        "boolean",
					"description": "Blend embedding similarity into the text ranking",
					"default":     false,
				},
			},
		},
	}
}

// listAgentsTool returns the tool definition for list_agents
func listAgentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_agents",
		Description: "List known coding agents, whether their data stores were detected, and whether they have indexed sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
