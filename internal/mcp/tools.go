package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/agentsearch-mcp/internal/scanner"
	"github.com/dshills/agentsearch-mcp/internal/searcher"
	"github.com/dshills/agentsearch-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeIndexMissing  = -32001 // No index has been built yet
)

// handleIndexSessions handles the index_sessions tool invocation
func (s *Server) handleIndexSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	full, _ := args["full"].(bool)

	stats, err := s.scanner.Run(ctx, scanner.Options{Full: full})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Cached results predate the commit and must not survive it.
	s.searcher.InvalidateCache()

	agents := make(map[string]interface{}, len(stats.Agents))
	for slug, st := range stats.Agents {
		entry := map[string]interface{}{
			"detected":      st.Detected,
			"conversations": st.Conversations,
			"messages":      st.Messages,
			"skipped":       st.Skipped,
		}
		if st.Err != "" {
			entry["error"] = st.Err
		}
		agents[slug] = entry
	}

	response := map[string]interface{}{
		"run_id":        stats.RunID,
		"full":          full,
		"conversations": stats.Conversations,
		"messages":      stats.Messages,
		"skipped":       stats.Skipped,
		"agents":        agents,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchSessions handles the search_sessions tool invocation
func (s *Server) handleSearchSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	// An empty query is valid and returns the most recent messages.
	query := getStringDefault(args, "query", "")

	limit := getIntDefault(args, "limit", 20)
	if limit < 1 || limit > 500 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 500", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	offset := getIntDefault(args, "offset", 0)
	if offset < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "offset cannot be negative", map[string]interface{}{
			"param": "offset",
			"value": offset,
		})
	}

	req := searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		Offset:   offset,
		Semantic: getBoolDefault(args, "semantic", false),
		UseCache: true,
	}
	if agents, ok := args["agents"].([]interface{}); ok {
		for _, a := range agents {
			slug, ok := a.(string)
			if !ok || slug == "" {
				return nil, newMCPError(ErrorCodeInvalidParams, "agents must be a list of agent slugs", map[string]interface{}{
					"param": "agents",
				})
			}
			req.Filters.Agents = append(req.Filters.Agents, slug)
		}
	}

	hits, err := s.searcher.Search(ctx, req)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]interface{}, 0, len(hits))
	for _, hit := range hits {
		results = append(results, formatHit(hit))
	}
	response := map[string]interface{}{
		"query":   query,
		"count":   len(hits),
		"offset":  offset,
		"results": results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// formatHit shapes one search result for the wire.
func formatHit(hit types.Hit) map[string]interface{} {
	out := map[string]interface{}{
		"title":       hit.Title,
		"agent":       hit.Agent,
		"snippet":     hit.Snippet,
		"score":       hit.Score,
		"source_path": hit.SourcePath,
		"msg_idx":     hit.MsgIdx,
		"match":       string(hit.Match),
		"provenance": map[string]interface{}{
			"source": hit.Provenance.Source,
			"kind":   string(hit.Provenance.Kind),
		},
	}
	if hit.Workspace != "" {
		out["workspace"] = hit.Workspace
	}
	if hit.CreatedAt != 0 {
		out["created_at"] = hit.CreatedAt
	}
	if hit.LineNo != 0 {
		out["line"] = hit.LineNo
	}
	if hit.Provenance.Host != "" {
		prov := out["provenance"].(map[string]interface{})
		prov["host"] = hit.Provenance.Host
	}
	return out
}

// handleListAgents handles the list_agents tool invocation
func (s *Server) handleListAgents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stored, err := s.storage.ListAgents(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list agents", map[string]interface{}{
			"error": err.Error(),
		})
	}
	indexed := make(map[string]bool, len(stored))
	for _, a := range stored {
		indexed[a.Slug] = true
	}

	detections := s.scanner.Detections()
	agents := make([]interface{}, 0, len(detections))
	for slug, det := range detections {
		entry := map[string]interface{}{
			"slug":     slug,
			"detected": det.Detected,
			"indexed":  indexed[slug],
		}
		if len(det.Evidence) > 0 {
			entry["evidence"] = det.Evidence
		}
		agents = append(agents, entry)
	}

	response := map[string]interface{}{
		"agents": agents,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
