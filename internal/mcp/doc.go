// Package mcp implements the Model Context Protocol (MCP) server for AgentSearch.
//
// The MCP server exposes three tools to AI coding assistants:
//   - index_sessions: Scan agent session histories and build the search index
//   - search_sessions: Search indexed sessions with tiered full-text matching
//   - list_agents: Report which agents were detected and indexed
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output,
// making it simple to integrate with any MCP-compatible client.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	agentsearch serve
//
// It then listens on stdin for MCP protocol messages and writes responses to stdout.
//
// # Tool: index_sessions
//
// Scan every detected agent and index new conversations:
//
//	Request:
//	{
//	  "name": "index_sessions",
//	  "arguments": {"full": false}
//	}
//
//	Response:
//	{
//	  "run_id": "6f1f2c6e-...",
//	  "conversations": 42,
//	  "messages": 1187,
//	  "agents": {
//	    "claude_code": {"detected": true, "conversations": 40, "messages": 1100},
//	    "codex": {"detected": false, "conversations": 0, "messages": 0}
//	  }
//	}
//
// # Tool: search_sessions
//
// Query the index. Matching runs in tiers, exact phrase first, then prefix,
// then fuzzy; each hit names the tier that produced it:
//
//	Request:
//	{
//	  "name": "search_sessions",
//	  "arguments": {
//	    "query": "race condition",
//	    "agents": ["claude_code"],
//	    "limit": 10
//	  }
//	}
//
//	Response:
//	{
//	  "count": 2,
//	  "results": [
//	    {
//	      "title": "Fix flaky watcher test",
//	      "agent": "claude_code",
//	      "snippet": "…the race condition is in the init path…",
//	      "match": "exact",
//	      "source_path": "/home/u/.claude/projects/p/s1.jsonl",
//	      "provenance": {"source": "local", "kind": "local"}
//	    }
//	  ]
//	}
//
// An empty query is valid and lists the most recent messages instead of
// matching text.
package mcp
