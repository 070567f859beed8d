package connector

import (
	"encoding/base64"
	"strconv"
	"time"
)

// Logical-field resolution for schema-sniffing sources.
//
// Database-backed tools rename their columns between versions, so instead of
// assuming a fixed schema we resolve each logical field through an ordered
// list of candidate names against whatever columns are actually present.
// New source variants are handled by extending these lists, not by branching
// code.
var (
	roleCandidates      = []string{"role", "sender", "author_role"}
	authorCandidates    = []string{"author", "model", "sender"}
	createdAtCandidates = []string{"created_at", "timestamp", "ts", "time"}
	contentCandidates   = []string{"content", "text", "message", "body"}
	titleCandidates     = []string{"title", "name", "summary"}
	workspaceCandidates = []string{"workspace", "root_path", "cwd", "project_path", "directory"}
	sessionCandidates   = []string{"session_id", "sessionId", "conversation_id", "chat_id"}
	taskCandidates      = []string{"task_id", "thread_id"}
	idCandidates        = []string{"id", "rowid"}
)

// rowMap is one record with its actual column/key names preserved.
type rowMap map[string]any

// resolveString returns the first candidate field present with a non-empty
// string value.
func (r rowMap) resolveString(candidates []string) (string, bool) {
	for _, name := range candidates {
		v, ok := r[name]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
		if b, ok := v.([]byte); ok && len(b) > 0 {
			return string(b), true
		}
	}
	return "", false
}

// resolveInt64 returns the first candidate field present with an integral
// value. String-typed numerics are tolerated because several tools store
// timestamps as TEXT.
func (r rowMap) resolveInt64(candidates []string) (int64, bool) {
	for _, name := range candidates {
		v, ok := r[name]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case int64:
			return t, true
		case int:
			return int64(t), true
		case float64:
			return int64(t), true
		case string:
			if n, err := strconv.ParseInt(t, 10, 64); err == nil {
				return n, true
			}
		case []byte:
			if n, err := strconv.ParseInt(string(t), 10, 64); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// resolveTimestamp resolves a timestamp candidate to epoch milliseconds.
// Integral values are taken as-is; string values are tried as RFC 3339 first
// and as a bare integer second.
func (r rowMap) resolveTimestamp(candidates []string) (int64, bool) {
	if ts, ok := r.resolveInt64(candidates); ok {
		return ts, true
	}
	if s, ok := r.resolveString(candidates); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// extra converts the row into the diagnostics bag carried on a message.
// Blob values are base64-encoded so the bag stays JSON-serializable.
func (r rowMap) extra() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		if b, ok := v.([]byte); ok {
			out[k] = base64.StdEncoding.EncodeToString(b)
			continue
		}
		out[k] = v
	}
	return out
}
