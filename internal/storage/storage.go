package storage

import (
	"context"
	"errors"

	"github.com/dshills/agentsearch-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// Storage defines the interface for persisting scanned conversations
type Storage interface {
	// Agent operations
	EnsureAgent(ctx context.Context, agent types.Agent) (int64, error)
	ListAgents(ctx context.Context) ([]types.Agent, error)

	// Workspace operations
	EnsureWorkspace(ctx context.Context, path, displayName string) (int64, error)

	// Conversation operations. InsertConversationTree is idempotent on
	// (agent_id, external_id): a re-scan of an already stored conversation
	// returns the existing id with created=false, without touching its rows.
	InsertConversationTree(ctx context.Context, agentID, workspaceID int64, conv *types.NormalizedConversation) (id int64, created bool, err error)
	CountConversations(ctx context.Context) (int64, error)

	// LastMessageTS returns the newest stored message timestamp for an
	// agent, the high-water mark for incremental scans. Zero when the agent
	// has no timestamped messages.
	LastMessageTS(ctx context.Context, agentSlug string) (int64, error)

	// Meta operations
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	// Database operations
	Close() error
}

// ConversationRecord is a stored conversation row joined with its agent and
// workspace for listing surfaces.
type ConversationRecord struct {
	ID         int64
	AgentSlug  string
	Workspace  string
	ExternalID string
	Title      string
	SourcePath string
	StartedAt  int64
	EndedAt    int64
	Messages   int
}
