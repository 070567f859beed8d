package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/agentsearch-mcp/internal/config"
	"github.com/dshills/agentsearch-mcp/internal/embedder"
	"github.com/dshills/agentsearch-mcp/internal/index"
	"github.com/dshills/agentsearch-mcp/internal/scanner"
	"github.com/dshills/agentsearch-mcp/internal/searcher"
	"github.com/dshills/agentsearch-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "agentsearch-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	index    *index.Index
	scanner  *scanner.Scanner
	searcher *searcher.Searcher
}

// DefaultDataDir returns the standard location for the store and index.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".agentsearch"), nil
}

// NewServer creates a new MCP server instance rooted at dataDir. An empty
// dataDir uses the default location under the user's home.
func NewServer(dataDir string) (*Server, error) {
	if dataDir == "" {
		var err error
		dataDir, err = DefaultDataDir()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(dataDir, "store.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	ix, err := index.OpenOrCreate(dataDir, emb)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	// The sources config decides provenance; a missing file means all-local.
	resolver := localProvenanceResolver(dataDir)
	if cfgPath, err := config.DefaultPath(); err == nil {
		if cfg, err := config.Load(cfgPath); err == nil {
			resolver = cfg.ProvenanceResolver(filepath.Join(dataDir, "staging"))
		}
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  store,
		index:    ix,
		scanner:  scanner.New(store, ix),
		searcher: searcher.NewSearcher(ix.Reader(), emb, resolver),
	}
	s.registerTools()
	return s, nil
}

func localProvenanceResolver(dataDir string) searcher.ProvenanceResolver {
	empty := &config.SourcesConfig{}
	return empty.ProvenanceResolver(filepath.Join(dataDir, "staging"))
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.close()
	return server.ServeStdio(s.mcp)
}

func (s *Server) close() {
	_ = s.index.Close()
	_ = s.storage.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexSessionsTool(), s.handleIndexSessions)
	s.mcp.AddTool(searchSessionsTool(), s.handleSearchSessions)
	s.mcp.AddTool(listAgentsTool(), s.handleListAgents)
}
