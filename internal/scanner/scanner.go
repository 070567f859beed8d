// Package scanner orchestrates a full ingestion run: detect connectors,
// scan them concurrently, persist what they find, and feed the index.
package scanner

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/agentsearch-mcp/internal/connector"
	"github.com/dshills/agentsearch-mcp/internal/index"
	"github.com/dshills/agentsearch-mcp/internal/storage"
	"github.com/dshills/agentsearch-mcp/pkg/types"
)

// agentInfo is the registry of known agents keyed by connector slug.
var agentInfo = map[string]types.Agent{
	"amp":         {Slug: "amp", Name: "Amp", Kind: types.AgentKindHybrid},
	"claude_code": {Slug: "claude_code", Name: "Claude Code", Kind: types.AgentKindCLI},
	"codex":       {Slug: "codex", Name: "Codex CLI", Kind: types.AgentKindCLI},
	"gemini":      {Slug: "gemini", Name: "Gemini CLI", Kind: types.AgentKindCLI},
	"opencode":    {Slug: "opencode", Name: "OpenCode", Kind: types.AgentKindCLI},
}

// Options controls one run.
type Options struct {
	// Full ignores stored high-water marks and re-reads everything.
	Full bool

	// DataRoots overrides connector storage locations by slug. A connector
	// with an override is scanned even when detection fails.
	DataRoots map[string]string
}

// AgentStats is the per-connector outcome of a run. Skipped counts
// conversations the store already knew.
type AgentStats struct {
	Detected      bool
	Conversations int
	Messages      int
	Skipped       int
	Err           string
}

// Stats summarizes one run.
type Stats struct {
	RunID         string
	Conversations int
	Messages      int
	Skipped       int
	Agents        map[string]AgentStats
}

// Scanner wires connectors to the store and the index.
type Scanner struct {
	store      storage.Storage
	ix         *index.Index
	connectors []connector.Connector
}

// New creates a Scanner over every known connector.
func New(store storage.Storage, ix *index.Index) *Scanner {
	return &Scanner{
		store:      store,
		ix:         ix,
		connectors: connector.All(),
	}
}

// scanResult carries one connector's output back to the persisting loop.
type scanResult struct {
	slug  string
	convs []types.NormalizedConversation
}

// Run executes one ingestion pass. Connectors scan concurrently; persistence
// and indexing run on the collecting goroutine, and the index commits once
// at the end. A connector failure is recorded in the stats, not fatal.
func (s *Scanner) Run(ctx context.Context, opts Options) (*Stats, error) {
	stats := &Stats{
		RunID:  uuid.NewString(),
		Agents: make(map[string]AgentStats),
	}

	dedup := connector.NewDedupSet()
	var (
		mu      sync.Mutex
		results []scanResult
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, conn := range s.connectors {
		conn := conn
		slug := conn.Slug()
		override := opts.DataRoots[slug]

		detected := conn.Detect().Detected || override != ""
		st := AgentStats{Detected: detected}
		if !detected {
			stats.Agents[slug] = st
			continue
		}
		stats.Agents[slug] = st

		g.Go(func() error {
			since := int64(0)
			if !opts.Full {
				ts, err := s.store.LastMessageTS(gctx, slug)
				if err != nil {
					return err
				}
				since = ts
			}

			convs, err := conn.Scan(gctx, connector.ScanContext{
				DataRoot: override,
				SinceTS:  since,
				Dedup:    dedup,
			})
			if err != nil {
				// Record and continue; a broken source must not sink the run.
				log.Printf("scan %s: %v", slug, err)
				mu.Lock()
				st := stats.Agents[slug]
				st.Err = err.Error()
				stats.Agents[slug] = st
				mu.Unlock()
				return nil
			}

			mu.Lock()
			results = append(results, scanResult{slug: slug, convs: convs})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	for _, res := range results {
		if err := s.persist(ctx, res, stats); err != nil {
			return stats, err
		}
	}
	if err := s.ix.Commit(ctx); err != nil {
		return stats, err
	}
	if err := s.store.SetMeta(ctx, "last_run_id", stats.RunID); err != nil {
		return stats, err
	}
	return stats, nil
}

// persist stores one connector's conversations and queues the new ones for
// indexing. Conversations the store already knows are skipped, keeping the
// index free of duplicates across runs.
func (s *Scanner) persist(ctx context.Context, res scanResult, stats *Stats) error {
	agent, ok := agentInfo[res.slug]
	if !ok {
		agent = types.Agent{Slug: res.slug, Name: res.slug, Kind: types.AgentKindCLI}
	}
	agentID, err := s.store.EnsureAgent(ctx, agent)
	if err != nil {
		return err
	}

	st := stats.Agents[res.slug]
	for i := range res.convs {
		conv := &res.convs[i]
		if len(conv.Messages) == 0 {
			continue
		}

		var workspaceID int64
		if conv.Workspace != "" {
			workspaceID, err = s.store.EnsureWorkspace(ctx, conv.Workspace, "")
			if err != nil {
				return err
			}
		}

		_, created, err := s.store.InsertConversationTree(ctx, agentID, workspaceID, conv)
		if err != nil {
			return err
		}
		if !created {
			st.Skipped++
			stats.Skipped++
			continue
		}

		s.ix.AddConversation(conv)
		st.Conversations++
		st.Messages += len(conv.Messages)
		stats.Conversations++
		stats.Messages += len(conv.Messages)
	}
	stats.Agents[res.slug] = st
	return nil
}

// Detections reports every connector's detection result, keyed by slug.
func (s *Scanner) Detections() map[string]connector.DetectionResult {
	out := make(map[string]connector.DetectionResult, len(s.connectors))
	for _, conn := range s.connectors {
		out[conn.Slug()] = conn.Detect()
	}
	return out
}
