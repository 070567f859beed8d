package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/agentsearch-mcp/internal/config"
	"github.com/dshills/agentsearch-mcp/internal/embedder"
	"github.com/dshills/agentsearch-mcp/internal/index"
	"github.com/dshills/agentsearch-mcp/internal/searcher"
	"github.com/dshills/agentsearch-mcp/pkg/types"
)

var (
	searchAgents   []string
	searchLimit    int
	searchOffset   int
	searchSemantic bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed sessions",
	Long: `Search the indexed sessions. Matching degrades in tiers: exact phrase,
then prefix, then fuzzy; each result names the tier that produced it.
Without a query the most recent messages are listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDataDir()
		if err != nil {
			return err
		}

		reader, err := index.OpenReader(dir)
		if errors.Is(err, types.ErrIndexMissing) {
			return fmt.Errorf("no index found under %s; run 'agentsearch index' first", dir)
		}
		if err != nil {
			return err
		}
		defer func() { _ = reader.Close() }()

		emb, err := embedder.NewFromEnv()
		if err != nil {
			return err
		}

		var resolver searcher.ProvenanceResolver
		if cfgPath, err := config.DefaultPath(); err == nil {
			if cfg, err := config.Load(cfgPath); err == nil {
				resolver = cfg.ProvenanceResolver(filepath.Join(dir, "staging"))
			}
		}

		hits, err := searcher.NewSearcher(reader, emb, resolver).Search(cmd.Context(), searcher.SearchRequest{
			Query:    strings.Join(args, " "),
			Filters:  searcher.SearchFilters{Agents: searchAgents},
			Limit:    searchLimit,
			Offset:   searchOffset,
			Semantic: searchSemantic,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(hits) == 0 {
			fmt.Fprintln(out, "No results")
			return nil
		}
		for i, hit := range hits {
			printHit(out, searchOffset+i+1, hit)
		}
		return nil
	},
}

func printHit(out io.Writer, n int, hit types.Hit) {
	title := hit.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(out, "%d. %s  [%s, %s]\n", n, title, hit.Agent, hit.Match)
	if hit.Snippet != "" {
		fmt.Fprintf(out, "   %s\n", strings.ReplaceAll(hit.Snippet, "\n", " "))
	}
	location := hit.SourcePath
	if hit.LineNo > 0 {
		location = fmt.Sprintf("%s:%d", location, hit.LineNo)
	}
	fmt.Fprintf(out, "   %s", location)
	if hit.CreatedAt != 0 {
		fmt.Fprintf(out, "  %s", time.UnixMilli(hit.CreatedAt).Format("2006-01-02 15:04"))
	}
	if hit.Provenance.Kind == types.SourceRemote {
		fmt.Fprintf(out, "  (from %s)", hit.Provenance.Source)
	}
	fmt.Fprintln(out)
}

func init() {
	searchCmd.Flags().StringSliceVar(&searchAgents, "agent", nil,
		"Restrict results to these agent slugs (repeatable)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "Ranked results to skip, for paging")
	searchCmd.Flags().BoolVar(&searchSemantic, "semantic", false,
		"Blend embedding similarity into the ranking")
	rootCmd.AddCommand(searchCmd)
}
