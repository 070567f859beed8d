package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dshills/agentsearch-mcp/internal/embedder"
	"github.com/dshills/agentsearch-mcp/internal/index"
	"github.com/dshills/agentsearch-mcp/internal/scanner"
	"github.com/dshills/agentsearch-mcp/internal/storage"
)

var indexFull bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan detected agents and index new sessions",
	Long: `Scan every detected agent's session store and add new conversations
to the search index. Scans are incremental: only messages newer than the
last indexed timestamp per agent are read. Use --full to re-read everything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDataDir()
		if err != nil {
			return err
		}

		store, err := storage.NewSQLiteStorage(filepath.Join(dir, "store.db"))
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer func() { _ = store.Close() }()

		emb, err := embedder.NewFromEnv()
		if err != nil {
			return err
		}
		ix, err := index.OpenOrCreate(dir, emb)
		if err != nil {
			return fmt.Errorf("failed to open index: %w", err)
		}
		defer func() { _ = ix.Close() }()

		stats, err := scanner.New(store, ix).Run(cmd.Context(), scanner.Options{Full: indexFull})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Indexed %d conversations (%d messages), run %s\n",
			stats.Conversations, stats.Messages, stats.RunID)

		slugs := make([]string, 0, len(stats.Agents))
		for slug := range stats.Agents {
			slugs = append(slugs, slug)
		}
		sort.Strings(slugs)
		for _, slug := range slugs {
			st := stats.Agents[slug]
			switch {
			case st.Err != "":
				fmt.Fprintf(out, "  %-12s error: %s\n", slug, st.Err)
			case !st.Detected:
				fmt.Fprintf(out, "  %-12s not detected\n", slug)
			default:
				fmt.Fprintf(out, "  %-12s %d conversations, %d messages\n",
					slug, st.Conversations, st.Messages)
			}
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexFull, "full", false,
		"Re-read every source, ignoring incremental high-water marks")
	rootCmd.AddCommand(indexCmd)
}
