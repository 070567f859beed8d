package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/agentsearch-mcp/internal/mcp"
	"github.com/dshills/agentsearch-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var dataDir string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agentsearch",
	Short: "Search your coding agent session histories",
	Long: `agentsearch indexes the local session histories of coding agents
(Amp, Claude Code, Codex CLI, Gemini CLI, OpenCode) and makes them
searchable from the command line or over MCP.

Quick Start:
  agentsearch index                 # Scan and index all detected agents
  agentsearch search "race condition"
  agentsearch detect                # Show which agents were found
  agentsearch serve                 # Start the MCP server on stdio`,
	Version: fmt.Sprintf("%s (built: %s, driver: %s/%s)",
		version, buildTime, storage.DriverName, storage.BuildMode),
}

func main() {
	// stdout carries results (and in serve mode the MCP protocol).
	log.SetOutput(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"Location of the store and index (default ~/.agentsearch)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// resolveDataDir applies the flag or falls back to the default location.
func resolveDataDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	return mcp.DefaultDataDir()
}
