package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/agentsearch-mcp/internal/mcp"
	"github.com/dshills/agentsearch-mcp/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol server. The server reads JSON-RPC
messages on stdin and writes responses on stdout; logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDataDir()
		if err != nil {
			return err
		}

		log.Printf("agentsearch MCP server v%s starting (driver %s/%s)",
			version, storage.DriverName, storage.BuildMode)

		server, err := mcp.NewServer(dir)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Println("listening on stdio")
		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
