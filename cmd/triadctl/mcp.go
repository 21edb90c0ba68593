// Package main implements the MCP bridge command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/triad/pkg/mcp/stdio"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// mcpCmd bridges MCP clients to the daemon over stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP stdio bridge to the triad daemon",
	Long: `Run an MCP server on stdin/stdout that forwards tool calls to the
triadd HTTP server. Point an MCP client at this command to start and
inspect workflows through tools.

The daemon must already be running; the bridge holds no state of its own.

Examples:
  # Bridge to the default daemon
  triadctl mcp

  # Bridge to a different server
  triadctl mcp --server http://localhost:8080`,
	RunE: runMCP,
}

// runMCP handles the mcp command
func runMCP(cmd *cobra.Command, args []string) error {
	srv, err := stdio.NewServer(serverURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return srv.Run(ctx)
}
