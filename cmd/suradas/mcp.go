package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/suradas/internal/app"
	"github.com/teslashibe/suradas/pkg/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the assistant as MCP tools: run_command, describe_frame,
translate, describe_location, search and history.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Ensure logs and console output don't corrupt JSON-RPC on Stdout
		log.SetOutput(os.Stderr)
		rpcOut := os.Stdout
		os.Stdout = os.Stderr
		a, logger, err := setup(ctx, cmd, os.Stderr, app.Options{Media: true})
		if err != nil {
			return err
		}
		defer a.Shutdown()
		a.Run(ctx)

		srv := mcp.NewServer(a.Assistant, Version, logger)
		transport, _ := cmd.Flags().GetString("transport")
		switch transport {
		case "stdio":
			slog.Info("Starting suradas MCP server (stdio)")
			return srv.ServeStdio(ctx, os.Stdin, rpcOut)
		case "sse":
			port, _ := cmd.Flags().GetInt("port")
			addr := fmt.Sprintf(":%d", port)
			return srv.ServeSSE(ctx, addr, fmt.Sprintf("http://localhost:%d", port))
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
