package main

import (
	"context"

	mcpserver "github.com/fyrsmithlabs/ticketdup/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the ticket_check MCP tool on stdio",
		Long: `Run an MCP server on stdin/stdout exposing the ticket_check tool.

Logs always go to stderr in this mode. Example client configuration:

  {"command": "ticketdup", "args": ["mcp"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, appOptions{stdoutReserved: true})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			srv, err := mcpserver.NewServer(&mcpserver.Config{
				Name:    "ticketdup",
				Version: version,
				Logger:  a.logger,
			}, a.detector)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
