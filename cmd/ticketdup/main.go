// Ticketdup detects near-duplicate support tickets.
//
// Usage:
//
//	# Create the similarity index
//	ticketdup init
//
//	# Check a ticket and store it
//	ticketdup check tickets/PROJ-1234.txt
//
//	# Check without storing, five neighbours
//	ticketdup check --query-only --knn 5 tickets/PROJ-1234.txt
//
//	# Serve the HTTP API or the MCP stdio tool
//	ticketdup serve
//	ticketdup mcp
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "ticketdup",
		Short: "Detect near-duplicate support tickets",
		Long: `ticketdup embeds support ticket text and compares it against previously
stored tickets in a vector index. A stored ticket whose cosine distance is at
or below the threshold is reported as a duplicate.

Configuration is read from ~/.config/ticketdup/config.yaml (or --config) and
TICKETDUP_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(versionString() + "\n")

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default ~/.config/ticketdup/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(opts),
		newCheckCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return nil
		},
	}
}

func versionString() string {
	return fmt.Sprintf("ticketdup %s (commit %s, built %s)", version, gitCommit, buildDate)
}
