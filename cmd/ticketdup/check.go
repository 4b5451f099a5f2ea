package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/ticketdup/internal/detector"
	"github.com/spf13/cobra"
)

type checkOptions struct {
	queryOnly bool
	knn       int
	threshold float64
	id        string
	jsonOut   bool
	linkBase  string
}

func newCheckCmd(opts *globalOptions) *cobra.Command {
	co := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Check a ticket for duplicates and store it",
		Long: `Embed the ticket in <file>, report the nearest stored tickets, and store it.

The ticket ID is the file name without its extension, so tickets/PROJ-42.txt
is stored as PROJ-42. Use "-" to read the ticket from stdin together with --id.

Examples:
  # Check and store
  ticketdup check tickets/PROJ-42.txt

  # Search only, five neighbours, a looser threshold
  ticketdup check --query-only --knn 5 --threshold 0.05 tickets/PROJ-42.txt

  # Link results to the issue tracker
  ticketdup check --link https://jira.example.com/browse/ tickets/PROJ-42.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, id, err := readTicket(cmd.InOrStdin(), args[0], co.id)
			if err != nil {
				return err
			}

			req := detector.Request{
				Document: detector.Document{ID: id, Text: text},
				Mode:     detector.QueryAndStore,
				K:        co.knn,
			}
			if co.queryOnly {
				req.Mode = detector.QueryOnly
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &co.threshold
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, opts, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			report, err := a.detector.Check(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if co.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				renderReport(out, report, a.detector.Index().Name, co.linkBase)
			}

			// The search result stands; the exit status still reports the failed store.
			if report.StoreErr != nil {
				return fmt.Errorf("storing ticket %s: %w", id, report.StoreErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&co.queryOnly, "query-only", false, "search without storing the ticket")
	cmd.Flags().IntVar(&co.knn, "knn", 0, "number of neighbours to report (default detector.k)")
	cmd.Flags().Float64Var(&co.threshold, "threshold", detector.DefaultThreshold, "cosine distance at or below which a neighbour is a duplicate")
	cmd.Flags().StringVar(&co.id, "id", "", "ticket ID (default: file name without extension)")
	cmd.Flags().BoolVar(&co.jsonOut, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&co.linkBase, "link", "", "URL prefix the ticket ID is appended to for each result")
	return cmd
}

// readTicket returns the ticket text and its ID. The text is passed on
// unmodified.
func readTicket(stdin io.Reader, path, id string) (string, string, error) {
	var (
		content []byte
		err     error
	)
	if path == "-" {
		content, err = io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(path)
		if err != nil {
			return "", "", fmt.Errorf("failed to read file %s: %w", path, err)
		}
		if id == "" {
			id = ticketID(path)
		}
	}
	return string(content), id, nil
}

// ticketID derives a ticket ID from a file path.
func ticketID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
