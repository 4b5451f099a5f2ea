package main

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/spf13/cobra"
)

func newInitCmd(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the similarity index",
		Long: `Create the vector index tickets are stored in and searched against.

With --force an existing index is dropped first, together with every stored
ticket. Without it, an existing index is an error.

Examples:
  # Create the index
  ticketdup init

  # Start over with an empty index
  ticketdup init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, appOptions{lazyEmbeddings: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.detector.InitIndex(ctx, force); err != nil {
				if errors.Is(err, errkind.ErrIndexExists) {
					return fmt.Errorf("%w (use --force to drop and recreate it)", err)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("Created index"), nameStyle.Render(a.detector.Index().Name))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "drop the existing index and its tickets first")
	return cmd
}
