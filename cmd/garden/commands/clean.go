package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/garden/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the build info store and the result history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, _ := cmd.Flags().GetBool("history")
			all, _ := cmd.Flags().GetBool("all")

			opts := app.CleanOptions{}

			switch {
			case all:
				opts.Store = true
				opts.History = true
			case history:
				opts.History = true
			default:
				opts.Store = true
			}

			return c.app.Clean(cmd.Context(), opts)
		},
	}

	cmd.Flags().Bool("history", false, "Clean the result history")
	cmd.Flags().BoolP("all", "a", false, "Clean the build info store and the result history")

	return cmd
}
