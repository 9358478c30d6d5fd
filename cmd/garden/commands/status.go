package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [modules...]",
		Short: "Show the state of the deployed services of modules",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Status(cmd.Context(), args)
		},
	}
}

func (c *CLI) newResultCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "result <task-key>",
		Short:   "Print the most recent stored result of a task, e.g. build.api",
		Args:    cobra.ExactArgs(1),
		Example: "  garden result deploy.api",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Result(cmd.Context(), args[0])
		},
	}
}

func (c *CLI) newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the most recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return c.app.History(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
	return cmd
}
