package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/garden/internal/app"
	"go.trai.ch/garden/internal/core/domain"
)

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("force", "f", false, "Process tasks even when their version was already recorded")
	cmd.Flags().IntP("concurrency", "j", 0, "Maximum number of tasks processed at once (default: project setting or CPU count)")
}

func runOptions(cmd *cobra.Command) app.RunOptions {
	force, _ := cmd.Flags().GetBool("force")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	return app.RunOptions{Force: force, Concurrency: concurrency}
}

// newTaskCmd creates a command processing one task type for the named modules, or all modules.
func (c *CLI) newTaskCmd(typ domain.TaskType, use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Run(cmd.Context(), typ, args, runOptions(cmd))
		},
	}
	addRunFlags(cmd)
	return cmd
}

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <modules...>",
		Short: "Run modules after building them",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return nil
			}
			return c.app.Run(cmd.Context(), domain.TaskTypeRun, args, runOptions(cmd))
		},
	}
	addRunFlags(cmd)
	return cmd
}

func (c *CLI) newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <modules...>",
		Short: "Delete the deployed services of modules and of everything depending on them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Delete(cmd.Context(), args, runOptions(cmd))
		},
	}
	cmd.Flags().IntP("concurrency", "j", 0, "Maximum number of tasks processed at once")
	return cmd
}
