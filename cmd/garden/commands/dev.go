package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/garden/internal/app"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/zerr"
)

func (c *CLI) newDevCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev [modules...]",
		Short: "Deploy modules and redeploy or hot reload them when their files change",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("type")
			typ, err := domain.ParseTaskType(name)
			if err != nil {
				return err
			}
			switch typ {
			case domain.TaskTypeBuild, domain.TaskTypeTest, domain.TaskTypeDeploy:
			default:
				return zerr.With(zerr.Wrap(domain.ErrUnknownTaskType, "dev supports build, test and deploy"), "type", name)
			}

			opts := runOptions(cmd)
			return c.app.Dev(cmd.Context(), args, app.DevOptions{
				Type:        typ,
				Force:       opts.Force,
				Concurrency: opts.Concurrency,
			})
		},
	}
	cmd.Flags().StringP("type", "t", string(domain.TaskTypeDeploy), "Task type processed on every change: build, test or deploy")
	addRunFlags(cmd)
	return cmd
}
