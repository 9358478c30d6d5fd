// Package commands implements the CLI commands for the garden orchestrator.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/garden/internal/adapters/settings"
	"go.trai.ch/garden/internal/app"
	"go.trai.ch/garden/internal/build"
	"go.trai.ch/garden/internal/core/domain"
)

// CLI represents the command line interface for garden.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Configure(mode string, verbose bool)
	Run(ctx context.Context, typ domain.TaskType, names []string, opts app.RunOptions) error
	Delete(ctx context.Context, names []string, opts app.RunOptions) error
	Status(ctx context.Context, names []string) error
	Result(ctx context.Context, key string) error
	History(ctx context.Context, limit int) error
	Dev(ctx context.Context, names []string, opts app.DevOptions) error
	Clean(ctx context.Context, opts app.CleanOptions) error
	ServeDaemon(ctx context.Context) error
	StartDaemon(ctx context.Context) error
	DaemonStatus(ctx context.Context) error
	DaemonModules(ctx context.Context) error
	DaemonResult(ctx context.Context, key string) error
	StopDaemon(ctx context.Context) error
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "garden",
		Short:         "Build, test and deploy the modules of a project",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	// Persistent flags come first so the version flag leaves -v to --verbose.
	rootCmd.PersistentFlags().StringP("output", "o", "",
		fmt.Sprintf("Output mode: %s, %s, %s or %s",
			settings.OutputAuto, settings.OutputInteractive, settings.OutputLinear, settings.OutputJSON))
	rootCmd.PersistentFlags().Bool("ci", false, "Use linear output (shorthand for --output=linear)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show debug messages")

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		mode, _ := cmd.Flags().GetString("output")
		ci, _ := cmd.Flags().GetBool("ci")
		verbose, _ := cmd.Flags().GetBool("verbose")
		if ci {
			mode = settings.OutputLinear
		}
		c.app.Configure(mode, verbose)
	}

	rootCmd.AddCommand(c.newTaskCmd(domain.TaskTypeBuild, "build [modules...]", "Build modules and their build dependencies"))
	rootCmd.AddCommand(c.newTaskCmd(domain.TaskTypeTest, "test [modules...]", "Test modules against their deployed service dependencies"))
	rootCmd.AddCommand(c.newTaskCmd(domain.TaskTypeDeploy, "deploy [modules...]", "Deploy modules and their service dependencies"))
	rootCmd.AddCommand(c.newTaskCmd(domain.TaskTypePublish, "publish [modules...]", "Publish the build artifacts of modules"))
	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newDeleteCmd())
	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newDevCmd())
	rootCmd.AddCommand(c.newResultCmd())
	rootCmd.AddCommand(c.newHistoryCmd())
	rootCmd.AddCommand(c.newDaemonCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
