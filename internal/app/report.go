package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/garden/internal/adapters/detector"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/engine/tasks"
	"go.trai.ch/garden/internal/ui/output"
	"go.trai.ch/garden/internal/ui/style"
)

// Status prints the observed state of the services of the named modules.
func (a *App) Status(ctx context.Context, names []string) error {
	sess, err := a.openSession(".")
	if err != nil {
		return err
	}
	defer a.closeSession(sess)

	roots, err := sess.tasksFor(ctx, domain.TaskTypeGetStatus, names, false)
	if err != nil {
		return err
	}

	results, runErr := a.process(ctx, sess, roots, 0, true)

	var statuses []tasks.StatusOutput
	for _, r := range results.Unique() {
		if s, ok := r.Output.(tasks.StatusOutput); ok {
			statuses = append(statuses, s)
		}
	}

	if a.mode() == detector.ModeJSON {
		if err := a.printJSON(statuses); err != nil {
			return err
		}
		return runErr
	}

	a.printStatuses(statuses)
	return runErr
}

func (a *App) printStatuses(statuses []tasks.StatusOutput) {
	out := output.NewWithProfile(a.stdout, a.mode().Profile())

	width := 0
	for _, s := range statuses {
		width = max(width, lipgloss.Width(s.Module))
	}
	name := lipgloss.NewStyle().Width(width + 2)

	for _, s := range statuses {
		var color termenv.Color = termenv.ANSIBrightBlack
		icon := style.Dash
		switch s.State {
		case tasks.ServiceReady:
			icon, color = style.Check, termenv.ANSIGreen
		case tasks.ServiceUnhealthy:
			icon, color = style.Cross, termenv.ANSIRed
		}
		_, _ = fmt.Fprintf(a.stdout, "%s %s%s\n", out.String(icon).Foreground(color), name.Render(s.Module), s.State)
	}
}

// History prints the most recent runs recorded for the current project, newest first.
func (a *App) History(ctx context.Context, limit int) error {
	sess, err := a.openSession(".")
	if err != nil {
		return err
	}
	defer a.closeSession(sess)

	runs, err := sess.history.Runs(ctx, limit)
	if err != nil {
		return err
	}

	if a.mode() == detector.ModeJSON {
		return a.printJSON(runs)
	}

	if len(runs) == 0 {
		a.logger.Info("no runs recorded yet")
		return nil
	}

	out := output.NewWithProfile(a.stdout, a.mode().Profile())
	for _, run := range runs {
		icon := out.String(style.Check).Foreground(termenv.ANSIGreen)
		if run.Failed > 0 {
			icon = out.String(style.Cross).Foreground(termenv.ANSIRed)
		}
		_, _ = fmt.Fprintf(a.stdout, "%s %s  %s  %d task(s), %d failed\n",
			icon, run.RunID, run.StartedAt.Local().Format(time.DateTime), run.Tasks, run.Failed)
	}
	return nil
}
