package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.trai.ch/garden/internal/adapters/watcher"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
)

// DevOptions configuration for the Dev method.
type DevOptions struct {
	// Type is the task type processed for the targets. It defaults to deploy.
	Type        domain.TaskType
	Force       bool
	Concurrency int
}

// Dev processes the targets once and then again whenever a file of a module changes.
// Changed modules that declare a reload command are hot reloaded instead of redeployed.
// A change to the module topology reloads the project. Dev returns when ctx is done.
func (a *App) Dev(ctx context.Context, names []string, opts DevOptions) error {
	if opts.Type == "" {
		opts.Type = domain.TaskTypeDeploy
	}

	sess, err := a.openSession(".")
	if err != nil {
		return err
	}
	defer func() {
		a.closeSession(sess)
	}()

	if _, err := sess.registry.Select(names); err != nil {
		return err
	}

	a.logger.Info(fmt.Sprintf("dev mode: %s %s", opts.Type, joinNames(names)))
	runOpts := RunOptions{Force: opts.Force, Concurrency: opts.Concurrency}
	a.report(a.runTargets(ctx, sess, opts.Type, names, runOpts))
	runOpts.Force = false

	batches := make(chan watcher.Batch)
	debouncer := watcher.NewDebouncer(a.debounce, func(b watcher.Batch) {
		select {
		case batches <- b:
		case <-ctx.Done():
		}
	})

	root := sess.project.Root
	if err := a.watcher.Start(ctx, []string{root}, sess.registry.Modules(), debouncer.Add); err != nil {
		return err
	}
	defer func() {
		_ = a.watcher.Stop()
	}()

	a.logger.Info(fmt.Sprintf("watching %s for changes", root))

	for {
		select {
		case <-ctx.Done():
			return nil
		case b := <-batches:
			if b.Structural {
				next, err := a.openSession(root)
				if err != nil {
					a.logger.Error(err)
					continue
				}
				a.closeSession(sess)
				sess = next
				a.watcher.SetModules(sess.registry.Modules())
				a.logger.Info("project configuration changed, re-planning")
				a.report(a.runTargets(ctx, sess, opts.Type, names, runOpts))
				continue
			}

			a.logger.Info(fmt.Sprintf("changes in %s", strings.Join(b.Modules, ", ")))
			a.report(a.replan(ctx, sess, opts.Type, names, b.Modules, runOpts))
		}
	}
}

// replan processes hot reloads for changed modules that support them and the targets again
// when any other module changed.
func (a *App) replan(
	ctx context.Context, sess *session, typ domain.TaskType, names, changed []string, opts RunOptions,
) (domain.Results, error) {
	var roots []ports.Task
	full := false
	for _, name := range changed {
		m, err := sess.registry.Module(name)
		if err != nil {
			return nil, err
		}
		if _, ok := m.Action(domain.ActionReload); ok && typ == domain.TaskTypeDeploy {
			roots = append(roots, sess.factory.HotReload(m))
			continue
		}
		full = true
	}

	if full {
		targets, err := sess.tasksFor(ctx, typ, names, opts.Force)
		if err != nil {
			return nil, err
		}
		roots = append(roots, targets...)
	}

	if len(roots) == 0 {
		return nil, nil
	}
	return a.process(ctx, sess, roots, opts.Concurrency, true)
}

// report logs the error of a dev iteration. Task failures were already rendered.
func (a *App) report(_ domain.Results, err error) {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTasksFailed):
		a.logger.Warn("some tasks failed, waiting for changes")
	case errors.Is(err, domain.ErrRunCanceled):
	default:
		a.logger.Error(err)
	}
}
