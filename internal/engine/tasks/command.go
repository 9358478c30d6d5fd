package tasks

import (
	"context"
	"io"
	"maps"
	"slices"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/garden/internal/engine/locks"
	"go.trai.ch/zerr"
)

// CommandRunner is the base of every handler chain: it runs the module command for an action.
type CommandRunner struct {
	executor ports.Executor
	locks    *locks.Named
	logger   ports.Logger
}

// NewCommandRunner creates a CommandRunner. Commands declaring a tool hold the named lock for
// that tool while they run.
func NewCommandRunner(executor ports.Executor, toolLocks *locks.Named, logger ports.Logger) *CommandRunner {
	return &CommandRunner{executor: executor, locks: toolLocks, logger: logger}
}

// Run implements Next.
func (c *CommandRunner) Run(ctx context.Context, req *Request) (any, error) {
	out := ActionOutput{Module: req.Module.Name, Action: req.Action, Version: req.Version}

	spec, ok := req.Module.Action(req.Action)
	if !ok {
		c.logger.Debug("no " + string(req.Action) + " command for " + req.Module.Name)
		return out, nil
	}

	if spec.Tool != "" {
		unlock, ok := c.locks.TryLock(spec.Tool)
		if !ok {
			c.logger.Debug(string(req.Key) + " waits for the " + spec.Tool + " lock")
			var err error
			if unlock, err = c.locks.Lock(ctx, spec.Tool); err != nil {
				return nil, zerr.With(zerr.Wrap(err, "wait for tool lock"), "tool", spec.Tool)
			}
		}
		defer unlock()
	}

	cmd := &domain.Command{
		Name: string(req.Key),
		Dir:  req.Module.Path,
		Args: spec.Command,
		Env:  commandEnv(req, spec),
	}

	var w io.Writer = io.Discard
	if span, ok := ports.SpanFromContext(ctx); ok {
		w = span
	}

	if err := c.executor.Execute(ctx, cmd, w, w); err != nil {
		return nil, zerr.With(err, "module", req.Module.Name)
	}

	out.Executed = true
	return out, nil
}

// commandEnv merges the garden variables, the action environment and the request environment,
// later sources winning. The result is sorted.
func commandEnv(req *Request, spec domain.ActionSpec) []string {
	env := map[string]string{
		"GARDEN_MODULE_NAME": req.Module.Name,
		"GARDEN_ACTION":      string(req.Action),
	}
	if req.Version != "" {
		env["GARDEN_MODULE_VERSION"] = req.Version
	}
	maps.Copy(env, spec.Environment)
	maps.Copy(env, req.Env)
	return sortedEnv(env)
}

func sortedEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}
