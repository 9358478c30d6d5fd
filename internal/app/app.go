// Package app implements the application layer for garden.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.trai.ch/garden/internal/adapters/cas"
	"go.trai.ch/garden/internal/adapters/detector"
	"go.trai.ch/garden/internal/adapters/linear"
	"go.trai.ch/garden/internal/adapters/settings"
	"go.trai.ch/garden/internal/adapters/telemetry"
	"go.trai.ch/garden/internal/adapters/tui"
	"go.trai.ch/garden/internal/adapters/watcher"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/garden/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	executor     ports.Executor
	logger       ports.Logger
	cache        ports.ScopedCache
	vcs          ports.VCS
	watcher      ports.ChangeWatcher
	settings     settings.Settings

	stdout     io.Writer
	stderr     io.Writer
	outputMode string
	debounce   time.Duration
	executable func() (string, error)
	teaOptions []tea.ProgramOption
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	executor ports.Executor,
	log ports.Logger,
	cache ports.ScopedCache,
	vcs ports.VCS,
	changes ports.ChangeWatcher,
	s settings.Settings,
) *App {
	return &App{
		configLoader: loader,
		executor:     executor,
		logger:       log,
		cache:        cache,
		vcs:          vcs,
		watcher:      changes,
		settings:     s,
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		outputMode:   s.Output,
		debounce:     watcher.DefaultDebounceWindow,
		executable:   os.Executable,
	}
}

// WithOutput replaces the writers used for task output and reports.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// WithDebounceWindow replaces the window used to coalesce file changes in dev mode.
func (a *App) WithDebounceWindow(d time.Duration) *App {
	a.debounce = d
	return a
}

// WithExecutable replaces the lookup of the binary used to spawn the daemon.
func (a *App) WithExecutable(fn func() (string, error)) *App {
	a.executable = fn
	return a
}

// WithTeaOptions adds options to the interactive task view program.
func (a *App) WithTeaOptions(opts ...tea.ProgramOption) *App {
	a.teaOptions = append(a.teaOptions, opts...)
	return a
}

// configurableLogger is implemented by loggers that can switch format and verbosity.
type configurableLogger interface {
	SetJSON(enable bool)
	SetVerbose(enable bool)
}

// Configure applies the global output flags. An empty mode keeps the settings value.
func (a *App) Configure(mode string, verbose bool) {
	if mode != "" {
		a.outputMode = mode
	}
	if l, ok := a.logger.(configurableLogger); ok {
		l.SetJSON(a.mode() == detector.ModeJSON)
		l.SetVerbose(verbose)
	}
}

func (a *App) mode() detector.OutputMode {
	return detector.ResolveMode(detector.DetectEnvironment(), a.outputMode)
}

// newRenderer picks the renderer for mode. Quitting the interactive view calls cancel.
func (a *App) newRenderer(ctx context.Context, mode detector.OutputMode, cancel context.CancelFunc) ports.Renderer {
	switch mode {
	case detector.ModeJSON:
		return linear.NewJSONRenderer(a.stdout)
	case detector.ModeInteractive:
		opts := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(a.stderr)}, a.teaOptions...)
		return tui.NewRenderer(tui.NewModel(cancel), opts...)
	default:
		return linear.NewRendererWithProfile(a.stdout, a.stderr, mode.Profile())
	}
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	// Force reprocesses tasks whose version was already recorded.
	Force bool
	// Concurrency caps the number of tasks processed at once. Zero uses the configured default.
	Concurrency int
}

// Run creates a task of type typ for every named module, or every module when names is empty,
// and processes them with their dependencies.
func (a *App) Run(ctx context.Context, typ domain.TaskType, names []string, opts RunOptions) error {
	if len(names) == 0 && requiresTargets(typ) {
		return zerr.With(zerr.Wrap(domain.ErrNoTargetsSpecified, "select modules"), "type", string(typ))
	}

	sess, err := a.openSession(".")
	if err != nil {
		return err
	}
	defer a.closeSession(sess)

	_, err = a.runTargets(ctx, sess, typ, names, opts)
	return err
}

// Delete removes the deployed services of the named modules.
func (a *App) Delete(ctx context.Context, names []string, opts RunOptions) error {
	return a.Run(ctx, domain.TaskTypeDeleteService, names, opts)
}

func requiresTargets(typ domain.TaskType) bool {
	return typ == domain.TaskTypeRun || typ == domain.TaskTypeDeleteService
}

func (a *App) runTargets(
	ctx context.Context, sess *session, typ domain.TaskType, names []string, opts RunOptions,
) (domain.Results, error) {
	roots, err := sess.tasksFor(ctx, typ, names, opts.Force)
	if err != nil {
		return nil, err
	}
	return a.process(ctx, sess, roots, opts.Concurrency, true)
}

// process runs roots through a scheduler observed by a renderer for the current output mode.
// When record is set the results are persisted to the session history.
func (a *App) process(
	ctx context.Context, sess *session, roots []ports.Task, concurrency int, record bool,
) (domain.Results, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	renderer := a.newRenderer(ctx, a.mode(), cancel)

	tp := telemetry.NewProvider(renderer)
	defer func() {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
	}()
	tracer := telemetry.NewOTelTracerFrom(tp, telemetry.InstrumentationName).WithRenderer(renderer)
	sched := scheduler.NewScheduler(tracer)

	var results domain.Results
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(gctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	g.Go(func() error {
		defer func() {
			_ = renderer.Stop()
		}()

		var err error
		results, err = sched.Process(gctx, roots, ports.ProcessOptions{
			ConcurrencyLimit: a.concurrency(sess.project, concurrency),
		})
		return err
	})

	runErr := g.Wait()

	if record && len(results) > 0 {
		a.record(ctx, sess, results)
	}
	if runErr != nil {
		return results, runErr
	}
	return results, failedError(results)
}

func (a *App) record(ctx context.Context, sess *session, results domain.Results) {
	ctx = context.WithoutCancel(ctx)
	if err := sess.history.Record(ctx, uuid.NewString(), results); err != nil {
		a.logger.Warn(fmt.Sprintf("failed to record results: %v", err))
		return
	}
	if keep := a.settings.History.Keep; keep > 0 {
		if err := sess.history.Prune(ctx, keep); err != nil {
			a.logger.Warn(fmt.Sprintf("failed to prune result history: %v", err))
		}
	}
}

func failedError(results domain.Results) error {
	failed := results.Failed()
	if len(failed) == 0 {
		return nil
	}
	keys := make([]string, len(failed))
	for i, r := range failed {
		keys[i] = string(r.Key)
	}
	return zerr.With(zerr.Wrap(domain.ErrTasksFailed, "run failed"), "tasks", keys)
}

// concurrency picks the limit from the flag, the project config, the user settings and finally
// the number of CPUs.
func (a *App) concurrency(project *domain.Project, flag int) int {
	switch {
	case flag > 0:
		return flag
	case project != nil && project.Concurrency > 0:
		return project.Concurrency
	case a.settings.Concurrency > 0:
		return a.settings.Concurrency
	default:
		return runtime.NumCPU()
	}
}

// Result prints the most recent stored result of the task identified by key.
func (a *App) Result(ctx context.Context, key string) error {
	if _, _, err := domain.ParseTaskKey(key); err != nil {
		return err
	}

	sess, err := a.openSession(".")
	if err != nil {
		return err
	}
	defer a.closeSession(sess)

	t := sess.factory.GetTaskResult(domain.TaskKey(key))
	results, err := a.process(ctx, sess, []ports.Task{t}, 1, false)
	if err != nil {
		if res, ok := results.ByKey(t.Key()); ok && res.Err != nil {
			return res.Err
		}
		return err
	}

	res, _ := results.ByKey(t.Key())
	return a.printJSON(res.Output)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return zerr.Wrap(err, "failed to encode output")
	}
	return nil
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	Store   bool
	History bool
}

// Clean removes the build info store and the result history of the current project.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	root, err := a.configLoader.DiscoverRoot(".")
	if err != nil {
		return err
	}

	var errs error

	remove := func(name string, fn func() error) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := fn(); err != nil {
			errs = errors.Join(errs, err)
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	if options.Store {
		remove("build info store", cas.NewStore(domain.DefaultStorePath(root)).Clear)
	}

	if options.History {
		remove("result history", func() error {
			path := a.historyPath(root)
			if err := os.RemoveAll(path); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to remove result history"), "path", path)
			}
			for _, suffix := range []string{"-wal", "-shm"} {
				_ = os.Remove(path + suffix)
			}
			return nil
		})
	}

	a.cache.InvalidateDown(root)
	return errs
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "all modules"
	}
	return strings.Join(names, ", ")
}
