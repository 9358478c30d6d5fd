package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.trai.ch/garden/internal/adapters/daemon"
	"go.trai.ch/garden/internal/adapters/detector"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/zerr"
)

// ServeDaemon runs the daemon of the current project until it is stopped, ctx is done or the
// inactivity timeout expires. The daemon keeps module versions warm and drops them on change.
func (a *App) ServeDaemon(ctx context.Context) error {
	sess, err := a.openSession(".")
	if err != nil {
		return err
	}

	backend := &backend{app: a, sess: sess}
	defer backend.close()

	root := sess.project.Root
	if a.connector().IsRunning(ctx, root) {
		return zerr.With(zerr.Wrap(domain.ErrDaemonStartFailed, "daemon is already running"), "root", root)
	}

	if err := a.watcher.Start(ctx, []string{root}, sess.registry.Modules(), backend.onChange); err != nil {
		return err
	}
	defer func() {
		_ = a.watcher.Stop()
	}()

	server := daemon.NewServer(daemon.Config{
		SocketPath: a.connector().SocketPath(root),
		HTTPAddr:   a.settings.Daemon.HTTPAddr,
		Lifecycle:  daemon.NewLifecycle(a.settings.Daemon.InactivityTimeout.Duration),
		Backend:    backend,
		Logger:     a.logger,
	})
	if err := server.Listen(); err != nil {
		return err
	}

	a.logger.Info(fmt.Sprintf("daemon serving %s on %s", root, a.connector().SocketPath(root)))
	return server.Serve(ctx)
}

// StartDaemon starts the daemon of the current project unless it is already running.
func (a *App) StartDaemon(ctx context.Context) error {
	root, err := a.configLoader.DiscoverRoot(".")
	if err != nil {
		return err
	}

	client, err := a.connector().Connect(ctx, root)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	a.logger.Info("daemon is running")
	return nil
}

// DaemonStatus prints the status of the daemon of the current project.
func (a *App) DaemonStatus(ctx context.Context) error {
	client, err := a.dial(ctx)
	if errors.Is(err, domain.ErrDaemonNotRunning) {
		if a.mode() == detector.ModeJSON {
			return a.printJSON(map[string]bool{"running": false})
		}
		a.logger.Info("daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	status, err := client.Status(ctx)
	if err != nil {
		return err
	}

	if a.mode() == detector.ModeJSON {
		return a.printJSON(status)
	}

	a.logger.Info(fmt.Sprintf("daemon is running (pid %d)", status.PID))
	a.logger.Info(fmt.Sprintf("  uptime:         %s", status.Uptime.Round(time.Second)))
	a.logger.Info(fmt.Sprintf("  last activity:  %s", status.LastActivity.Local().Format(time.DateTime)))
	a.logger.Info(fmt.Sprintf("  idle remaining: %s", status.IdleRemaining.Round(time.Second)))
	a.logger.Info(fmt.Sprintf("  modules:        %d", status.Modules))
	a.logger.Info(fmt.Sprintf("  invalidations:  %d", status.Invalidations))
	return nil
}

// DaemonModules prints the module versions the daemon currently holds.
func (a *App) DaemonModules(ctx context.Context) error {
	client, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	modules, err := client.Modules(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(modules)
}

// DaemonResult prints the most recent stored result of the task identified by key as served by
// the running daemon.
func (a *App) DaemonResult(ctx context.Context, key string) error {
	if _, _, err := domain.ParseTaskKey(key); err != nil {
		return err
	}

	client, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	res, err := client.Result(ctx, domain.TaskKey(key))
	if err != nil {
		return err
	}
	return a.printJSON(res)
}

// StopDaemon asks the daemon of the current project to shut down.
func (a *App) StopDaemon(ctx context.Context) error {
	client, err := a.dial(ctx)
	if errors.Is(err, domain.ErrDaemonNotRunning) {
		a.logger.Info("daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Shutdown(ctx); err != nil {
		return err
	}
	a.logger.Info("daemon stopped")
	return nil
}

func (a *App) connector() *daemon.Connector {
	exe, err := a.executable()
	if err != nil {
		exe = "garden"
	}
	return daemon.NewConnector(exe, a.settings.Daemon.HTTPAddr).WithSocketPath(a.settings.Daemon.Socket)
}

// dial connects to a running daemon without starting one.
func (a *App) dial(ctx context.Context) (*daemon.Client, error) {
	root, err := a.configLoader.DiscoverRoot(".")
	if err != nil {
		return nil, err
	}

	client, err := daemon.Dial(a.connector().SocketPath(root), a.settings.Daemon.HTTPAddr)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// backend exposes the daemon session to the daemon API.
type backend struct {
	app           *App
	mu            sync.RWMutex
	sess          *session
	invalidations atomic.Int64
}

func (b *backend) session() *session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sess
}

// onChange counts invalidations and reloads the project when its topology changed.
// The change watcher has already dropped the affected cache entries.
func (b *backend) onChange(module *domain.Module, structural bool) {
	b.invalidations.Add(1)

	if module != nil {
		b.app.logger.Debug(fmt.Sprintf("invalidated %s", module.Name))
	}
	if !structural {
		return
	}

	current := b.session()
	next, err := b.app.openSession(current.project.Root)
	if err != nil {
		b.app.logger.Error(zerr.Wrap(err, "failed to reload project"))
		return
	}

	b.mu.Lock()
	old := b.sess
	b.sess = next
	b.mu.Unlock()

	b.app.closeSession(old)
	b.app.watcher.SetModules(next.registry.Modules())
	b.app.logger.Info(fmt.Sprintf("project reloaded with %d module(s)", len(next.project.Modules)))
}

func (b *backend) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.app.closeSession(b.sess)
}

func (b *backend) ModuleCount() int {
	return len(b.session().registry.Modules())
}

func (b *backend) Modules(ctx context.Context) ([]daemon.ModuleState, error) {
	sess := b.session()
	modules := sess.registry.Modules()

	out := make([]daemon.ModuleState, 0, len(modules))
	for _, m := range modules {
		deps, err := sess.registry.BuildDependencies(m)
		if err != nil {
			return nil, err
		}
		v, err := sess.resolver.ResolveVersion(ctx, m, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, daemon.ModuleState{
			Name:    m.Name,
			Path:    m.Path,
			Version: v.VersionString,
			Dirty:   !v.Stable(),
		})
	}
	return out, nil
}

func (b *backend) Invalidations() int64 {
	return b.invalidations.Load()
}

func (b *backend) Result(ctx context.Context, key domain.TaskKey) (*domain.StoredResult, error) {
	return b.session().history.Latest(ctx, key)
}
