package app

import (
	"context"
	"fmt"

	"go.trai.ch/garden/internal/adapters/cas"
	"go.trai.ch/garden/internal/adapters/config"
	"go.trai.ch/garden/internal/adapters/history"
	"go.trai.ch/garden/internal/adapters/vcs"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/garden/internal/engine/locks"
	"go.trai.ch/garden/internal/engine/tasks"
	"go.trai.ch/garden/internal/engine/version"
	"go.trai.ch/zerr"
)

// deployAttempts is how often a deploy command is tried when it times out.
const deployAttempts = 2

// session holds the collaborators bound to one loaded project.
type session struct {
	project  *domain.Project
	registry *config.Registry
	resolver *version.Resolver
	history  *history.Store
	factory  *tasks.Factory
}

// ignoreAwareVCS is implemented by VCS backends that honour project ignore rules.
type ignoreAwareVCS interface {
	SetIgnore(ignore *vcs.Ignore)
}

// ignoreAwareWatcher is implemented by change watchers that accept extra ignore globs.
type ignoreAwareWatcher interface {
	SetIgnorePatterns(patterns ...string)
}

// openSession loads the project containing cwd and wires the per-project collaborators.
func (a *App) openSession(cwd string) (*session, error) {
	project, err := a.configLoader.Load(cwd)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}

	if v, ok := a.vcs.(ignoreAwareVCS); ok {
		ignore, err := vcs.LoadIgnore(project.Root, project.Ignore...)
		if err != nil {
			return nil, err
		}
		v.SetIgnore(ignore)
	}
	if w, ok := a.watcher.(ignoreAwareWatcher); ok {
		w.SetIgnorePatterns(project.Ignore...)
	}

	hist, err := history.Open(a.historyPath(project.Root))
	if err != nil {
		return nil, err
	}

	registry := config.NewRegistry(project)
	resolver := version.NewResolver(a.vcs, a.cache, registry)
	store := cas.NewStore(domain.DefaultStorePath(project.Root))

	handlers := tasks.NewHandlers(tasks.NewCommandRunner(a.executor, locks.NewNamed(), a.logger).Run)
	handlers.Register(domain.ActionStatus, tasks.Status())
	handlers.Register(domain.ActionDeploy, tasks.Retry(deployAttempts, tasks.Transient))

	factory := tasks.NewFactory(tasks.Config{
		Registry:  registry,
		Resolver:  resolver,
		Store:     store,
		History:   hist,
		Executor:  a.executor,
		Handlers:  handlers,
		Providers: project.Providers,
	})

	a.logger.Debug(fmt.Sprintf("loaded %d module(s) from %s", len(project.Modules), project.Root))

	return &session{
		project:  project,
		registry: registry,
		resolver: resolver,
		history:  hist,
		factory:  factory,
	}, nil
}

func (a *App) closeSession(s *session) {
	if err := s.history.Close(); err != nil {
		a.logger.Warn(fmt.Sprintf("failed to close result history: %v", err))
	}
}

func (a *App) historyPath(root string) string {
	if p := a.settings.History.Path; p != "" {
		return p
	}
	return domain.DefaultHistoryPath(root)
}

// tasksFor creates one task of type typ per selected module.
func (s *session) tasksFor(ctx context.Context, typ domain.TaskType, names []string, force bool) ([]ports.Task, error) {
	modules, err := s.registry.Select(names)
	if err != nil {
		return nil, err
	}

	roots := make([]ports.Task, 0, len(modules))
	for _, m := range modules {
		t, err := s.factory.ForModule(ctx, typ, m, force)
		if err != nil {
			return nil, err
		}
		roots = append(roots, t)
	}
	return roots, nil
}
