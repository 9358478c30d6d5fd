package tasks

import (
	"context"
	"io"
	"maps"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/garden/internal/engine/locks"
	"go.trai.ch/zerr"
)

// Config holds the collaborators a Factory hands to the tasks it creates.
type Config struct {
	Registry  ports.ModuleRegistry
	Resolver  ports.VersionResolver
	Store     ports.BuildInfoStore
	History   ports.ResultHistory
	Executor  ports.Executor
	Handlers  *Handlers
	Guard     *locks.CreationGuard
	Providers []*domain.Provider
}

// Factory creates tasks. Every task gets a fresh time-ordered uid, so among instances sharing
// a key the one created last has the highest id.
type Factory struct {
	registry  ports.ModuleRegistry
	resolver  ports.VersionResolver
	store     ports.BuildInfoStore
	history   ports.ResultHistory
	executor  ports.Executor
	handlers  *Handlers
	guard     *locks.CreationGuard
	providers map[string]*domain.Provider
	now       func() time.Time
}

// NewFactory creates a Factory from cfg.
func NewFactory(cfg Config) *Factory {
	providers := make(map[string]*domain.Provider, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers[p.Name] = p
	}
	guard := cfg.Guard
	if guard == nil {
		guard = locks.NewCreationGuard()
	}

	return &Factory{
		registry:  cfg.Registry,
		resolver:  cfg.Resolver,
		store:     cfg.Store,
		history:   cfg.History,
		executor:  cfg.Executor,
		handlers:  cfg.Handlers,
		guard:     guard,
		providers: providers,
		now:       time.Now,
	}
}

// ForKey creates the task identified by key, e.g. "build.api".
func (f *Factory) ForKey(ctx context.Context, key domain.TaskKey, force bool) (ports.Task, error) {
	typ, name, err := domain.ParseTaskKey(string(key))
	if err != nil {
		return nil, err
	}

	switch typ {
	case domain.TaskTypeResolveProvider:
		return f.ResolveProvider(name)
	case domain.TaskTypeGetTaskResult:
		return f.GetTaskResult(domain.TaskKey(name)), nil
	}

	m, err := f.registry.Module(name)
	if err != nil {
		return nil, err
	}
	return f.ForModule(ctx, typ, m, force)
}

// ForModule creates a task of type typ acting on m.
func (f *Factory) ForModule(ctx context.Context, typ domain.TaskType, m *domain.Module, force bool) (ports.Task, error) {
	switch typ {
	case domain.TaskTypeBuild:
		return f.Build(ctx, m, force)
	case domain.TaskTypeTest:
		return f.Test(ctx, m, force)
	case domain.TaskTypeDeploy:
		return f.Deploy(ctx, m, force)
	case domain.TaskTypeRun:
		return f.Run(ctx, m, force)
	case domain.TaskTypePublish:
		return f.Publish(ctx, m, force)
	case domain.TaskTypeDeleteService:
		return f.DeleteService(m), nil
	case domain.TaskTypeGetStatus:
		return f.GetStatus(m), nil
	case domain.TaskTypeHotReload:
		return f.HotReload(m), nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownTaskType, "create module task"), "type", string(typ))
	}
}

// Build creates a build task. Its dependencies are the builds of m's build dependencies.
// Processing is skipped when the store records the same stable version.
func (f *Factory) Build(ctx context.Context, m *domain.Module, force bool) (ports.Task, error) {
	v, err := f.version(ctx, m)
	if err != nil {
		return nil, err
	}

	t := f.newTask(domain.TaskTypeBuild, m.Name, force, v.VersionString)
	t.dependencies = func(ctx context.Context) ([]ports.Task, error) {
		return f.buildDependencies(ctx, m, force)
	}
	t.process = f.recorded(t, m, v, domain.ActionBuild)
	return t, nil
}

// Test creates a test task depending on m's build and the deploys of its service dependencies.
func (f *Factory) Test(ctx context.Context, m *domain.Module, force bool) (ports.Task, error) {
	v, err := f.version(ctx, m)
	if err != nil {
		return nil, err
	}

	t := f.newTask(domain.TaskTypeTest, m.Name, force, v.VersionString)
	t.dependencies = func(ctx context.Context) ([]ports.Task, error) {
		return f.buildAndServices(ctx, m, force)
	}
	t.process = f.recorded(t, m, v, domain.ActionTest)
	return t, nil
}

// Deploy creates a deploy task depending on m's build, the deploys of its service dependencies
// and, when m names one, the resolution of its provider.
func (f *Factory) Deploy(ctx context.Context, m *domain.Module, force bool) (ports.Task, error) {
	v, err := f.version(ctx, m)
	if err != nil {
		return nil, err
	}

	t := f.newTask(domain.TaskTypeDeploy, m.Name, force, v.VersionString)
	t.dependencies = func(ctx context.Context) ([]ports.Task, error) {
		deps, err := f.buildAndServices(ctx, m, force)
		if err != nil {
			return nil, err
		}
		if m.Provider == "" {
			return deps, nil
		}
		rp, err := f.ResolveProvider(m.Provider)
		if err != nil {
			return nil, zerr.With(err, "module", m.Name)
		}
		return append(deps, rp), nil
	}
	t.process = func(ctx context.Context, deps map[domain.TaskKey]*domain.TaskResult) (any, error) {
		env := map[string]string{}
		if m.Provider != "" {
			if res, ok := deps[domain.NewTaskKey(domain.TaskTypeResolveProvider, m.Provider)]; ok {
				if po, ok := res.Output.(ProviderOutput); ok {
					maps.Copy(env, po.Environment)
				}
			}
			if err := f.ensureNamespace(ctx, m); err != nil {
				return nil, err
			}
		}
		if m.Namespace != "" {
			env["GARDEN_NAMESPACE"] = m.Namespace
		}

		return f.handlers.Handle(ctx, &Request{
			Action:  domain.ActionDeploy,
			Module:  m,
			Key:     t.key,
			Version: t.version,
			Env:     env,
			Deps:    deps,
		})
	}
	return t, nil
}

// Run creates a run task depending on m's build.
func (f *Factory) Run(ctx context.Context, m *domain.Module, force bool) (ports.Task, error) {
	return f.afterBuild(ctx, domain.TaskTypeRun, domain.ActionRun, m, force)
}

// Publish creates a publish task depending on m's build.
func (f *Factory) Publish(ctx context.Context, m *domain.Module, force bool) (ports.Task, error) {
	return f.afterBuild(ctx, domain.TaskTypePublish, domain.ActionPublish, m, force)
}

// DeleteService creates a delete task depending on the deletion of every module that uses m as
// a service, so dependants go first.
func (f *Factory) DeleteService(m *domain.Module) ports.Task {
	t := f.newTask(domain.TaskTypeDeleteService, m.Name, false, "")
	t.dependencies = func(context.Context) ([]ports.Task, error) {
		dependants := f.registry.ServiceDependants(m)
		out := make([]ports.Task, 0, len(dependants))
		for _, d := range dependants {
			out = append(out, f.DeleteService(d))
		}
		return out, nil
	}
	t.process = f.action(t, m, domain.ActionDelete)
	return t
}

// GetStatus creates a status task depending on the status of m's service dependencies.
func (f *Factory) GetStatus(m *domain.Module) ports.Task {
	t := f.newTask(domain.TaskTypeGetStatus, m.Name, false, "")
	t.dependencies = func(context.Context) ([]ports.Task, error) {
		services, err := f.registry.ServiceDependencies(m)
		if err != nil {
			return nil, err
		}
		out := make([]ports.Task, 0, len(services))
		for _, s := range services {
			out = append(out, f.GetStatus(s))
		}
		return out, nil
	}
	t.process = f.action(t, m, domain.ActionStatus)
	return t
}

// HotReload creates a task running m's reload command. It has no dependencies.
func (f *Factory) HotReload(m *domain.Module) ports.Task {
	t := f.newTask(domain.TaskTypeHotReload, m.Name, false, "")
	t.process = f.action(t, m, domain.ActionReload)
	return t
}

// ResolveProvider creates a task preparing the named provider once per process.
func (f *Factory) ResolveProvider(name string) (ports.Task, error) {
	p, ok := f.providers[name]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrProviderNotFound, "resolve provider"), "provider", name)
	}

	t := f.newTask(domain.TaskTypeResolveProvider, name, false, "")
	t.process = func(ctx context.Context, _ map[domain.TaskKey]*domain.TaskResult) (any, error) {
		if len(p.Prepare) > 0 {
			err := f.guard.Ensure(ctx, "provider/"+p.Name, func(ctx context.Context) error {
				return f.runProviderCommand(ctx, t.key, p, p.Prepare, nil)
			})
			if err != nil {
				return nil, err
			}
		}
		return ProviderOutput{Name: p.Name, Environment: maps.Clone(p.Environment)}, nil
	}
	return t, nil
}

// GetTaskResult creates a task returning the most recent stored result for key.
func (f *Factory) GetTaskResult(key domain.TaskKey) ports.Task {
	t := f.newTask(domain.TaskTypeGetTaskResult, string(key), false, "")
	t.process = func(ctx context.Context, _ map[domain.TaskKey]*domain.TaskResult) (any, error) {
		return f.history.Latest(ctx, key)
	}
	return t
}

func (f *Factory) newTask(typ domain.TaskType, name string, force bool, version string) *task {
	key := domain.NewTaskKey(typ, name)
	return &task{
		typ:     typ,
		name:    name,
		key:     key,
		id:      domain.NewTaskID(key, newUID()),
		force:   force,
		version: version,
	}
}

func (f *Factory) version(ctx context.Context, m *domain.Module) (*domain.ModuleVersion, error) {
	deps, err := f.registry.BuildDependencies(m)
	if err != nil {
		return nil, err
	}
	return f.resolver.ResolveVersion(ctx, m, deps)
}

// buildDependencies creates the builds of m's build dependencies. They inherit force so that a
// dependency build created after a forced root of the same key does not cancel the force.
func (f *Factory) buildDependencies(ctx context.Context, m *domain.Module, force bool) ([]ports.Task, error) {
	deps, err := f.registry.BuildDependencies(m)
	if err != nil {
		return nil, err
	}

	out := make([]ports.Task, 0, len(deps))
	for _, d := range deps {
		bt, err := f.Build(ctx, d, force)
		if err != nil {
			return nil, err
		}
		out = append(out, bt)
	}
	return out, nil
}

func (f *Factory) buildAndServices(ctx context.Context, m *domain.Module, force bool) ([]ports.Task, error) {
	build, err := f.Build(ctx, m, force)
	if err != nil {
		return nil, err
	}

	services, err := f.registry.ServiceDependencies(m)
	if err != nil {
		return nil, err
	}

	out := []ports.Task{build}
	for _, s := range services {
		dt, err := f.Deploy(ctx, s, force)
		if err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, nil
}

func (f *Factory) afterBuild(
	ctx context.Context, typ domain.TaskType, action domain.Action, m *domain.Module, force bool,
) (ports.Task, error) {
	v, err := f.version(ctx, m)
	if err != nil {
		return nil, err
	}

	t := f.newTask(typ, m.Name, force, v.VersionString)
	t.dependencies = func(ctx context.Context) ([]ports.Task, error) {
		build, err := f.Build(ctx, m, force)
		if err != nil {
			return nil, err
		}
		return []ports.Task{build}, nil
	}
	t.process = f.action(t, m, action)
	return t, nil
}

func (f *Factory) action(
	t *task, m *domain.Module, action domain.Action,
) func(context.Context, map[domain.TaskKey]*domain.TaskResult) (any, error) {
	return func(ctx context.Context, deps map[domain.TaskKey]*domain.TaskResult) (any, error) {
		return f.handlers.Handle(ctx, &Request{
			Action:  action,
			Module:  m,
			Key:     t.key,
			Version: t.version,
			Deps:    deps,
		})
	}
}

// recorded wraps an action so that it is skipped when the store already records v for the task
// key. Dirty versions always run and are never recorded.
func (f *Factory) recorded(
	t *task, m *domain.Module, v *domain.ModuleVersion, action domain.Action,
) func(context.Context, map[domain.TaskKey]*domain.TaskResult) (any, error) {
	run := f.action(t, m, action)

	return func(ctx context.Context, deps map[domain.TaskKey]*domain.TaskResult) (any, error) {
		if !t.force && v.Stable() {
			info, err := f.store.Get(t.key)
			if err != nil {
				return nil, err
			}
			if info != nil && info.Version == v.VersionString {
				if span, ok := ports.SpanFromContext(ctx); ok {
					span.SetAttribute("garden.cached", true)
				}
				return ActionOutput{Module: m.Name, Action: action, Version: v.VersionString, Fresh: true}, nil
			}
		}

		out, err := run(ctx, deps)
		if err != nil {
			return nil, err
		}

		if v.Stable() {
			err := f.store.Put(domain.BuildInfo{Key: t.key, Version: v.VersionString, Timestamp: f.now()})
			if err != nil {
				return nil, zerr.Wrap(err, "record completed task")
			}
		}
		return out, nil
	}
}

func (f *Factory) ensureNamespace(ctx context.Context, m *domain.Module) error {
	p, ok := f.providers[m.Provider]
	if !ok || m.Namespace == "" || len(p.CreateNamespace) == 0 {
		return nil
	}

	return f.guard.Ensure(ctx, "namespace/"+p.Name+"/"+m.Namespace, func(ctx context.Context) error {
		env := map[string]string{"GARDEN_NAMESPACE": m.Namespace}
		return f.runProviderCommand(ctx, domain.NewTaskKey(domain.TaskTypeDeploy, m.Name), p, p.CreateNamespace, env)
	})
}

func (f *Factory) runProviderCommand(
	ctx context.Context, key domain.TaskKey, p *domain.Provider, args []string, extra map[string]string,
) error {
	env := maps.Clone(p.Environment)
	if env == nil {
		env = map[string]string{}
	}
	maps.Copy(env, extra)
	env["GARDEN_PROVIDER"] = p.Name

	cmd := &domain.Command{Name: string(key), Args: args, Env: sortedEnv(env)}

	w := io.Writer(io.Discard)
	if span, ok := ports.SpanFromContext(ctx); ok {
		w = span
	}
	if err := f.executor.Execute(ctx, cmd, w, w); err != nil {
		return zerr.With(err, "provider", p.Name)
	}
	return nil
}

func newUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
