package tasks_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/garden/internal/core/ports/mocks"
	"go.trai.ch/garden/internal/engine/locks"
	"go.trai.ch/garden/internal/engine/scheduler"
	"go.trai.ch/garden/internal/engine/tasks"
	"go.uber.org/mock/gomock"
)

var (
	lib = &domain.Module{
		Name: "lib", Path: "/proj/lib",
		Actions: map[domain.Action]domain.ActionSpec{
			domain.ActionBuild: {Command: []string{"mvn", "install"}, Tool: "mvn"},
		},
	}
	db = &domain.Module{
		Name: "db", Path: "/proj/db",
		Actions: map[domain.Action]domain.ActionSpec{
			domain.ActionDeploy: {Command: []string{"helm", "upgrade", "db"}},
		},
	}
	api = &domain.Module{
		Name: "api", Path: "/proj/api",
		BuildDependencies:   []string{"lib"},
		ServiceDependencies: []string{"db"},
		Provider:            "local",
		Namespace:           "dev",
		Actions: map[domain.Action]domain.ActionSpec{
			domain.ActionBuild:  {Command: []string{"go", "build"}, Environment: map[string]string{"CGO_ENABLED": "0"}},
			domain.ActionTest:   {Command: []string{"go", "test"}},
			domain.ActionDeploy: {Command: []string{"kubectl", "apply"}},
			domain.ActionStatus: {Command: []string{"curl", "-f", "localhost"}},
			domain.ActionDelete: {Command: []string{"kubectl", "delete"}},
			domain.ActionRun:    {Command: []string{"go", "run", "."}},
		},
	}

	localProvider = &domain.Provider{
		Name:            "local",
		Prepare:         []string{"kind", "create", "cluster"},
		CreateNamespace: []string{"kubectl", "create", "namespace"},
		Environment:     map[string]string{"KUBECONFIG": "/tmp/kube"},
	}
)

type fixture struct {
	registry *mocks.MockModuleRegistry
	resolver *mocks.MockVersionResolver
	store    *mocks.MockBuildInfoStore
	history  *mocks.MockResultHistory
	executor *mocks.MockExecutor
	handlers *tasks.Handlers
	factory  *tasks.Factory

	mu       sync.Mutex
	commands []*domain.Command
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		registry: mocks.NewMockModuleRegistry(ctrl),
		resolver: mocks.NewMockVersionResolver(ctrl),
		store:    mocks.NewMockBuildInfoStore(ctrl),
		history:  mocks.NewMockResultHistory(ctrl),
		executor: mocks.NewMockExecutor(ctrl),
	}

	modules := map[string]*domain.Module{"lib": lib, "db": db, "api": api}
	buildDeps := map[string][]*domain.Module{"api": {lib}}
	serviceDeps := map[string][]*domain.Module{"api": {db}}
	dependants := map[string][]*domain.Module{"db": {api}}

	f.registry.EXPECT().Module(gomock.Any()).DoAndReturn(func(name string) (*domain.Module, error) {
		if m, ok := modules[name]; ok {
			return m, nil
		}
		return nil, domain.ErrModuleNotFound
	}).AnyTimes()
	f.registry.EXPECT().BuildDependencies(gomock.Any()).DoAndReturn(func(m *domain.Module) ([]*domain.Module, error) {
		return buildDeps[m.Name], nil
	}).AnyTimes()
	f.registry.EXPECT().ServiceDependencies(gomock.Any()).DoAndReturn(func(m *domain.Module) ([]*domain.Module, error) {
		return serviceDeps[m.Name], nil
	}).AnyTimes()
	f.registry.EXPECT().ServiceDependants(gomock.Any()).DoAndReturn(func(m *domain.Module) []*domain.Module {
		return dependants[m.Name]
	}).AnyTimes()

	f.resolver.EXPECT().ResolveVersion(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m *domain.Module, _ []*domain.Module) (*domain.ModuleVersion, error) {
			return &domain.ModuleVersion{VersionString: "v-" + m.Name}, nil
		}).AnyTimes()

	f.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmd *domain.Command, _, _ io.Writer) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.commands = append(f.commands, cmd)
			return nil
		}).AnyTimes()

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()

	runner := tasks.NewCommandRunner(f.executor, locks.NewNamed(), logger)
	f.handlers = tasks.NewHandlers(runner.Run)
	f.handlers.Register(domain.ActionStatus, tasks.Status())

	f.factory = tasks.NewFactory(tasks.Config{
		Registry:  f.registry,
		Resolver:  f.resolver,
		Store:     f.store,
		History:   f.history,
		Executor:  f.executor,
		Handlers:  f.handlers,
		Providers: []*domain.Provider{localProvider},
	})
	return f
}

func (f *fixture) executed() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.commands))
	for i, c := range f.commands {
		out[i] = c.Args
	}
	return out
}

func keysOf(ts []ports.Task) []domain.TaskKey {
	out := make([]domain.TaskKey, len(ts))
	for i, t := range ts {
		out[i] = t.Key()
	}
	return out
}

func TestFactory_Dependencies(t *testing.T) {
	tests := []struct {
		name string
		make func(f *fixture) (ports.Task, error)
		want []domain.TaskKey
	}{
		{
			name: "build depends on builds of build dependencies",
			make: func(f *fixture) (ports.Task, error) { return f.factory.Build(t.Context(), api, false) },
			want: []domain.TaskKey{"build.lib"},
		},
		{
			name: "test depends on own build and service deploys",
			make: func(f *fixture) (ports.Task, error) { return f.factory.Test(t.Context(), api, false) },
			want: []domain.TaskKey{"build.api", "deploy.db"},
		},
		{
			name: "deploy depends on own build, service deploys and provider",
			make: func(f *fixture) (ports.Task, error) { return f.factory.Deploy(t.Context(), api, false) },
			want: []domain.TaskKey{"build.api", "deploy.db", "resolve-provider.local"},
		},
		{
			name: "run depends on own build",
			make: func(f *fixture) (ports.Task, error) { return f.factory.Run(t.Context(), api, false) },
			want: []domain.TaskKey{"build.api"},
		},
		{
			name: "publish depends on own build",
			make: func(f *fixture) (ports.Task, error) { return f.factory.Publish(t.Context(), lib, false) },
			want: []domain.TaskKey{"build.lib"},
		},
		{
			name: "delete depends on deleting dependants",
			make: func(f *fixture) (ports.Task, error) { return f.factory.DeleteService(db), nil },
			want: []domain.TaskKey{"delete-service.api"},
		},
		{
			name: "status depends on service statuses",
			make: func(f *fixture) (ports.Task, error) { return f.factory.GetStatus(api), nil },
			want: []domain.TaskKey{"get-status.db"},
		},
		{
			name: "hot reload has no dependencies",
			make: func(f *fixture) (ports.Task, error) { return f.factory.HotReload(api), nil },
			want: []domain.TaskKey{},
		},
		{
			name: "task result has no dependencies",
			make: func(f *fixture) (ports.Task, error) { return f.factory.GetTaskResult("build.api"), nil },
			want: []domain.TaskKey{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			task, err := tt.make(f)
			require.NoError(t, err)

			deps, err := task.Dependencies(t.Context())
			require.NoError(t, err)
			assert.Equal(t, tt.want, keysOf(deps))

			again, err := task.Dependencies(t.Context())
			require.NoError(t, err)
			assert.Equal(t, keysOf(deps), keysOf(again))
			if len(deps) > 0 {
				assert.Same(t, deps[0], again[0], "dependencies are computed once")
			}
		})
	}
}

func TestFactory_TaskIdentity(t *testing.T) {
	f := newFixture(t)

	first, err := f.factory.Build(t.Context(), api, true)
	require.NoError(t, err)
	second, err := f.factory.Build(t.Context(), api, false)
	require.NoError(t, err)

	assert.Equal(t, domain.TaskTypeBuild, first.Type())
	assert.Equal(t, "api", first.Name())
	assert.Equal(t, domain.TaskKey("build.api"), first.Key())
	assert.Equal(t, "v-api", first.Version())
	assert.True(t, first.Force())
	assert.False(t, second.Force())
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Greater(t, second.ID(), first.ID(), "later tasks sort after earlier ones")
}

func TestFactory_BuildSkipsRecordedVersion(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Get(domain.TaskKey("build.lib")).
		Return(&domain.BuildInfo{Key: "build.lib", Version: "v-lib"}, nil)

	task, err := f.factory.Build(t.Context(), lib, false)
	require.NoError(t, err)

	out, err := task.Process(t.Context(), nil)
	require.NoError(t, err)

	assert.Equal(t, tasks.ActionOutput{Module: "lib", Action: domain.ActionBuild, Version: "v-lib", Fresh: true}, out)
	assert.Empty(t, f.executed())
}

func TestFactory_BuildRunsAndRecords(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Get(domain.TaskKey("build.api")).
		Return(&domain.BuildInfo{Key: "build.api", Version: "old"}, nil)
	f.store.EXPECT().Put(gomock.Any()).DoAndReturn(func(info domain.BuildInfo) error {
		assert.Equal(t, domain.TaskKey("build.api"), info.Key)
		assert.Equal(t, "v-api", info.Version)
		assert.False(t, info.Timestamp.IsZero())
		return nil
	})

	task, err := f.factory.Build(t.Context(), api, false)
	require.NoError(t, err)

	out, err := task.Process(t.Context(), nil)
	require.NoError(t, err)

	assert.Equal(t, tasks.ActionOutput{Module: "api", Action: domain.ActionBuild, Version: "v-api", Executed: true}, out)
	require.Len(t, f.commands, 1)
	cmd := f.commands[0]
	assert.Equal(t, "build.api", cmd.Name)
	assert.Equal(t, "/proj/api", cmd.Dir)
	assert.Equal(t, []string{
		"CGO_ENABLED=0",
		"GARDEN_ACTION=build",
		"GARDEN_MODULE_NAME=api",
		"GARDEN_MODULE_VERSION=v-api",
	}, cmd.Env)
}

func TestFactory_ForcedBuildIgnoresStore(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Get(gomock.Any()).Times(0)
	f.store.EXPECT().Put(gomock.Any()).Return(nil)

	task, err := f.factory.Build(t.Context(), lib, true)
	require.NoError(t, err)

	_, err = task.Process(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"mvn", "install"}}, f.executed())
}

func TestFactory_ForceReachesDependencyBuilds(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)
	f.store.EXPECT().Get(gomock.Any()).DoAndReturn(func(key domain.TaskKey) (*domain.BuildInfo, error) {
		_, name, _ := domain.ParseTaskKey(string(key))
		return &domain.BuildInfo{Key: key, Version: "v-" + name}, nil
	}).AnyTimes()
	f.store.EXPECT().Put(gomock.Any()).Return(nil).AnyTimes()

	span := mocks.NewMockSpan(ctrl)
	span.EXPECT().End().AnyTimes()
	span.EXPECT().SetAttribute(gomock.Any(), gomock.Any()).AnyTimes()
	span.EXPECT().RecordError(gomock.Any()).AnyTimes()
	span.EXPECT().Write(gomock.Any()).DoAndReturn(func(p []byte) (int, error) { return len(p), nil }).AnyTimes()
	tracer := mocks.NewMockTracer(ctrl)
	tracer.EXPECT().Start(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, span
		}).AnyTimes()
	tracer.EXPECT().EmitPlan(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	libBuild, err := f.factory.Build(t.Context(), lib, true)
	require.NoError(t, err)
	apiBuild, err := f.factory.Build(t.Context(), api, true)
	require.NoError(t, err)

	results, err := scheduler.NewScheduler(tracer).
		Process(t.Context(), []ports.Task{libBuild, apiBuild}, ports.ProcessOptions{})
	require.NoError(t, err)
	assert.Empty(t, results.Failed())

	res, ok := results.ByKey("build.lib")
	require.True(t, ok)
	assert.NotEqual(t, libBuild.ID(), res.ID, "the dependency instance represents build.lib")
	assert.Equal(t, [][]string{{"mvn", "install"}, {"go", "build"}}, f.executed())
}

func TestFactory_DirtyBuildAlwaysRunsAndIsNotRecorded(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)

	dirtyAt := time.Unix(1700000000, 0)
	dirty := mocks.NewMockVersionResolver(ctrl)
	dirty.EXPECT().ResolveVersion(gomock.Any(), lib, gomock.Any()).Return(&domain.ModuleVersion{
		VersionString:  "v-dirty",
		DirtyTimestamp: &dirtyAt,
	}, nil)

	factory := tasks.NewFactory(tasks.Config{
		Registry: f.registry,
		Resolver: dirty,
		Store:    f.store,
		Executor: f.executor,
		Handlers: f.handlers,
	})
	f.store.EXPECT().Get(gomock.Any()).Times(0)
	f.store.EXPECT().Put(gomock.Any()).Times(0)

	task, err := factory.Build(t.Context(), lib, false)
	require.NoError(t, err)

	_, err = task.Process(t.Context(), nil)
	require.NoError(t, err)
	assert.Len(t, f.executed(), 1)
}

func TestFactory_DeployEnsuresProviderAndNamespaceOnce(t *testing.T) {
	f := newFixture(t)

	provider, err := f.factory.ResolveProvider("local")
	require.NoError(t, err)

	po, err := provider.Process(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, tasks.ProviderOutput{Name: "local", Environment: map[string]string{"KUBECONFIG": "/tmp/kube"}}, po)

	deps := map[domain.TaskKey]*domain.TaskResult{
		"resolve-provider.local": {Key: "resolve-provider.local", State: domain.TaskStateDone, Output: po},
	}

	for range 2 {
		deploy, err := f.factory.Deploy(t.Context(), api, false)
		require.NoError(t, err)
		_, err = deploy.Process(t.Context(), deps)
		require.NoError(t, err)

		again, err := f.factory.ResolveProvider("local")
		require.NoError(t, err)
		_, err = again.Process(t.Context(), nil)
		require.NoError(t, err)
	}

	assert.Equal(t, [][]string{
		{"kind", "create", "cluster"},
		{"kubectl", "create", "namespace"},
		{"kubectl", "apply"},
		{"kubectl", "apply"},
	}, f.executed())

	f.mu.Lock()
	deployCmd := f.commands[2]
	nsCmd := f.commands[1]
	f.mu.Unlock()
	assert.Contains(t, deployCmd.Env, "KUBECONFIG=/tmp/kube")
	assert.Contains(t, deployCmd.Env, "GARDEN_NAMESPACE=dev")
	assert.Contains(t, nsCmd.Env, "GARDEN_NAMESPACE=dev")
	assert.Contains(t, nsCmd.Env, "GARDEN_PROVIDER=local")
}

func TestFactory_UnknownProvider(t *testing.T) {
	f := newFixture(t)

	_, err := f.factory.ResolveProvider("aws")
	require.ErrorIs(t, err, domain.ErrProviderNotFound)
	assert.Equal(t, domain.CategoryConfiguration, domain.Category(err))
}

func TestFactory_StatusStates(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)

	failing := mocks.NewMockExecutor(ctrl)
	failing.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.Join(domain.ErrCommandFailed))

	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	handlers := tasks.NewHandlers(tasks.NewCommandRunner(failing, locks.NewNamed(), logger).Run)
	handlers.Register(domain.ActionStatus, tasks.Status())

	factory := tasks.NewFactory(tasks.Config{Registry: f.registry, Handlers: handlers})

	out, err := factory.GetStatus(api).Process(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusOutput{Module: "api", State: tasks.ServiceUnhealthy}, out)

	out, err = factory.GetStatus(db).Process(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusOutput{Module: "db", State: tasks.ServiceUnknown}, out)

	out, err = f.factory.GetStatus(api).Process(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusOutput{Module: "api", State: tasks.ServiceReady}, out)
}

func TestFactory_GetTaskResult(t *testing.T) {
	f := newFixture(t)
	stored := &domain.StoredResult{RunID: "run-1", Key: "build.api", State: domain.TaskStateDone}
	f.history.EXPECT().Latest(gomock.Any(), domain.TaskKey("build.api")).Return(stored, nil)

	task, err := f.factory.ForKey(t.Context(), "get-task-result.build.api", false)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskKey("get-task-result.build.api"), task.Key())

	out, err := task.Process(t.Context(), nil)
	require.NoError(t, err)
	assert.Same(t, stored, out)
}

func TestFactory_ForKey(t *testing.T) {
	f := newFixture(t)

	task, err := f.factory.ForKey(t.Context(), "deploy.db", false)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskKey("deploy.db"), task.Key())

	task, err = f.factory.ForKey(t.Context(), "resolve-provider.local", false)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeResolveProvider, task.Type())

	_, err = f.factory.ForKey(t.Context(), "compile.api", false)
	require.ErrorIs(t, err, domain.ErrUnknownTaskType)

	_, err = f.factory.ForKey(t.Context(), "build", false)
	require.ErrorIs(t, err, domain.ErrInvalidTaskKey)

	_, err = f.factory.ForKey(t.Context(), "build.nope", false)
	require.ErrorIs(t, err, domain.ErrModuleNotFound)
}

func TestFactory_DeleteAndReloadRunActions(t *testing.T) {
	f := newFixture(t)

	_, err := f.factory.DeleteService(api).Process(t.Context(), nil)
	require.NoError(t, err)

	out, err := f.factory.HotReload(api).Process(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, tasks.ActionOutput{Module: "api", Action: domain.ActionReload}, out, "no reload command")

	assert.Equal(t, [][]string{{"kubectl", "delete"}}, f.executed())
}
