package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/garden/internal/core/ports/mocks"
	"go.trai.ch/garden/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

// fakeTask is a hand-built ports.Task whose behavior is scripted per test.
type fakeTask struct {
	typ     domain.TaskType
	name    string
	uid     string
	deps    []ports.Task
	depsErr error
	depsFn  func() []ports.Task
	process func(ctx context.Context, deps map[domain.TaskKey]*domain.TaskResult) (any, error)

	depCalls  atomic.Int32
	procCalls atomic.Int32
}

func newTask(name, uid string, deps ...ports.Task) *fakeTask {
	return &fakeTask{typ: domain.TaskTypeBuild, name: name, uid: uid, deps: deps}
}

func (f *fakeTask) Type() domain.TaskType { return f.typ }
func (f *fakeTask) Name() string          { return f.name }
func (f *fakeTask) Key() domain.TaskKey   { return domain.NewTaskKey(f.typ, f.name) }
func (f *fakeTask) ID() domain.TaskID     { return domain.NewTaskID(f.Key(), f.uid) }
func (f *fakeTask) Force() bool           { return false }
func (f *fakeTask) Version() string       { return "" }

func (f *fakeTask) Dependencies(context.Context) ([]ports.Task, error) {
	f.depCalls.Add(1)
	if f.depsFn != nil {
		return f.depsFn(), f.depsErr
	}
	return f.deps, f.depsErr
}

func (f *fakeTask) Process(ctx context.Context, deps map[domain.TaskKey]*domain.TaskResult) (any, error) {
	f.procCalls.Add(1)
	if f.process != nil {
		return f.process(ctx, deps)
	}
	return f.name + "-out", nil
}

func newTracer(t *testing.T) *mocks.MockTracer {
	t.Helper()
	ctrl := gomock.NewController(t)

	span := mocks.NewMockSpan(ctrl)
	span.EXPECT().End().AnyTimes()
	span.EXPECT().SetAttribute(gomock.Any(), gomock.Any()).AnyTimes()
	span.EXPECT().RecordError(gomock.Any()).AnyTimes()

	tracer := mocks.NewMockTracer(ctrl)
	tracer.EXPECT().Start(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, span
		}).AnyTimes()
	tracer.EXPECT().EmitPlan(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	return tracer
}

func key(name string) domain.TaskKey { return domain.NewTaskKey(domain.TaskTypeBuild, name) }

func TestScheduler_Process_Diamond(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		var order []string
		record := func(name string) func(context.Context, map[domain.TaskKey]*domain.TaskResult) (any, error) {
			return func(context.Context, map[domain.TaskKey]*domain.TaskResult) (any, error) {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, name)
				return name + "-out", nil
			}
		}

		d := newTask("d", "1")
		b := newTask("b", "1", d)
		c := newTask("c", "1", d)
		a := newTask("a", "1", b, c)
		for _, ft := range []*fakeTask{a, b, c, d} {
			ft.process = record(ft.name)
		}

		results, err := scheduler.NewScheduler(newTracer(t)).
			Process(t.Context(), []ports.Task{a}, ports.ProcessOptions{})
		require.NoError(t, err)

		require.Len(t, results, 4)
		assert.Equal(t, "d", order[0])
		assert.Equal(t, "a", order[3])
		assert.Equal(t, int32(1), d.procCalls.Load())
		assert.Equal(t, int32(1), d.depCalls.Load())

		ra, ok := results.ByKey(key("a"))
		require.True(t, ok)
		assert.Equal(t, domain.TaskStateDone, ra.State)
		assert.Equal(t, "a-out", ra.Output)
		assert.Equal(t, "b-out", ra.Dependencies[key("b")].Output)
		assert.Equal(t, "c-out", ra.Dependencies[key("c")].Output)
		assert.Empty(t, results.Failed())
	})
}

func TestScheduler_Process_PassesDependencyResults(t *testing.T) {
	dep := newTask("lib", "1")
	var got map[domain.TaskKey]*domain.TaskResult
	root := newTask("app", "1", dep)
	root.process = func(_ context.Context, deps map[domain.TaskKey]*domain.TaskResult) (any, error) {
		got = deps
		return nil, nil
	}

	_, err := scheduler.NewScheduler(newTracer(t)).
		Process(t.Context(), []ports.Task{root}, ports.ProcessOptions{ConcurrencyLimit: 1})
	require.NoError(t, err)

	require.Contains(t, got, key("lib"))
	assert.Equal(t, "lib-out", got[key("lib")].Output)
	assert.Equal(t, domain.TaskStateDone, got[key("lib")].State)
}

func TestScheduler_Process_DeduplicatesByKey(t *testing.T) {
	older := newTask("x", "0190a000-0000-7000-8000-000000000001")
	newer := newTask("x", "0190a000-0000-7000-8000-000000000002")

	results, err := scheduler.NewScheduler(newTracer(t)).
		Process(t.Context(), []ports.Task{newer, older}, ports.ProcessOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(0), older.procCalls.Load())
	assert.Equal(t, int32(1), newer.procCalls.Load())
	assert.Equal(t, int32(0), older.depCalls.Load(), "older instance is never expanded once superseded")

	require.Len(t, results, 2)
	assert.Same(t, results[older.ID()], results[newer.ID()])
	assert.Equal(t, newer.ID(), results[older.ID()].ID)
}

func TestScheduler_Process_LatestInstanceWinsAcrossGraph(t *testing.T) {
	legacy := newTask("legacy", "0190a000-0000-7000-8000-000000000001")
	stale := newTask("lib", "0190a000-0000-7000-8000-000000000001", legacy)
	fresh := newTask("lib", "0190a000-0000-7000-8000-000000000009", legacy)

	app := newTask("app", "1", stale)
	svc := newTask("svc", "1", fresh)

	results, err := scheduler.NewScheduler(newTracer(t)).
		Process(t.Context(), []ports.Task{app, svc}, ports.ProcessOptions{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), fresh.procCalls.Load())
	assert.Equal(t, int32(0), stale.procCalls.Load())
	assert.Equal(t, int32(1), stale.depCalls.Load())
	assert.Equal(t, int32(0), fresh.depCalls.Load(), "a key is expanded once")
	assert.Equal(t, int32(1), legacy.procCalls.Load())
	assert.Same(t, results[stale.ID()], results[fresh.ID()])
	assert.Equal(t, fresh.ID(), results[stale.ID()].ID)
}

func TestScheduler_Process_CycleOfFreshInstances(t *testing.T) {
	var seq atomic.Int64
	var spawn func(name, dep string) *fakeTask
	spawn = func(name, dep string) *fakeTask {
		ft := newTask(name, fmt.Sprintf("0190a000-0000-7000-8000-%012d", seq.Add(1)))
		ft.depsFn = func() []ports.Task {
			return []ports.Task{spawn(dep, name)}
		}
		return ft
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	results, err := scheduler.NewScheduler(newTracer(t)).
		Process(ctx, []ports.Task{spawn("a", "b")}, ports.ProcessOptions{})

	require.ErrorIs(t, err, domain.ErrCycleDetected)
	assert.Contains(t, err.Error(), "build.a -> build.b -> build.a")
	assert.Nil(t, results)
	assert.LessOrEqual(t, seq.Load(), int64(3))
}

func TestScheduler_Process_CycleRejected(t *testing.T) {
	a := newTask("a", "1")
	b := newTask("b", "1")
	c := newTask("c", "1")
	a.deps = []ports.Task{b}
	b.deps = []ports.Task{c}
	c.deps = []ports.Task{a}

	results, err := scheduler.NewScheduler(newTracer(t)).
		Process(t.Context(), []ports.Task{a}, ports.ProcessOptions{})

	require.ErrorIs(t, err, domain.ErrCycleDetected)
	assert.Contains(t, err.Error(), "build.a -> build.b -> build.c -> build.a")
	assert.Nil(t, results)
	for _, ft := range []*fakeTask{a, b, c} {
		assert.Zero(t, ft.procCalls.Load(), ft.name)
	}
}

func TestScheduler_Process_SelfDependency(t *testing.T) {
	a := newTask("a", "1")
	a.deps = []ports.Task{a}

	_, err := scheduler.NewScheduler(newTracer(t)).
		Process(t.Context(), []ports.Task{a}, ports.ProcessOptions{})
	require.ErrorIs(t, err, domain.ErrCycleDetected)
	assert.Contains(t, err.Error(), "build.a -> build.a")
	assert.Zero(t, a.procCalls.Load())
}

func TestFindCycles_ReportsEveryCycle(t *testing.T) {
	edges := map[domain.TaskKey][]domain.TaskKey{
		key("a"): {key("b")},
		key("b"): {key("a")},
		key("c"): {key("d")},
		key("d"): {key("c")},
		key("e"): {key("a")},
	}

	cycles := scheduler.FindCycles(edges)

	assert.Equal(t, [][]domain.TaskKey{
		{key("a"), key("b"), key("a")},
		{key("c"), key("d"), key("c")},
	}, cycles)
	assert.Empty(t, scheduler.FindCycles(map[domain.TaskKey][]domain.TaskKey{key("a"): {key("b")}}))
}

func TestScheduler_Process_FailurePropagation(t *testing.T) {
	bErr := errors.New("compile error")

	b := newTask("b", "1")
	b.process = func(context.Context, map[domain.TaskKey]*domain.TaskResult) (any, error) {
		return nil, bErr
	}
	a := newTask("a", "1", b)
	top := newTask("top", "1", a)
	c := newTask("c", "1")

	results, err := scheduler.NewScheduler(newTracer(t)).
		Process(t.Context(), []ports.Task{top, c}, ports.ProcessOptions{})
	require.NoError(t, err, "partial failure is reported in results")

	rb, _ := results.ByKey(key("b"))
	assert.Equal(t, domain.TaskStateFailed, rb.State)
	require.ErrorIs(t, rb.Err, bErr)

	for _, name := range []string{"a", "top"} {
		r, _ := results.ByKey(key(name))
		assert.Equal(t, domain.TaskStateFailedByPropagation, r.State, name)
		require.ErrorIs(t, r.Err, domain.ErrDependencyFailed)
		require.ErrorIs(t, r.Err, bErr)
		assert.Contains(t, r.Err.Error(), "build."+name+" skipped because build.b failed")
	}
	assert.Zero(t, a.procCalls.Load())
	assert.Zero(t, top.procCalls.Load())

	rc, _ := results.ByKey(key("c"))
	assert.Equal(t, domain.TaskStateDone, rc.State)
	assert.Len(t, results.Failed(), 3)
}

func TestScheduler_Process_DependencyResolutionFailure(t *testing.T) {
	resolveErr := errors.New("module not found")

	broken := newTask("broken", "1")
	broken.depsErr = resolveErr
	parent := newTask("parent", "1", broken)

	results, err := scheduler.NewScheduler(newTracer(t)).
		Process(t.Context(), []ports.Task{parent}, ports.ProcessOptions{})
	require.NoError(t, err)

	rb, _ := results.ByKey(key("broken"))
	assert.Equal(t, domain.TaskStateFailed, rb.State)
	require.ErrorIs(t, rb.Err, domain.ErrDependencyResolutionFailed)
	require.ErrorIs(t, rb.Err, resolveErr)

	rp, _ := results.ByKey(key("parent"))
	assert.Equal(t, domain.TaskStateFailedByPropagation, rp.State)
	assert.Zero(t, broken.procCalls.Load())
	assert.Zero(t, parent.procCalls.Load())
}

func TestScheduler_Process_ConcurrencyLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int32
	}{
		{"serial", 1, 1},
		{"bounded", 2, 2},
		{"unbounded", 0, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				var active, peak atomic.Int32
				work := func(context.Context, map[domain.TaskKey]*domain.TaskResult) (any, error) {
					n := active.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(time.Second)
					active.Add(-1)
					return nil, nil
				}

				var roots []ports.Task
				for _, name := range []string{"a", "b", "c", "d", "e"} {
					ft := newTask(name, "1")
					ft.process = work
					roots = append(roots, ft)
				}

				results, err := scheduler.NewScheduler(newTracer(t)).
					Process(t.Context(), roots, ports.ProcessOptions{ConcurrencyLimit: tt.limit})
				require.NoError(t, err)
				assert.Len(t, results, 5)
				assert.Equal(t, tt.want, peak.Load())
			})
		})
	}
}

func TestScheduler_Process_Canceled(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())

		started := make(chan struct{})
		slow := newTask("slow", "1")
		slow.process = func(ctx context.Context, _ map[domain.TaskKey]*domain.TaskResult) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		after := newTask("after", "1", slow)

		go func() {
			<-started
			cancel()
		}()

		results, err := scheduler.NewScheduler(newTracer(t)).
			Process(ctx, []ports.Task{after}, ports.ProcessOptions{})

		require.ErrorIs(t, err, domain.ErrRunCanceled)
		require.ErrorIs(t, err, context.Canceled)
		require.Len(t, results, 2)

		ra, _ := results.ByKey(key("after"))
		assert.True(t, ra.Failed())
		assert.Zero(t, after.procCalls.Load())

		synctest.Wait()
	})
}

func TestScheduler_Process_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	a := newTask("a", "1")
	_, err := scheduler.NewScheduler(newTracer(t)).
		Process(ctx, []ports.Task{a}, ports.ProcessOptions{})

	require.ErrorIs(t, err, domain.ErrRunCanceled)
	assert.Zero(t, a.procCalls.Load())
}

func TestScheduler_Process_EmitsPlanInDependencyOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	span := mocks.NewMockSpan(ctrl)
	span.EXPECT().End().AnyTimes()
	span.EXPECT().SetAttribute(gomock.Any(), gomock.Any()).AnyTimes()

	tracer := mocks.NewMockTracer(ctrl)
	tracer.EXPECT().Start(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, span
		}).Times(4)
	tracer.EXPECT().EmitPlan(gomock.Any(),
		[]string{"build.d", "build.b", "build.c", "build.a"},
		map[string][]string{
			"build.a": {"build.b", "build.c"},
			"build.b": {"build.d"},
			"build.c": {"build.d"},
			"build.d": {},
		},
		[]string{"build.a"},
	).Times(1)

	d := newTask("d", "1")
	a := newTask("a", "1", newTask("b", "1", d), newTask("c", "1", d))

	_, err := scheduler.NewScheduler(tracer).Process(t.Context(), []ports.Task{a}, ports.ProcessOptions{})
	require.NoError(t, err)
}

func TestScheduler_Process_SpanCarriesTaskOutput(t *testing.T) {
	var seen bool
	a := newTask("a", "1")
	a.process = func(ctx context.Context, _ map[domain.TaskKey]*domain.TaskResult) (any, error) {
		_, seen = ports.SpanFromContext(ctx)
		return nil, nil
	}

	_, err := scheduler.NewScheduler(newTracer(t)).Process(t.Context(), []ports.Task{a}, ports.ProcessOptions{})
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestScheduler_Process_NoRoots(t *testing.T) {
	results, err := scheduler.NewScheduler(newTracer(t)).Process(t.Context(), nil, ports.ProcessOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
