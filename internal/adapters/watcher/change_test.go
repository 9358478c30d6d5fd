package watcher_test

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/garden/internal/adapters/cache"
	"go.trai.ch/garden/internal/adapters/watcher"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/garden/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

// fakeWatcher delivers events pushed by the test.
type fakeWatcher struct {
	events  chan domain.WatchEvent
	started string
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan domain.WatchEvent, 16)}
}

func (f *fakeWatcher) Start(_ context.Context, root string) error {
	f.started = root
	return nil
}

func (f *fakeWatcher) Stop() error {
	close(f.events)
	return nil
}

func (f *fakeWatcher) Events() iter.Seq[domain.WatchEvent] {
	return func(yield func(domain.WatchEvent) bool) {
		for ev := range f.events {
			if !yield(ev) {
				return
			}
		}
	}
}

type change struct {
	module     string
	structural bool
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []change
}

func (r *changeRecorder) handler() ports.ChangeHandler {
	return func(m *domain.Module, structural bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		c := change{structural: structural}
		if m != nil {
			c.module = m.Name
		}
		r.changes = append(r.changes, c)
	}
}

type fixture struct {
	root    string
	modA    *domain.Module
	modB    *domain.Module
	nested  *domain.Module
	cache   *cache.ScopedCache
	fake    *fakeWatcher
	cw      *watcher.ChangeWatcher
	changes *changeRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, domain.IgnoreFileName), []byte("dist/\n*.tmp\n"), domain.FilePerm))

	f := &fixture{
		root:    root,
		modA:    &domain.Module{Name: "mod-a", Path: filepath.Join(root, "modA")},
		modB:    &domain.Module{Name: "mod-b", Path: filepath.Join(root, "modB")},
		nested:  &domain.Module{Name: "nested", Path: filepath.Join(root, "modA", "plugins", "nested")},
		cache:   cache.New(),
		fake:    newFakeWatcher(),
		changes: &changeRecorder{},
	}
	f.cw = watcher.NewChangeWatcher(f.cache, log, watcher.WithWatcherFactory(func() (ports.Watcher, error) {
		return f.fake, nil
	}))

	modules := []*domain.Module{f.modA, f.modB, f.nested}
	require.NoError(t, f.cw.Start(t.Context(), []string{root}, modules, f.changes.handler()))
	assert.Equal(t, root, f.fake.started)
	return f
}

// run delivers events and waits until all of them are handled.
func (f *fixture) run(t *testing.T, events ...domain.WatchEvent) []change {
	t.Helper()
	for _, ev := range events {
		f.fake.events <- ev
	}
	require.NoError(t, f.cw.Stop())
	return f.changes.changes
}

func TestChangeWatcher_Classification(t *testing.T) {
	tests := []struct {
		name  string
		event func(f *fixture) domain.WatchEvent
		want  []change
	}{
		{
			name: "module config change is structural",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchChange, Path: filepath.Join(f.modA.Path, domain.ModuleFileName)}
			},
			want: []change{{structural: true}},
		},
		{
			name: "project config change is structural",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchChange, Path: filepath.Join(f.root, domain.ProjectFileName)}
			},
			want: []change{{structural: true}},
		},
		{
			name: "ignore file added anywhere is structural",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchAdd, Path: filepath.Join(f.root, "elsewhere", domain.GitIgnoreFileName)}
			},
			want: []change{{structural: true}},
		},
		{
			name: "source change notifies owning module",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchChange, Path: filepath.Join(f.modA.Path, "src", "x.ts")}
			},
			want: []change{{module: "mod-a"}},
		},
		{
			name: "deepest module owns nested path",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchUnlink, Path: filepath.Join(f.nested.Path, "main.go")}
			},
			want: []change{{module: "nested"}},
		},
		{
			name: "unowned path is ignored",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchChange, Path: filepath.Join(f.root, "unrelated", "x.ts")}
			},
		},
		{
			name: "sibling with shared prefix is not owned",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchChange, Path: filepath.Join(f.root, "modAB", "x.ts")}
			},
		},
		{
			name: "ignored file is ignored",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchChange, Path: filepath.Join(f.modA.Path, "dist", "bundle.js")}
			},
		},
		{
			name: "ignored glob is ignored",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchAdd, Path: filepath.Join(f.modB.Path, "scratch.tmp")}
			},
		},
		{
			name: "removing a module root is structural",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchUnlinkDir, Path: f.modB.Path}
			},
			want: []change{{structural: true}},
		},
		{
			name: "removing an ancestor of a module root is structural",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchUnlinkDir, Path: filepath.Join(f.modA.Path, "plugins")}
			},
			want: []change{{structural: true}},
		},
		{
			name: "removing a directory inside a module invalidates that module",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchUnlinkDir, Path: filepath.Join(f.modB.Path, "src", "old")}
			},
			want: []change{{module: "mod-b"}},
		},
		{
			name: "removing an unowned directory is ignored",
			event: func(f *fixture) domain.WatchEvent {
				return domain.WatchEvent{Kind: domain.WatchUnlinkDir, Path: filepath.Join(f.root, "docs")}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			got := f.run(t, tt.event(f))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChangeWatcher_AddedDirectory(t *testing.T) {
	t.Run("with module config is structural", func(t *testing.T) {
		f := newFixture(t)
		dir := filepath.Join(f.root, "services", "new")
		require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
		require.NoError(t, os.WriteFile(filepath.Join(dir, domain.ModuleFileName), []byte("name: new\n"), domain.FilePerm))

		got := f.run(t, domain.WatchEvent{Kind: domain.WatchAddDir, Path: filepath.Join(f.root, "services")})
		assert.Equal(t, []change{{structural: true}}, got)
	})

	t.Run("inside a module notifies the module", func(t *testing.T) {
		f := newFixture(t)
		dir := filepath.Join(f.modA.Path, "src", "feature")
		require.NoError(t, os.MkdirAll(dir, domain.DirPerm))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte("x"), domain.FilePerm))

		got := f.run(t, domain.WatchEvent{Kind: domain.WatchAddDir, Path: dir})
		assert.Equal(t, []change{{module: "mod-a"}}, got)
	})

	t.Run("unowned without config is ignored", func(t *testing.T) {
		f := newFixture(t)
		dir := filepath.Join(f.root, "notes")
		require.NoError(t, os.MkdirAll(dir, domain.DirPerm))

		got := f.run(t, domain.WatchEvent{Kind: domain.WatchAddDir, Path: dir})
		assert.Empty(t, got)
	})
}

func TestChangeWatcher_InvalidatesCache(t *testing.T) {
	f := newFixture(t)
	f.cache.Set([]string{"moduleVersions", "mod-a"}, "v1", f.modA.Path)
	f.cache.Set([]string{"moduleVersions", "mod-b"}, "v2", f.modB.Path)
	f.cache.Set([]string{"moduleVersions", "nested"}, "v3", f.nested.Path, f.modA.Path)

	f.run(t, domain.WatchEvent{Kind: domain.WatchChange, Path: filepath.Join(f.modA.Path, "main.go")})

	_, ok := f.cache.Get([]string{"moduleVersions", "mod-a"})
	assert.False(t, ok)
	_, ok = f.cache.Get([]string{"moduleVersions", "nested"})
	assert.False(t, ok, "entries consuming mod-a are invalidated")
	_, ok = f.cache.Get([]string{"moduleVersions", "mod-b"})
	assert.True(t, ok)
}

func TestChangeWatcher_StructuralInvalidatesEverything(t *testing.T) {
	f := newFixture(t)
	f.cache.Set([]string{"moduleVersions", "mod-a"}, "v1", f.modA.Path)
	f.cache.Set([]string{"moduleVersions", "mod-b"}, "v2", f.modB.Path)

	f.run(t, domain.WatchEvent{Kind: domain.WatchChange, Path: filepath.Join(f.root, domain.ProjectFileName)})

	assert.Equal(t, 0, f.cache.Len())
}

func TestChangeWatcher_SetModules(t *testing.T) {
	f := newFixture(t)
	modC := &domain.Module{Name: "mod-c", Path: filepath.Join(f.root, "modC")}
	f.cw.SetModules([]*domain.Module{modC})

	got := f.run(t,
		domain.WatchEvent{Kind: domain.WatchChange, Path: filepath.Join(f.modA.Path, "x.go")},
		domain.WatchEvent{Kind: domain.WatchChange, Path: filepath.Join(modC.Path, "x.go")},
	)
	assert.Equal(t, []change{{module: "mod-c"}}, got)
}

func TestChangeWatcher_StartFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)

	w := mocks.NewMockWatcher(ctrl)
	w.EXPECT().Start(gomock.Any(), gomock.Any()).Return(assert.AnError)
	w.EXPECT().Stop().Return(nil)

	cw := watcher.NewChangeWatcher(cache.New(), log, watcher.WithWatcherFactory(func() (ports.Watcher, error) {
		return w, nil
	}))

	err := cw.Start(t.Context(), []string{t.TempDir()}, nil, func(*domain.Module, bool) {})
	require.ErrorIs(t, err, domain.ErrWatcherStartFailed)
	require.ErrorIs(t, err, assert.AnError)
}
