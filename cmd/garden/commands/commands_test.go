package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/garden/cmd/garden/commands"
	"go.trai.ch/garden/internal/app"
	"go.trai.ch/garden/internal/build"
	"go.trai.ch/garden/internal/core/domain"
)

type call struct {
	method  string
	typ     domain.TaskType
	names   []string
	run     app.RunOptions
	dev     app.DevOptions
	clean   app.CleanOptions
	key     string
	limit   int
	mode    string
	verbose bool
}

type mockApp struct {
	calls []call
	err   error
}

func (m *mockApp) record(c call) error {
	m.calls = append(m.calls, c)
	return m.err
}

func (m *mockApp) last() call {
	return m.calls[len(m.calls)-1]
}

func (m *mockApp) Configure(mode string, verbose bool) {
	m.calls = append(m.calls, call{method: "Configure", mode: mode, verbose: verbose})
}

func (m *mockApp) Run(_ context.Context, typ domain.TaskType, names []string, opts app.RunOptions) error {
	return m.record(call{method: "Run", typ: typ, names: names, run: opts})
}

func (m *mockApp) Delete(_ context.Context, names []string, opts app.RunOptions) error {
	return m.record(call{method: "Delete", names: names, run: opts})
}

func (m *mockApp) Status(_ context.Context, names []string) error {
	return m.record(call{method: "Status", names: names})
}

func (m *mockApp) Result(_ context.Context, key string) error {
	return m.record(call{method: "Result", key: key})
}

func (m *mockApp) History(_ context.Context, limit int) error {
	return m.record(call{method: "History", limit: limit})
}

func (m *mockApp) Dev(_ context.Context, names []string, opts app.DevOptions) error {
	return m.record(call{method: "Dev", names: names, dev: opts})
}

func (m *mockApp) Clean(_ context.Context, opts app.CleanOptions) error {
	return m.record(call{method: "Clean", clean: opts})
}

func (m *mockApp) ServeDaemon(context.Context) error  { return m.record(call{method: "ServeDaemon"}) }
func (m *mockApp) StartDaemon(context.Context) error  { return m.record(call{method: "StartDaemon"}) }
func (m *mockApp) DaemonStatus(context.Context) error { return m.record(call{method: "DaemonStatus"}) }
func (m *mockApp) DaemonModules(context.Context) error {
	return m.record(call{method: "DaemonModules"})
}
func (m *mockApp) StopDaemon(context.Context) error { return m.record(call{method: "StopDaemon"}) }

func (m *mockApp) DaemonResult(_ context.Context, key string) error {
	return m.record(call{method: "DaemonResult", key: key})
}

func execute(t *testing.T, m *mockApp, args ...string) (string, error) {
	t.Helper()
	cli := commands.New(m)
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs(args)
	err := cli.Execute(context.Background())
	return buf.String(), err
}

func TestCommands_Tasks(t *testing.T) {
	tests := []struct {
		args  []string
		typ   domain.TaskType
		names []string
		opts  app.RunOptions
	}{
		{args: []string{"build"}, typ: domain.TaskTypeBuild},
		{args: []string{"build", "api", "web", "--force"}, typ: domain.TaskTypeBuild, names: []string{"api", "web"}, opts: app.RunOptions{Force: true}},
		{args: []string{"test", "api", "-j", "4"}, typ: domain.TaskTypeTest, names: []string{"api"}, opts: app.RunOptions{Concurrency: 4}},
		{args: []string{"deploy", "api", "-f"}, typ: domain.TaskTypeDeploy, names: []string{"api"}, opts: app.RunOptions{Force: true}},
		{args: []string{"publish", "lib"}, typ: domain.TaskTypePublish, names: []string{"lib"}},
		{args: []string{"run", "worker"}, typ: domain.TaskTypeRun, names: []string{"worker"}},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			m := &mockApp{}
			_, err := execute(t, m, tt.args...)
			require.NoError(t, err)

			got := m.last()
			assert.Equal(t, "Run", got.method)
			assert.Equal(t, tt.typ, got.typ)
			if tt.names == nil {
				assert.Empty(t, got.names)
			} else {
				assert.Equal(t, tt.names, got.names)
			}
			assert.Equal(t, tt.opts, got.run)
		})
	}
}

func TestCommands_Run_ShowsUsageWithoutTargets(t *testing.T) {
	m := &mockApp{}
	out, err := execute(t, m, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.NotEqual(t, "Run", m.last().method)
}

func TestCommands_Delete(t *testing.T) {
	m := &mockApp{}
	_, err := execute(t, m, "delete", "api", "-j", "2")
	require.NoError(t, err)
	assert.Equal(t, call{method: "Delete", names: []string{"api"}, run: app.RunOptions{Concurrency: 2}}, m.last())

	_, err = execute(t, &mockApp{}, "delete")
	require.Error(t, err)
}

func TestCommands_ReturnsAppError(t *testing.T) {
	m := &mockApp{err: errors.New("simulated error")}
	_, err := execute(t, m, "build", "api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulated error")
}

func TestCommands_GlobalFlags(t *testing.T) {
	tests := []struct {
		args    []string
		mode    string
		verbose bool
	}{
		{args: []string{"status"}},
		{args: []string{"status", "--output", "json"}, mode: "json"},
		{args: []string{"status", "--ci", "-o", "json"}, mode: "linear"},
		{args: []string{"-v", "status"}, verbose: true},
	}

	for _, tt := range tests {
		m := &mockApp{}
		_, err := execute(t, m, tt.args...)
		require.NoError(t, err)
		require.NotEmpty(t, m.calls)
		assert.Equal(t, call{method: "Configure", mode: tt.mode, verbose: tt.verbose}, m.calls[0], tt.args)
	}
}

func TestCommands_Dev(t *testing.T) {
	m := &mockApp{}
	_, err := execute(t, m, "dev", "api", "--type", "test", "-j", "3")
	require.NoError(t, err)
	assert.Equal(t, call{
		method: "Dev",
		names:  []string{"api"},
		dev:    app.DevOptions{Type: domain.TaskTypeTest, Concurrency: 3},
	}, m.last())

	_, err = execute(t, &mockApp{}, "dev", "--type", "publish")
	require.ErrorIs(t, err, domain.ErrUnknownTaskType)

	_, err = execute(t, &mockApp{}, "dev", "--type", "lint")
	require.ErrorIs(t, err, domain.ErrUnknownTaskType)
}

func TestCommands_Queries(t *testing.T) {
	m := &mockApp{}

	_, err := execute(t, m, "status", "api")
	require.NoError(t, err)
	assert.Equal(t, call{method: "Status", names: []string{"api"}}, m.last())

	_, err = execute(t, m, "result", "deploy.api")
	require.NoError(t, err)
	assert.Equal(t, call{method: "Result", key: "deploy.api"}, m.last())

	_, err = execute(t, m, "result")
	require.Error(t, err)

	_, err = execute(t, m, "history")
	require.NoError(t, err)
	assert.Equal(t, call{method: "History", limit: 20}, m.last())

	_, err = execute(t, m, "history", "-n", "5")
	require.NoError(t, err)
	assert.Equal(t, call{method: "History", limit: 5}, m.last())
}

func TestCommands_Daemon(t *testing.T) {
	for sub, method := range map[string]string{
		"serve":   "ServeDaemon",
		"start":   "StartDaemon",
		"status":  "DaemonStatus",
		"modules": "DaemonModules",
		"stop":    "StopDaemon",
	} {
		m := &mockApp{}
		_, err := execute(t, m, "daemon", sub)
		require.NoError(t, err)
		assert.Equal(t, method, m.last().method)
	}

	m := &mockApp{}
	_, err := execute(t, m, "daemon", "result", "build.api")
	require.NoError(t, err)
	assert.Equal(t, call{method: "DaemonResult", key: "build.api"}, m.last())
}

func TestCommands_Clean(t *testing.T) {
	tests := []struct {
		args []string
		want app.CleanOptions
	}{
		{args: []string{"clean"}, want: app.CleanOptions{Store: true}},
		{args: []string{"clean", "--history"}, want: app.CleanOptions{History: true}},
		{args: []string{"clean", "--all"}, want: app.CleanOptions{Store: true, History: true}},
	}

	for _, tt := range tests {
		m := &mockApp{}
		_, err := execute(t, m, tt.args...)
		require.NoError(t, err)
		assert.Equal(t, call{method: "Clean", clean: tt.want}, m.last())
	}
}

func TestCommands_Version(t *testing.T) {
	out, err := execute(t, &mockApp{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "garden version "+build.Version)

	out, err = execute(t, &mockApp{}, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "commit: "+build.Commit)
}

func TestCommands_HelpAndShorthands(t *testing.T) {
	out, err := execute(t, &mockApp{}, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "-v, --verbose")
	assert.Contains(t, out, "--version")
	assert.NotContains(t, out, "-v, --version")

	m := &mockApp{}
	_, err = execute(t, m, "build", "-v", "api")
	require.NoError(t, err)
	assert.Equal(t, call{method: "Configure", verbose: true}, m.calls[0])
	assert.Equal(t, []string{"api"}, m.last().names)
}
