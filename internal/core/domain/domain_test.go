package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestParseTaskKey(t *testing.T) {
	tests := []struct {
		in       string
		wantType domain.TaskType
		wantName string
		wantErr  error
	}{
		{in: "build.api", wantType: domain.TaskTypeBuild, wantName: "api"},
		{in: "delete-service.db", wantType: domain.TaskTypeDeleteService, wantName: "db"},
		{in: "build.api.v2", wantType: domain.TaskTypeBuild, wantName: "api.v2"},
		{in: "build", wantErr: domain.ErrInvalidTaskKey},
		{in: "build.", wantErr: domain.ErrInvalidTaskKey},
		{in: "compile.api", wantErr: domain.ErrUnknownTaskType},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, name, err := domain.ParseTaskKey(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, typ)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, domain.TaskKey(tt.in), domain.NewTaskKey(typ, name))
		})
	}
}

func TestNewTaskID(t *testing.T) {
	key := domain.NewTaskKey(domain.TaskTypeDeploy, "web")
	assert.Equal(t, domain.TaskKey("deploy.web"), key)
	assert.Equal(t, domain.TaskID("deploy.web.0191"), domain.NewTaskID(key, "0191"))
}

func TestTaskState_Terminal(t *testing.T) {
	assert.False(t, domain.TaskStatePending.Terminal())
	assert.False(t, domain.TaskStateRunning.Terminal())
	assert.True(t, domain.TaskStateDone.Terminal())
	assert.True(t, domain.TaskStateFailed.Terminal())
	assert.True(t, domain.TaskStateFailedByPropagation.Terminal())
}

func TestCategory(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorCategory
	}{
		{"cycle", zerr.Wrap(domain.ErrCycleDetected, "validate"), domain.CategoryConfiguration},
		{"command", zerr.With(zerr.Wrap(domain.ErrCommandFailed, "build"), "exit_code", 2), domain.CategoryRuntime},
		{"deadline", domain.ErrDeadlineExceeded, domain.CategoryTimeout},
		{"malformed", zerr.Wrap(domain.ErrMalformedOutput, "status"), domain.CategoryPlugin},
		{"plain", errors.New("boom"), domain.CategoryRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.Category(tt.err))
		})
	}
}

func TestNewDependencyFailedError(t *testing.T) {
	cause := zerr.Wrap(domain.ErrCommandFailed, "build")
	err := domain.NewDependencyFailedError("deploy.web", "build.web", cause)

	require.ErrorIs(t, err, domain.ErrDependencyFailed)
	require.ErrorIs(t, err, domain.ErrCommandFailed)
	assert.Contains(t, err.Error(), "deploy.web skipped because build.web failed")

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, "deploy.web", zErr.Metadata()["task"])
	assert.Equal(t, "build.web", zErr.Metadata()["dependency"])
}

func TestResults(t *testing.T) {
	shared := &domain.TaskResult{Key: "build.a", State: domain.TaskStateDone}
	failed := &domain.TaskResult{Key: "test.a", State: domain.TaskStateFailed}
	skipped := &domain.TaskResult{Key: "deploy.a", State: domain.TaskStateFailedByPropagation}
	results := domain.Results{
		"build.a.1":  shared,
		"build.a.2":  shared,
		"test.a.1":   failed,
		"deploy.a.1": skipped,
	}

	got, ok := results.ByKey("build.a")
	require.True(t, ok)
	assert.Same(t, shared, got)

	_, ok = results.ByKey("run.a")
	assert.False(t, ok)

	assert.Len(t, results.Unique(), 3)
	assert.Equal(t, []*domain.TaskResult{skipped, failed}, results.Failed())
}

func TestTaskResult_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &domain.TaskResult{StartedAt: start, CompletedAt: start.Add(1500 * time.Millisecond)}
	assert.Equal(t, 1500*time.Millisecond, r.Duration())
	assert.Zero(t, (&domain.TaskResult{}).Duration())
}

func TestModuleVersion_Stable(t *testing.T) {
	now := time.Now()
	assert.True(t, (&domain.ModuleVersion{VersionString: "abc"}).Stable())
	assert.False(t, (&domain.ModuleVersion{VersionString: "abc", DirtyTimestamp: &now}).Stable())
}

func TestModule_Action(t *testing.T) {
	m := &domain.Module{
		Name: "api",
		Actions: map[domain.Action]domain.ActionSpec{
			domain.ActionBuild: {Command: []string{"make"}},
			domain.ActionTest:  {},
		},
		ServiceDependencies: []string{"db"},
	}
	_, ok := m.Action(domain.ActionBuild)
	assert.True(t, ok)
	_, ok = m.Action(domain.ActionTest)
	assert.False(t, ok)
	_, ok = m.Action(domain.ActionDeploy)
	assert.False(t, ok)
	assert.True(t, m.DependsOnService("db"))
	assert.False(t, m.DependsOnService("api"))
}

func TestLayout(t *testing.T) {
	assert.True(t, domain.IsConfigFileName("garden.yml"))
	assert.True(t, domain.IsConfigFileName("project.garden.yml"))
	assert.False(t, domain.IsConfigFileName("main.go"))
	assert.True(t, domain.IsIgnoreFileName(".gardenignore"))
	assert.True(t, domain.IsIgnoreFileName(".gitignore"))
	assert.Equal(t, "/p/.garden/store", domain.DefaultStorePath("/p"))
	assert.Equal(t, "/p/.garden/history.db", domain.DefaultHistoryPath("/p"))
}
