package domain

import (
	"errors"
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrConfiguration is the category of invalid or contradictory declared configuration.
	ErrConfiguration = zerr.New("configuration error")

	// ErrRuntime is the category of external commands or integrations failing unexpectedly.
	ErrRuntime = zerr.New("runtime error")

	// ErrTimeout is the category of operations exceeding an explicit deadline.
	ErrTimeout = zerr.New("timeout")

	// ErrPlugin is the category of collaborators returning malformed data.
	ErrPlugin = zerr.New("plugin error")
)

var (
	// ErrCycleDetected is returned when a cycle is detected in the task dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrDependencyFailed marks a task that was skipped because one of its dependencies failed.
	ErrDependencyFailed = zerr.New("dependency failed")

	// ErrTaskExecutionFailed is returned when a task's process step fails.
	ErrTaskExecutionFailed = zerr.New("task execution failed")

	// ErrDependencyResolutionFailed is returned when a task cannot compute its dependencies.
	ErrDependencyResolutionFailed = zerr.New("failed to resolve task dependencies")

	// ErrRunCanceled is recorded for tasks that never started because the run was canceled.
	ErrRunCanceled = zerr.New("run canceled")

	// ErrUnknownTaskType is returned when a task type is not part of the closed set.
	ErrUnknownTaskType = zerr.New("unknown task type")

	// ErrInvalidTaskKey is returned when a task key is not of the form "<type>.<name>".
	ErrInvalidTaskKey = zerr.New("invalid task key")

	// ErrModuleNotFound is returned when a module reference cannot be resolved.
	ErrModuleNotFound = zerr.New("module not found")

	// ErrProviderNotFound is returned when a module references an undeclared provider.
	ErrProviderNotFound = zerr.New("provider not found")

	// ErrMissingDependency is returned when a module declares a dependency that does not exist.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrMissingModuleName is returned when a module config has no name.
	ErrMissingModuleName = zerr.New("missing module name")

	// ErrInvalidModuleName is returned when a module name contains invalid characters.
	ErrInvalidModuleName = zerr.New(
		"module name must start with a lowercase letter or digit and contain only lowercase letters, digits, hyphens and underscores",
	)

	// ErrDuplicateModuleName is returned when two modules share the same name.
	ErrDuplicateModuleName = zerr.New("duplicate module name")

	// ErrTasksFailed is returned when at least one task of a run failed.
	// The individual failures have already been reported by the renderer.
	ErrTasksFailed = zerr.New("one or more tasks failed")

	// ErrNoTargetsSpecified is returned when a command needs at least one module.
	ErrNoTargetsSpecified = zerr.New("no targets specified")

	// ErrConfigNotFound is returned when no project config file can be found.
	ErrConfigNotFound = zerr.New("could not find garden.yml")

	// ErrConfigReadFailed is returned when a config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when a config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrSettingsParseFailed is returned when the user settings file cannot be parsed.
	ErrSettingsParseFailed = zerr.New("failed to parse settings file")

	// ErrVCSFailed is returned when the version control collaborator cannot list or inspect files.
	ErrVCSFailed = zerr.New("version control query failed")

	// ErrNotARepository is returned when a path is not inside a version controlled tree.
	ErrNotARepository = zerr.New("not inside a git repository")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")

	// ErrCommandFailed is returned when an external command exits unsuccessfully.
	ErrCommandFailed = zerr.New("command failed")

	// ErrCommandNotDefined is returned when a module has no command for an action.
	ErrCommandNotDefined = zerr.New("no command defined for action")

	// ErrMalformedOutput is returned when a collaborator returns data that cannot be interpreted.
	ErrMalformedOutput = zerr.New("malformed collaborator output")

	// ErrDeadlineExceeded is returned when waiting on a resource exceeds its deadline.
	ErrDeadlineExceeded = zerr.New("deadline exceeded")

	// ErrWatcherStartFailed is returned when the filesystem watcher cannot be started.
	ErrWatcherStartFailed = zerr.New("failed to start filesystem watcher")

	// ErrStoreCreateFailed is returned when the build info store directory cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create build info store directory")

	// ErrStoreReadFailed is returned when the build info cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read build info")

	// ErrStoreUnmarshalFailed is returned when the build info cannot be unmarshaled.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal build info")

	// ErrStoreMarshalFailed is returned when the build info cannot be marshaled.
	ErrStoreMarshalFailed = zerr.New("failed to marshal build info")

	// ErrStoreWriteFailed is returned when the build info cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write build info")

	// ErrHistoryOpenFailed is returned when the result history database cannot be opened.
	ErrHistoryOpenFailed = zerr.New("failed to open result history")

	// ErrHistoryQueryFailed is returned when a result history query fails.
	ErrHistoryQueryFailed = zerr.New("result history query failed")

	// ErrResultNotFound is returned when no stored result exists for a task key.
	ErrResultNotFound = zerr.New("no stored result for task")

	// ErrDaemonNotRunning is returned when the daemon socket does not answer.
	ErrDaemonNotRunning = zerr.New("daemon is not running")

	// ErrDaemonStartFailed is returned when the daemon cannot listen or be spawned.
	ErrDaemonStartFailed = zerr.New("failed to start daemon")
)

// ErrorCategory classifies errors for propagation and presentation.
type ErrorCategory string

const (
	// CategoryConfiguration covers invalid declared configuration. Never retried.
	CategoryConfiguration ErrorCategory = "configuration"
	// CategoryRuntime covers failing external commands and integrations.
	CategoryRuntime ErrorCategory = "runtime"
	// CategoryTimeout covers exceeded deadlines.
	CategoryTimeout ErrorCategory = "timeout"
	// CategoryPlugin covers misbehaving collaborators.
	CategoryPlugin ErrorCategory = "plugin"
)

var categories = []struct {
	category ErrorCategory
	errs     []error
}{
	{CategoryConfiguration, []error{
		ErrConfiguration, ErrCycleDetected, ErrUnknownTaskType, ErrInvalidTaskKey,
		ErrModuleNotFound, ErrMissingDependency, ErrMissingModuleName, ErrInvalidModuleName,
		ErrDuplicateModuleName, ErrConfigNotFound, ErrConfigParseFailed, ErrSettingsParseFailed,
		ErrNotARepository, ErrCommandNotDefined, ErrProviderNotFound,
	}},
	{CategoryTimeout, []error{ErrTimeout, ErrDeadlineExceeded}},
	{CategoryPlugin, []error{ErrPlugin, ErrMalformedOutput}},
}

// Category reports the category of err. Errors that match no known sentinel are runtime errors.
func Category(err error) ErrorCategory {
	for _, c := range categories {
		for _, sentinel := range c.errs {
			if errors.Is(err, sentinel) {
				return c.category
			}
		}
	}
	return CategoryRuntime
}

// NewDependencyFailedError builds the error recorded for a task skipped because dep failed.
// It matches both ErrDependencyFailed and cause with errors.Is.
func NewDependencyFailedError(task, dep TaskKey, cause error) error {
	err := fmt.Errorf("%w: %s skipped because %s failed: %w", ErrDependencyFailed, task, dep, cause)
	err = zerr.With(err, "task", task.String())
	return zerr.With(err, "dependency", dep.String())
}
