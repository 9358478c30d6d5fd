package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// TaskType is the action a task performs. The set of types is closed.
type TaskType string

const (
	TaskTypeBuild           TaskType = "build"
	TaskTypeDeploy          TaskType = "deploy"
	TaskTypeTest            TaskType = "test"
	TaskTypeRun             TaskType = "run"
	TaskTypeDeleteService   TaskType = "delete-service"
	TaskTypeGetStatus       TaskType = "get-status"
	TaskTypeResolveProvider TaskType = "resolve-provider"
	TaskTypePublish         TaskType = "publish"
	TaskTypeHotReload       TaskType = "hot-reload"
	TaskTypeGetTaskResult   TaskType = "get-task-result"
)

// TaskTypes lists every known task type.
func TaskTypes() []TaskType {
	return []TaskType{
		TaskTypeBuild, TaskTypeDeploy, TaskTypeTest, TaskTypeRun, TaskTypeDeleteService,
		TaskTypeGetStatus, TaskTypeResolveProvider, TaskTypePublish, TaskTypeHotReload,
		TaskTypeGetTaskResult,
	}
}

// ParseTaskType validates s against the closed set of task types.
func ParseTaskType(s string) (TaskType, error) {
	for _, t := range TaskTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", zerr.With(zerr.Wrap(ErrUnknownTaskType, "parse task type"), "type", s)
}

// TaskKey identifies equivalent tasks: "<type>.<name>".
type TaskKey string

// NewTaskKey builds the key for a task type acting on name.
func NewTaskKey(t TaskType, name string) TaskKey {
	return TaskKey(string(t) + "." + name)
}

// ParseTaskKey splits a key into its type and name.
func ParseTaskKey(s string) (TaskType, string, error) {
	typ, name, ok := strings.Cut(s, ".")
	if !ok || name == "" {
		return "", "", zerr.With(zerr.Wrap(ErrInvalidTaskKey, "parse task key"), "key", s)
	}
	t, err := ParseTaskType(typ)
	if err != nil {
		return "", "", err
	}
	return t, name, nil
}

func (k TaskKey) String() string {
	return string(k)
}

// TaskID is unique per scheduled task instance: "<key>.<uid>".
type TaskID string

// NewTaskID builds an id from a key and a time-sortable uid.
func NewTaskID(key TaskKey, uid string) TaskID {
	return TaskID(string(key) + "." + uid)
}

func (id TaskID) String() string {
	return string(id)
}

// TaskState is the lifecycle state of a task within one scheduler run.
type TaskState string

const (
	TaskStatePending             TaskState = "pending"
	TaskStateEligible            TaskState = "eligible"
	TaskStateRunning             TaskState = "running"
	TaskStateDone                TaskState = "done"
	TaskStateFailed              TaskState = "failed"
	TaskStateFailedByPropagation TaskState = "failed-by-propagation"
)

// Terminal reports whether no further transition is possible.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateDone, TaskStateFailed, TaskStateFailedByPropagation:
		return true
	default:
		return false
	}
}
