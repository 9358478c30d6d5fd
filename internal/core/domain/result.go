package domain

import (
	"sort"
	"time"
)

// TaskResult is the terminal outcome of one task.
type TaskResult struct {
	Type  TaskType
	Name  string
	Key   TaskKey
	ID    TaskID
	State TaskState

	Output any
	Err    error

	// Dependencies holds the results the task was processed with, keyed by dependency key.
	Dependencies map[TaskKey]*TaskResult

	StartedAt   time.Time
	CompletedAt time.Time
}

// Failed reports whether the task failed directly or by propagation.
func (r *TaskResult) Failed() bool {
	return r.State == TaskStateFailed || r.State == TaskStateFailedByPropagation
}

// Duration is the time the task spent processing.
func (r *TaskResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Results maps every scheduled task id to its result. Ids that share a key share a result.
type Results map[TaskID]*TaskResult

// ByKey returns the result recorded for key.
func (r Results) ByKey(key TaskKey) (*TaskResult, bool) {
	for _, res := range r {
		if res.Key == key {
			return res, true
		}
	}
	return nil, false
}

// Unique returns one result per key, sorted by key.
func (r Results) Unique() []*TaskResult {
	seen := make(map[TaskKey]*TaskResult, len(r))
	for _, res := range r {
		seen[res.Key] = res
	}
	out := make([]*TaskResult, 0, len(seen))
	for _, res := range seen {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Failed returns the failed results, one per key, sorted by key.
func (r Results) Failed() []*TaskResult {
	var out []*TaskResult
	for _, res := range r.Unique() {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// StoredResult is a task result as persisted in the result history.
type StoredResult struct {
	RunID       string    `json:"run_id"`
	Key         TaskKey   `json:"key"`
	ID          TaskID    `json:"id"`
	State       TaskState `json:"state"`
	Output      string    `json:"output,omitzero"`
	Error       string    `json:"error,omitzero"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// RunSummary aggregates one scheduler run in the result history.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	Tasks     int       `json:"tasks"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at"`
}
