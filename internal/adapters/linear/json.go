package linear

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"go.trai.ch/garden/internal/core/ports"
)

var _ ports.Renderer = (*JSONRenderer)(nil)

// Event is one line written by JSONRenderer.
type Event struct {
	Event    string              `json:"event"`
	Time     time.Time           `json:"time"`
	Task     string              `json:"task,omitempty"`
	Parent   string              `json:"parent,omitempty"`
	Tasks    []string            `json:"tasks,omitempty"`
	Deps     map[string][]string `json:"deps,omitempty"`
	Targets  []string            `json:"targets,omitempty"`
	Output   string              `json:"output,omitempty"`
	Duration string              `json:"duration,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// JSONRenderer writes one Event per line for machine consumers.
type JSONRenderer struct {
	mu    sync.Mutex
	enc   *json.Encoder
	now   func() time.Time
	names map[string]string
	start map[string]time.Time
}

// NewJSONRenderer creates a JSONRenderer on w. A nil writer means stdout.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	if w == nil {
		w = os.Stdout
	}
	return &JSONRenderer{
		enc:   json.NewEncoder(w),
		now:   time.Now,
		names: make(map[string]string),
		start: make(map[string]time.Time),
	}
}

// Start is a no-op.
func (r *JSONRenderer) Start(_ context.Context) error { return nil }

// Stop is a no-op; every event is written as it arrives.
func (r *JSONRenderer) Stop() error { return nil }

// Wait is a no-op.
func (r *JSONRenderer) Wait() error { return nil }

// OnPlanEmit writes a plan event.
func (r *JSONRenderer) OnPlanEmit(keys []string, deps map[string][]string, targets []string) {
	r.write(Event{Event: "plan", Time: r.now(), Tasks: keys, Deps: deps, Targets: targets})
}

// OnTaskStart writes a start event.
func (r *JSONRenderer) OnTaskStart(spanID, parentID, name string, startTime time.Time) {
	r.mu.Lock()
	r.names[spanID] = name
	r.start[spanID] = startTime
	parent := r.names[parentID]
	r.mu.Unlock()

	r.write(Event{Event: "start", Time: startTime, Task: name, Parent: parent})
}

// OnTaskLog writes an output event carrying data verbatim.
func (r *JSONRenderer) OnTaskLog(spanID string, data []byte) {
	r.mu.Lock()
	name, ok := r.names[spanID]
	r.mu.Unlock()
	if !ok {
		return
	}

	r.write(Event{Event: "output", Time: r.now(), Task: name, Output: string(data)})
}

// OnTaskComplete writes a done or failed event.
func (r *JSONRenderer) OnTaskComplete(spanID string, endTime time.Time, err error) {
	r.mu.Lock()
	name, ok := r.names[spanID]
	started := r.start[spanID]
	delete(r.names, spanID)
	delete(r.start, spanID)
	r.mu.Unlock()
	if !ok {
		return
	}

	ev := Event{Event: "done", Time: endTime, Task: name, Duration: endTime.Sub(started).String()}
	if err != nil {
		ev.Event = "failed"
		ev.Error = err.Error()
	}
	r.write(ev)
}

func (r *JSONRenderer) write(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(ev)
}
