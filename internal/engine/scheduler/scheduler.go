// Package scheduler executes task graphs with deduplication, bounded concurrency and
// failure propagation.
package scheduler

import (
	"context"
	"time"

	"go.trai.ch/garden/internal/adapters/metrics"
	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.TaskScheduler = (*Scheduler)(nil)

// Scheduler manages the execution of task graphs.
type Scheduler struct {
	tracer ports.Tracer
	now    func() time.Time
}

// NewScheduler creates a new Scheduler reporting spans to tracer.
func NewScheduler(tracer ports.Tracer) *Scheduler {
	return &Scheduler{tracer: tracer, now: time.Now}
}

// Process runs roots and their transitive dependencies and returns a result for every
// scheduled task id. Ids sharing a key share one result.
func (s *Scheduler) Process(
	ctx context.Context,
	roots []ports.Task,
	opts ports.ProcessOptions,
) (domain.Results, error) {
	p, err := expand(ctx, roots)
	if err != nil {
		return nil, err
	}

	if cycles := FindCycles(p.edges()); len(cycles) > 0 {
		return nil, cycleError(cycles)
	}

	p.link()
	s.emitPlan(ctx, p)

	state := newRunState(ctx, s, p, opts.ConcurrencyLimit)
	runErr := state.runExecutionLoop()

	results := make(domain.Results, len(p.ids))
	for id, key := range p.ids {
		results[id] = p.nodes[key].result
	}
	return results, runErr
}

func (s *Scheduler) emitPlan(ctx context.Context, p *plan) {
	order := p.order()
	keys := make([]string, len(order))
	deps := make(map[string][]string, len(order))
	for i, key := range order {
		keys[i] = string(key)
		n := p.nodes[key]
		ds := make([]string, len(n.deps))
		for j, d := range n.deps {
			ds[j] = string(d)
		}
		deps[string(key)] = ds
	}

	targets := make([]string, len(p.roots))
	for i, r := range p.roots {
		targets[i] = string(r)
	}

	s.tracer.EmitPlan(ctx, keys, deps, targets)
}

type result struct {
	key       domain.TaskKey
	output    any
	err       error
	startedAt time.Time
	endedAt   time.Time
}

type runState struct {
	ctx       context.Context
	s         *Scheduler
	plan      *plan
	ready     []domain.TaskKey
	active    int
	limit     int
	remaining int
	resultsCh chan result
}

func newRunState(ctx context.Context, s *Scheduler, p *plan, limit int) *runState {
	if limit <= 0 {
		limit = len(p.nodes)
	}

	state := &runState{
		ctx:       ctx,
		s:         s,
		plan:      p,
		limit:     limit,
		remaining: len(p.nodes),
		// Buffered so that tasks still running after a cancellation never block.
		resultsCh: make(chan result, len(p.nodes)),
	}

	for _, key := range p.sortedKeys() {
		if n := p.nodes[key]; n.err != nil && n.result == nil {
			state.fail(n, n.err)
		}
	}
	for _, key := range p.sortedKeys() {
		if n := p.nodes[key]; n.waiting == 0 && n.result == nil {
			state.ready = append(state.ready, key)
		}
	}
	return state
}

func (state *runState) runExecutionLoop() error {
	for state.remaining > 0 {
		if err := state.ctx.Err(); err != nil {
			return state.cancel(err)
		}

		state.schedule()

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
			return state.cancel(state.ctx.Err())
		}
	}

	if err := state.ctx.Err(); err != nil {
		return state.cancel(err)
	}
	return nil
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.limit && state.ctx.Err() == nil {
		key := state.ready[0]
		state.ready = state.ready[1:]

		n := state.plan.nodes[key]
		deps := make(map[domain.TaskKey]*domain.TaskResult, len(n.deps))
		for _, dep := range n.deps {
			deps[dep] = state.plan.nodes[dep].result
		}

		state.active++
		metrics.TasksActive.Inc()
		go state.executeTask(n.task, deps)
	}
}

func (state *runState) executeTask(t ports.Task, deps map[domain.TaskKey]*domain.TaskResult) {
	// The span must end before the result is sent so observers see it complete first.
	res := func() result {
		ctx, span := state.s.tracer.Start(state.ctx, string(t.Key()), ports.WithKind(string(t.Type())))
		defer span.End()

		span.SetAttribute("garden.task.id", string(t.ID()))
		if v := t.Version(); v != "" {
			span.SetAttribute("garden.task.version", v)
		}

		started := state.s.now()
		output, err := t.Process(ports.ContextWithSpan(ctx, span), deps)
		if err != nil {
			span.RecordError(err)
		}

		return result{key: t.Key(), output: output, err: err, startedAt: started, endedAt: state.s.now()}
	}()

	state.resultsCh <- res
}

func (state *runState) handleResult(res result) {
	state.active--
	metrics.TasksActive.Dec()

	n := state.plan.nodes[res.key]
	metrics.TaskDuration.WithLabelValues(string(n.task.Type())).Observe(res.endedAt.Sub(res.startedAt).Seconds())

	if res.err != nil {
		state.fail(n, zerr.With(res.err, "task", string(n.key)))
		n.result.StartedAt = res.startedAt
		n.result.CompletedAt = res.endedAt
		return
	}

	r := state.newResult(n, domain.TaskStateDone)
	r.Output = res.output
	r.StartedAt = res.startedAt
	r.CompletedAt = res.endedAt
	r.Dependencies = make(map[domain.TaskKey]*domain.TaskResult, len(n.deps))
	for _, dep := range n.deps {
		r.Dependencies[dep] = state.plan.nodes[dep].result
	}
	state.finish(n, r)

	for _, key := range n.dependents {
		d := state.plan.nodes[key]
		d.waiting--
		if d.waiting == 0 && d.result == nil {
			state.ready = append(state.ready, key)
		}
	}
}

// fail records err for n and marks every transitive dependent as failed by propagation.
func (state *runState) fail(n *node, err error) {
	r := state.newResult(n, domain.TaskStateFailed)
	r.Err = err
	state.finish(n, r)

	queue := append([]domain.TaskKey(nil), n.dependents...)
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]

		d := state.plan.nodes[key]
		if d.result != nil {
			continue
		}

		pr := state.newResult(d, domain.TaskStateFailedByPropagation)
		pr.Err = domain.NewDependencyFailedError(d.key, n.key, err)
		state.finish(d, pr)
		queue = append(queue, d.dependents...)
	}
}

// cancel fails every task without a result and returns the run error.
func (state *runState) cancel(cause error) error {
	err := canceled(cause)
	for _, key := range state.plan.sortedKeys() {
		n := state.plan.nodes[key]
		if n.result != nil {
			continue
		}
		r := state.newResult(n, domain.TaskStateFailed)
		r.Err = zerr.With(err, "task", string(key))
		state.finish(n, r)
	}
	metrics.TasksActive.Sub(float64(state.active))
	return err
}

func (state *runState) newResult(n *node, st domain.TaskState) *domain.TaskResult {
	return &domain.TaskResult{
		Type:  n.task.Type(),
		Name:  n.task.Name(),
		Key:   n.key,
		ID:    n.task.ID(),
		State: st,
	}
}

func (state *runState) finish(n *node, r *domain.TaskResult) {
	n.result = r
	state.remaining--
	metrics.TasksTotal.WithLabelValues(string(r.Type), string(r.State)).Inc()
}
