package scheduler

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/zerr"
)

// node is one unit of work in a plan: the representative task of a key.
type node struct {
	key        domain.TaskKey
	task       ports.Task
	deps       []domain.TaskKey
	dependents []domain.TaskKey
	waiting    int
	err        error
	result     *domain.TaskResult
}

// plan is the expanded, deduplicated task graph of one Process call.
type plan struct {
	nodes map[domain.TaskKey]*node
	ids   map[domain.TaskID]domain.TaskKey
	roots []domain.TaskKey
}

// expand walks the dependency graph of roots with an explicit worklist and a seen set keyed by
// task key. Every key is expanded once, through the first instance met. A later instance with a
// higher id becomes the representative that executes but keeps the dependency keys already
// recorded, so tasks that build fresh dependency instances on every call still terminate.
func expand(ctx context.Context, roots []ports.Task) (*plan, error) {
	p := &plan{
		nodes: make(map[domain.TaskKey]*node),
		ids:   make(map[domain.TaskID]domain.TaskKey),
	}

	queue := slices.Clone(roots)
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, canceled(err)
		}

		t := queue[0]
		queue = queue[1:]

		key := t.Key()
		p.ids[t.ID()] = key

		if n, seen := p.nodes[key]; seen {
			if t.ID() > n.task.ID() {
				n.task = t
			}
			continue
		}

		n := &node{key: key, task: t}
		p.nodes[key] = n

		deps, err := t.Dependencies(ctx)
		if err != nil {
			n.err = zerr.With(fmt.Errorf("%w: %w", domain.ErrDependencyResolutionFailed, err), "task", string(key))
			continue
		}

		for _, d := range deps {
			if !slices.Contains(n.deps, d.Key()) {
				n.deps = append(n.deps, d.Key())
			}
			queue = append(queue, d)
		}
	}

	for _, r := range roots {
		if !slices.Contains(p.roots, r.Key()) {
			p.roots = append(p.roots, r.Key())
		}
	}
	return p, nil
}

// link fills in dependents and waiting counts.
func (p *plan) link() {
	for _, key := range p.sortedKeys() {
		n := p.nodes[key]
		n.waiting = len(n.deps)
		for _, dep := range n.deps {
			d := p.nodes[dep]
			d.dependents = append(d.dependents, key)
		}
	}
}

func (p *plan) sortedKeys() []domain.TaskKey {
	keys := make([]domain.TaskKey, 0, len(p.nodes))
	for key := range p.nodes {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// edges returns the dependency edges of the plan keyed by task key.
func (p *plan) edges() map[domain.TaskKey][]domain.TaskKey {
	out := make(map[domain.TaskKey][]domain.TaskKey, len(p.nodes))
	for key, n := range p.nodes {
		out[key] = n.deps
	}
	return out
}

// order returns the plan keys in dependency order, ties broken by key.
func (p *plan) order() []domain.TaskKey {
	indegree := make(map[domain.TaskKey]int, len(p.nodes))
	for key, n := range p.nodes {
		indegree[key] = len(n.deps)
	}

	var ready, out []domain.TaskKey
	for _, key := range p.sortedKeys() {
		if indegree[key] == 0 {
			ready = append(ready, key)
		}
	}

	for len(ready) > 0 {
		key := ready[0]
		ready = ready[1:]
		out = append(out, key)

		var next []domain.TaskKey
		for _, dep := range p.nodes[key].dependents {
			indegree[dep]--
			if indegree[dep] == 0 {
				next = append(next, dep)
			}
		}
		slices.Sort(next)
		ready = append(ready, next...)
	}
	return out
}

// FindCycles returns every cycle reachable in edges as an ordered key list whose first and last
// elements are equal. Traversal order is deterministic.
func FindCycles(edges map[domain.TaskKey][]domain.TaskKey) [][]domain.TaskKey {
	const (
		white = iota
		gray
		black
	)

	color := make(map[domain.TaskKey]int, len(edges))
	var stack []domain.TaskKey
	var cycles [][]domain.TaskKey

	var visit func(key domain.TaskKey)
	visit = func(key domain.TaskKey) {
		color[key] = gray
		stack = append(stack, key)

		for _, dep := range edges[key] {
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				start := slices.Index(stack, dep)
				cycle := append(slices.Clone(stack[start:]), dep)
				cycles = append(cycles, cycle)
			}
		}

		stack = stack[:len(stack)-1]
		color[key] = black
	}

	keys := make([]domain.TaskKey, 0, len(edges))
	for key := range edges {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if color[key] == white {
			visit(key)
		}
	}
	return cycles
}

// cycleError aggregates cycles into one error matching domain.ErrCycleDetected.
func cycleError(cycles [][]domain.TaskKey) error {
	rendered := make([]string, len(cycles))
	for i, cycle := range cycles {
		parts := make([]string, len(cycle))
		for j, key := range cycle {
			parts[j] = string(key)
		}
		rendered[i] = strings.Join(parts, " -> ")
	}

	err := fmt.Errorf("%w: %s", domain.ErrCycleDetected, strings.Join(rendered, "; "))
	return zerr.With(err, "cycles", rendered)
}

func canceled(cause error) error {
	return fmt.Errorf("%w: %w", domain.ErrRunCanceled, cause)
}
