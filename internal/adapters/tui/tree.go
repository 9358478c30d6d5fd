package tui

const maxTreeDepth = 10

// row is one line of the task tree. A task depended on by several tasks appears once per
// dependent, every row pointing at the same task.
type row struct {
	task     *task
	depth    int
	expanded bool
	children []*row
}

// buildTree lays the plan out as one tree per target, dependencies below their dependents.
func buildTree(targets []string, deps map[string][]string, tasks map[string]*task) []*row {
	roots := make([]*row, 0, len(targets))
	for _, target := range targets {
		if r := buildSubtree(target, deps, tasks, 0); r != nil {
			roots = append(roots, r)
		}
	}
	return roots
}

func buildSubtree(key string, deps map[string][]string, tasks map[string]*task, depth int) *row {
	if depth > maxTreeDepth {
		return nil
	}
	t, ok := tasks[key]
	if !ok {
		return nil
	}

	r := &row{task: t, depth: depth, expanded: true}
	for _, dep := range deps[key] {
		if child := buildSubtree(dep, deps, tasks, depth+1); child != nil {
			r.children = append(r.children, child)
		}
	}
	return r
}

// flatten lists the visible rows. Children of collapsed rows are hidden.
func flatten(roots []*row) []*row {
	var flat []*row

	var walk func(r *row)
	walk = func(r *row) {
		flat = append(flat, r)
		if !r.expanded {
			return
		}
		for _, child := range r.children {
			walk(child)
		}
	}

	for _, r := range roots {
		walk(r)
	}
	return flat
}
