package dag

import (
	"fmt"
	"sort"

	"github.com/gammazero/toposort"
)

// Graph is the immutable dependency topology. It is built once from
// validated tasks and shared read-only afterwards; all mutation of
// per-run state lives in the engine, never here.
type Graph struct {
	tasks      map[string]*Task
	dependents map[string][]string
	order      []string // topological order, dependencies first
}

// Build validates the task set and derives adjacency.
//
// It fails with *UnknownTaskError if an `after` reference does not
// resolve, and with *CycleError naming the cycle if the dependency
// relation is not acyclic.
func Build(tasks []*Task) (*Graph, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("graph requires at least one task")
	}

	byName := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate task name %q", t.Name)
		}
		byName[t.Name] = t
	}

	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		for _, dep := range t.After {
			if dep == t.Name {
				return nil, &CycleError{Path: []string{t.Name, t.Name}}
			}
			if _, ok := byName[dep]; !ok {
				return nil, &UnknownTaskError{Task: t.Name, Dependency: dep}
			}
			dependents[dep] = append(dependents[dep], t.Name)
		}
	}
	for dep := range dependents {
		sort.Strings(dependents[dep])
	}

	order, err := sortTopologically(tasks)
	if err != nil {
		return nil, err
	}

	return &Graph{tasks: byName, dependents: dependents, order: order}, nil
}

func sortTopologically(tasks []*Task) ([]string, error) {
	// Edge (dep, task): dep must come before task. Tasks without
	// dependencies get a nil source edge so they survive the sort.
	edges := make([]toposort.Edge, 0, len(tasks))
	for _, t := range tasks {
		if len(t.After) == 0 {
			edges = append(edges, toposort.Edge{nil, t.Name})
			continue
		}
		for _, dep := range t.After {
			edges = append(edges, toposort.Edge{dep, t.Name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, &CycleError{Path: findCycle(tasks)}
	}

	order := make([]string, 0, len(tasks))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}

// findCycle recovers a concrete cycle path for the error message once
// toposort has already established that one exists.
func findCycle(tasks []*Task) []string {
	after := make(map[string][]string, len(tasks))
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		after[t.Name] = t.After
		names = append(names, t.Name)
	}
	sort.Strings(names)

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(tasks))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		state[name] = inStack
		stack = append(stack, name)
		for _, dep := range after[name] {
			switch state[dep] {
			case inStack:
				// Found it: slice the stack from the first occurrence.
				for i, n := range stack {
					if n == dep {
						return append(append([]string(nil), stack[i:]...), dep)
					}
				}
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, name := range names {
		if state[name] == unvisited {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Task returns the task with the given name.
func (g *Graph) Task(name string) (*Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.tasks) }

// Names returns all task names in topological order (dependencies first).
func (g *Graph) Names() []string {
	return append([]string(nil), g.order...)
}

// Tasks returns all tasks in topological order.
func (g *Graph) Tasks() []*Task {
	out := make([]*Task, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.tasks[name])
	}
	return out
}

// DependenciesOf returns the direct dependencies of a task.
func (g *Graph) DependenciesOf(name string) []string {
	if t, ok := g.tasks[name]; ok {
		return t.After
	}
	return nil
}

// DependentsOf returns the tasks that list name as a dependency.
func (g *Graph) DependentsOf(name string) []string {
	return g.dependents[name]
}

// Roots returns the tasks with no dependencies, sorted by name.
func (g *Graph) Roots() []string {
	var roots []string
	for _, name := range g.order {
		if len(g.tasks[name].After) == 0 {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// DownwardClosure returns the given roots plus every transitive
// dependent. The result always contains the roots themselves.
func (g *Graph) DownwardClosure(roots ...string) map[string]struct{} {
	closure := make(map[string]struct{}, len(roots))
	stack := make([]string, 0, len(roots))
	for _, r := range roots {
		if _, ok := g.tasks[r]; !ok {
			continue
		}
		if _, seen := closure[r]; !seen {
			closure[r] = struct{}{}
			stack = append(stack, r)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range g.dependents[n] {
			if _, seen := closure[dep]; !seen {
				closure[dep] = struct{}{}
				stack = append(stack, dep)
			}
		}
	}
	return closure
}
