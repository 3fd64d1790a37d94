// Package taskgraph builds and queries the dependency graph of a task document.
package taskgraph

import (
	"sort"

	"github.com/specforge/specforge/pkg/models"
)

// State exposes the completion view the graph is queried against. The graph
// never mutates state; it only decides what may run next.
type State interface {
	Completed(taskID string) bool
}

// Graph is a directed acyclic dependency graph over a task sequence. Document
// order is preserved and used as the deterministic tie-break everywhere.
type Graph struct {
	tasks      []*models.Task
	byID       map[string]*models.Task
	order      map[string]int
	dependents map[string][]string // task id -> ids that depend on it
}

// New builds a graph from the parsed task sequence. Call Validate before
// trusting any query; a graph with structural defects blocks all downstream
// operations.
func New(tasks []*models.Task) *Graph {
	g := &Graph{
		tasks:      tasks,
		byID:       make(map[string]*models.Task, len(tasks)),
		order:      make(map[string]int, len(tasks)),
		dependents: make(map[string][]string),
	}

	for i, task := range tasks {
		g.byID[task.ID] = task
		g.order[task.ID] = i
	}

	for _, task := range tasks {
		for _, dep := range task.Dependencies {
			g.dependents[dep] = append(g.dependents[dep], task.ID)
		}
	}

	return g
}

// Tasks returns the task sequence in document order.
func (g *Graph) Tasks() []*models.Task {
	return g.tasks
}

// Task returns the task with the given id.
func (g *Graph) Task(id string) (*models.Task, bool) {
	task, ok := g.byID[id]

	return task, ok
}

// Validate checks the graph for structural defects: dependencies on absent
// tasks (DanglingReferenceError) and dependency cycles (CycleError naming the
// member ids). Runs in O(V+E).
func (g *Graph) Validate() error {
	for _, task := range g.tasks {
		for _, dep := range task.Dependencies {
			if _, ok := g.byID[dep]; !ok {
				return NewDanglingReferenceError(task.ID, dep)
			}
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return NewCycleError(cycle)
	}

	return nil
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the current DFS stack
	colorBlack        // fully explored
)

// findCycle runs a DFS over the dependency edges and returns the ids of one
// cycle, in edge order, or nil.
func (g *Graph) findCycle() []string {
	colors := make(map[string]int, len(g.tasks))

	var stack []string

	var cycle []string

	var visit func(id string) bool

	visit = func(id string) bool {
		colors[id] = colorGray
		stack = append(stack, id)

		for _, dep := range g.byID[id].Dependencies {
			switch colors[dep] {
			case colorGray:
				// Found a back edge; the cycle is the stack suffix from dep.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == dep {
						cycle = append([]string{}, stack[i:]...)

						return true
					}
				}
			case colorWhite:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = colorBlack

		return false
	}

	for _, task := range g.tasks {
		if colors[task.ID] == colorWhite && visit(task.ID) {
			return cycle
		}
	}

	return nil
}

// Ready returns the incomplete tasks whose every dependency is complete, in
// document order. Ready is the read-side ordering gate: the state store itself
// accepts completions permissively.
func (g *Graph) Ready(state State) []*models.Task {
	ready := make([]*models.Task, 0)

	for _, task := range g.tasks {
		if state.Completed(task.ID) {
			continue
		}

		satisfied := true

		for _, dep := range task.Dependencies {
			if !state.Completed(dep) {
				satisfied = false

				break
			}
		}

		if satisfied {
			ready = append(ready, task)
		}
	}

	return ready
}

// NextPending returns the first ready task, or nil when nothing is ready.
func (g *Graph) NextPending(state State) *models.Task {
	ready := g.Ready(state)
	if len(ready) == 0 {
		return nil
	}

	return ready[0]
}

// TopologicalOrder returns one total order consistent with the dependencies,
// by Kahn's algorithm. Among tasks whose dependencies are satisfied, document
// order decides, so the result is deterministic. Fails with the same errors
// as Validate on a defective graph.
func (g *Graph) TopologicalOrder() ([]*models.Task, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	indegree := make(map[string]int, len(g.tasks))
	for _, task := range g.tasks {
		indegree[task.ID] = len(task.Dependencies)
	}

	frontier := make([]string, 0)

	for _, task := range g.tasks {
		if indegree[task.ID] == 0 {
			frontier = append(frontier, task.ID)
		}
	}

	ordered := make([]*models.Task, 0, len(g.tasks))

	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool {
			return g.order[frontier[i]] < g.order[frontier[j]]
		})

		id := frontier[0]
		frontier = frontier[1:]
		ordered = append(ordered, g.byID[id])

		for _, dependent := range g.dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				frontier = append(frontier, dependent)
			}
		}
	}

	return ordered, nil
}

// MapState adapts a plain completion map to the State interface, for callers
// that assemble state by hand (tests, the CLI).
type MapState map[string]bool

// Completed reports the completion flag recorded for the task id.
func (m MapState) Completed(taskID string) bool {
	return m[taskID]
}

// DocumentState reads completion straight off the task records themselves.
type DocumentState []*models.Task

// Completed reports whether the task with the given id is marked complete.
func (d DocumentState) Completed(taskID string) bool {
	for _, task := range d {
		if task.ID == taskID {
			return task.Completed
		}
	}

	return false
}
