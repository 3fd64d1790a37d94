package taskgraph

import "github.com/specforge/specforge/pkg/models"

// ParallelGroups partitions the ready set into groups an external orchestrator
// may dispatch concurrently. Ready tasks never share a dependency edge with
// each other, so in the common case the whole ready set is one group. The
// detector splits further only where two ready tasks feed the same direct
// downstream consumer, so an orchestrator that wants ordered fan-in can
// serialize those without inspecting the graph itself.
//
// The result is advisory: it recommends a concurrency bound, nothing more.
// Group membership is a pure function of the graph and state, recomputed on
// each call, and deterministic (tasks are placed in document order).
func (g *Graph) ParallelGroups(state State) [][]*models.Task {
	ready := g.Ready(state)
	if len(ready) == 0 {
		return [][]*models.Task{}
	}

	groups := make([][]*models.Task, 0, 1)

	for _, task := range ready {
		placed := false

		for i, group := range groups {
			if !g.sharesConsumer(task, group) {
				groups[i] = append(group, task)
				placed = true

				break
			}
		}

		if !placed {
			groups = append(groups, []*models.Task{task})
		}
	}

	return groups
}

// sharesConsumer reports whether task and any member of group have a common
// direct dependent.
func (g *Graph) sharesConsumer(task *models.Task, group []*models.Task) bool {
	consumers := make(map[string]struct{}, len(g.dependents[task.ID]))
	for _, id := range g.dependents[task.ID] {
		consumers[id] = struct{}{}
	}

	for _, member := range group {
		for _, id := range g.dependents[member.ID] {
			if _, ok := consumers[id]; ok {
				return true
			}
		}
	}

	return false
}
