package taskgraph

import (
	"testing"

	"github.com/specforge/specforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainTasks() []*models.Task {
	return []*models.Task{
		{ID: "1", Description: "Scaffold", Completed: true},
		{ID: "2", Description: "Model", Dependencies: []string{"1"}},
		{ID: "2.1", Description: "Persistence", Dependencies: []string{"2"}},
		{ID: "3", Description: "API", Dependencies: []string{"2.1"}},
	}
}

func TestGraph_Validate_Acyclic(t *testing.T) {
	g := New(chainTasks())
	require.NoError(t, g.Validate())
}

func TestGraph_Validate_Cycle(t *testing.T) {
	g := New([]*models.Task{
		{ID: "1", Description: "a", Dependencies: []string{"3"}},
		{ID: "2", Description: "b", Dependencies: []string{"1"}},
		{ID: "3", Description: "c", Dependencies: []string{"2"}},
	})

	err := g.Validate()
	require.Error(t, err)
	assert.True(t, IsCycleError(err))

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, cerr.Members)
}

func TestGraph_Validate_SelfCycle(t *testing.T) {
	g := New([]*models.Task{{ID: "1", Description: "a", Dependencies: []string{"1"}}})

	err := g.Validate()
	require.Error(t, err)

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"1"}, cerr.Members)
}

func TestGraph_Validate_DanglingReference(t *testing.T) {
	g := New([]*models.Task{
		{ID: "1", Description: "a", Dependencies: []string{"99"}},
	})

	err := g.Validate()
	require.Error(t, err)
	assert.True(t, IsDanglingReferenceError(err))

	var derr *DanglingReferenceError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "1", derr.TaskID)
	assert.Equal(t, "99", derr.Missing)
}

func TestGraph_Ready_ScenarioWalkthrough(t *testing.T) {
	tasks := chainTasks()
	g := New(tasks)
	require.NoError(t, g.Validate())

	ready := g.Ready(DocumentState(tasks))
	require.Len(t, ready, 1)
	assert.Equal(t, "2", ready[0].ID)

	tasks[1].Completed = true

	ready = g.Ready(DocumentState(tasks))
	require.Len(t, ready, 1)
	assert.Equal(t, "2.1", ready[0].ID)
}

func TestGraph_Ready_Definition(t *testing.T) {
	// t is ready iff t is incomplete and every dependency of t is complete.
	tasks := []*models.Task{
		{ID: "1", Description: "a"},
		{ID: "2", Description: "b"},
		{ID: "3", Description: "c", Dependencies: []string{"1", "2"}},
	}
	g := New(tasks)

	state := MapState{"1": true}

	ready := g.Ready(state)
	require.Len(t, ready, 1)
	assert.Equal(t, "2", ready[0].ID)

	state["2"] = true

	ready = g.Ready(state)
	require.Len(t, ready, 1)
	assert.Equal(t, "3", ready[0].ID)
}

func TestGraph_Ready_DocumentOrder(t *testing.T) {
	g := New([]*models.Task{
		{ID: "3", Description: "c"},
		{ID: "1", Description: "a"},
		{ID: "2", Description: "b"},
	})

	ready := g.Ready(MapState{})
	require.Len(t, ready, 3)
	assert.Equal(t, "3", ready[0].ID)
	assert.Equal(t, "1", ready[1].ID)
	assert.Equal(t, "2", ready[2].ID)
}

func TestGraph_NextPending(t *testing.T) {
	tasks := chainTasks()
	g := New(tasks)

	next := g.NextPending(DocumentState(tasks))
	require.NotNil(t, next)
	assert.Equal(t, "2", next.ID)

	for _, task := range tasks {
		task.Completed = true
	}

	assert.Nil(t, g.NextPending(DocumentState(tasks)))
}

func TestGraph_TopologicalOrder(t *testing.T) {
	tasks := []*models.Task{
		{ID: "1", Description: "a"},
		{ID: "2", Description: "b", Dependencies: []string{"1"}},
		{ID: "2.1", Description: "c", Dependencies: []string{"2"}},
		{ID: "3", Description: "d", Dependencies: []string{"1"}},
		{ID: "4", Description: "e", Dependencies: []string{"2.1", "3"}},
	}
	g := New(tasks)

	ordered, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Len(t, ordered, len(tasks))

	position := make(map[string]int, len(ordered))
	for i, task := range ordered {
		position[task.ID] = i
	}

	// Every dependency appears before its dependent.
	for _, task := range tasks {
		for _, dep := range task.Dependencies {
			assert.Less(t, position[dep], position[task.ID],
				"%s must appear before %s", dep, task.ID)
		}
	}

	// Ties broken by document order.
	assert.Less(t, position["2"], position["3"])
}

func TestGraph_TopologicalOrder_DefectiveGraph(t *testing.T) {
	g := New([]*models.Task{
		{ID: "1", Description: "a", Dependencies: []string{"2"}},
		{ID: "2", Description: "b", Dependencies: []string{"1"}},
	})

	_, err := g.TopologicalOrder()
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
}

func TestGraph_ParallelGroups_SingleGroupCommonCase(t *testing.T) {
	g := New([]*models.Task{
		{ID: "1", Description: "a"},
		{ID: "2", Description: "b"},
		{ID: "3", Description: "c", Dependencies: []string{"1"}},
	})

	groups := g.ParallelGroups(MapState{})
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
}

func TestGraph_ParallelGroups_SplitsSharedConsumer(t *testing.T) {
	// 1 and 2 both feed 3: they stay ready together but land in separate
	// groups so a strict-ordering orchestrator can serialize the fan-in.
	g := New([]*models.Task{
		{ID: "1", Description: "a"},
		{ID: "2", Description: "b"},
		{ID: "3", Description: "c", Dependencies: []string{"1", "2"}},
	})

	groups := g.ParallelGroups(MapState{})
	require.Len(t, groups, 2)
	assert.Equal(t, "1", groups[0][0].ID)
	assert.Equal(t, "2", groups[1][0].ID)
}

func TestGraph_ParallelGroups_EmptyReadySet(t *testing.T) {
	g := New([]*models.Task{{ID: "1", Description: "a"}})

	groups := g.ParallelGroups(MapState{"1": true})
	assert.Empty(t, groups)
}

func TestGraph_ParallelGroups_PureFunction(t *testing.T) {
	g := New([]*models.Task{
		{ID: "1", Description: "a"},
		{ID: "2", Description: "b"},
		{ID: "3", Description: "c", Dependencies: []string{"1", "2"}},
	})

	state := MapState{}
	first := g.ParallelGroups(state)
	second := g.ParallelGroups(state)
	assert.Equal(t, first, second)
}
