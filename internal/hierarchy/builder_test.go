package hierarchy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stpa-cli/internal/model"
)

// layeredSnapshot: org controls two teams, each team controls an operator,
// operators control software over a physical component.
//
//	            org
//	          /     \
//	     team-a      team-b
//	        |           |
//	    operator-a  operator-b
//	        |           |
//	     sw-a         sw-b
//	       \           /
//	         conveyor
func layeredSnapshot() *model.Snapshot {
	ctrl := func(id string, typ model.ControllerType) model.Controller {
		return model.Controller{ID: id, Name: id, Type: typ}
	}
	return &model.Snapshot{
		Controllers: []model.Controller{
			ctrl("org", model.ControllerOrganization),
			ctrl("team-a", model.ControllerTeam),
			ctrl("team-b", model.ControllerTeam),
			ctrl("operator-a", model.ControllerHuman),
			ctrl("operator-b", model.ControllerHuman),
			ctrl("sw-a", model.ControllerSoftware),
			ctrl("sw-b", model.ControllerSoftware),
		},
		Components: []model.Component{{ID: "conveyor", Name: "conveyor"}},
		Paths: []model.ControlPath{
			{SourceID: "org", TargetID: "team-a"},
			{SourceID: "org", TargetID: "team-b"},
			{SourceID: "team-a", TargetID: "operator-a"},
			{SourceID: "team-b", TargetID: "operator-b"},
			{SourceID: "operator-a", TargetID: "sw-a"},
			{SourceID: "operator-b", TargetID: "sw-b"},
			{SourceID: "sw-a", TargetID: "conveyor"},
			{SourceID: "sw-b", TargetID: "conveyor"},
		},
	}
}

func TestBuildLevels(t *testing.T) {
	hier, err := Build(layeredSnapshot())
	require.NoError(t, err)

	want := map[string]int{
		"sw-a": 0, "sw-b": 0,
		"operator-a": 1, "operator-b": 1,
		"team-a": 2, "team-b": 2,
		"org": 3,
	}
	for id, level := range want {
		got, ok := hier.Level(id)
		require.True(t, ok, id)
		assert.Equal(t, level, got, id)
	}
}

func TestBuildOrderBottomUp(t *testing.T) {
	hier, err := Build(layeredSnapshot())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"sw-a", "sw-b",
		"operator-a", "operator-b",
		"team-a", "team-b",
		"org",
	}, hier.Order())
}

func TestBuildDeterministic(t *testing.T) {
	a, err := Build(layeredSnapshot())
	require.NoError(t, err)

	// Shuffled input slices must not change the order.
	snap := layeredSnapshot()
	snap.Controllers[0], snap.Controllers[6] = snap.Controllers[6], snap.Controllers[0]
	snap.Paths[0], snap.Paths[7] = snap.Paths[7], snap.Paths[0]
	b, err := Build(snap)
	require.NoError(t, err)

	assert.Equal(t, a.Order(), b.Order())
}

func TestNextVisitsEveryControllerOnce(t *testing.T) {
	hier, err := Build(layeredSnapshot())
	require.NoError(t, err)

	current, ok := hier.First()
	require.True(t, ok)

	visited := []string{current}
	for {
		next, _, ok := hier.Next(current)
		if !ok {
			break
		}
		visited = append(visited, next)
		current = next
	}
	assert.Equal(t, hier.Order(), visited)
}

func TestNextMoveKinds(t *testing.T) {
	hier, err := Build(layeredSnapshot())
	require.NoError(t, err)

	next, move, ok := hier.Next("sw-a")
	require.True(t, ok)
	assert.Equal(t, "sw-b", next)
	assert.Equal(t, MoveLateral, move)

	next, move, ok = hier.Next("sw-b")
	require.True(t, ok)
	assert.Equal(t, "operator-a", next)
	assert.Equal(t, MoveUpward, move)

	_, _, ok = hier.Next("org")
	assert.False(t, ok)
}

func TestBuildCycleFails(t *testing.T) {
	snap := layeredSnapshot()
	// sw-a controls org: closes a loop through the whole stack.
	snap.Paths = append(snap.Paths, model.ControlPath{SourceID: "sw-a", TargetID: "org"})

	hier, err := Build(snap)
	require.Error(t, err)
	assert.Nil(t, hier)

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.NotEmpty(t, cycle.Controllers)
	// First and last entries close the loop.
	assert.Equal(t, cycle.Controllers[0], cycle.Controllers[len(cycle.Controllers)-1])
}

func TestBuildNoControllers(t *testing.T) {
	hier, err := Build(&model.Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, hier.Order())
	_, ok := hier.First()
	assert.False(t, ok)
}

func TestBuildIsolatedControllersAreLevelZero(t *testing.T) {
	snap := &model.Snapshot{
		Controllers: []model.Controller{
			{ID: "b", Type: model.ControllerSoftware},
			{ID: "a", Type: model.ControllerHuman},
		},
	}
	hier, err := Build(snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, hier.Order())
	for _, id := range []string{"a", "b"} {
		level, _ := hier.Level(id)
		assert.Equal(t, 0, level)
	}
}
