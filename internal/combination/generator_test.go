package combination

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stpa-cli/internal/model"
)

// threeControllers: A, B, C with one in-scope action each.
func threeControllers() *model.Snapshot {
	return &model.Snapshot{
		Controllers: []model.Controller{
			{ID: "a", Type: model.ControllerSoftware},
			{ID: "b", Type: model.ControllerSoftware},
			{ID: "c", Type: model.ControllerSoftware},
		},
		Actions: []model.ControlAction{
			{ID: "act-a", ControllerID: "a", InScope: true},
			{ID: "act-b", ControllerID: "b", InScope: true},
			{ID: "act-c", ControllerID: "c", InScope: true},
		},
	}
}

// coOccurrenceOnly isolates subset counting from type fan-out.
func coOccurrenceOnly(maxSize int) Options {
	opts := DefaultOptions()
	opts.MaxSize = maxSize
	opts.IncludeTemporalOrdering = false
	return opts
}

func TestGeneratePairsOnly(t *testing.T) {
	got, err := NewGenerator(coOccurrenceOnly(2)).Generate(threeControllers())
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, c := range got {
		assert.Len(t, c.ControllerIDs(), 2)
		assert.Equal(t, model.TypeCoOccurrence, c.Type)
	}
}

func TestGeneratePairsAndTriple(t *testing.T) {
	got, err := NewGenerator(coOccurrenceOnly(3)).Generate(threeControllers())
	require.NoError(t, err)
	require.Len(t, got, 4)

	triples := 0
	for _, c := range got {
		if len(c.Actions) == 3 {
			triples++
			assert.Len(t, c.ControllerIDs(), 3)
		}
	}
	assert.Equal(t, 1, triples)
}

func TestGenerateBothTypes(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxSize = 2
	got, err := NewGenerator(opts).Generate(threeControllers())
	require.NoError(t, err)
	// Each eligible subset is emitted once per enabled type.
	require.Len(t, got, 6)

	byType := map[model.CombinationType]int{}
	for _, c := range got {
		byType[c.Type]++
	}
	assert.Equal(t, 3, byType[model.TypeCoOccurrence])
	assert.Equal(t, 3, byType[model.TypeTemporalOrdering])
}

func TestGenerateAlwaysSpansTwoControllers(t *testing.T) {
	snap := threeControllers()
	// Second action on controller a: subsets {act-a, act-a2} must be dropped.
	snap.Actions = append(snap.Actions, model.ControlAction{ID: "act-a2", ControllerID: "a", InScope: true})

	got, err := NewGenerator(coOccurrenceOnly(2)).Generate(snap)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.GreaterOrEqual(t, len(c.ControllerIDs()), 2, c.Signature())
	}
	// C(4,2)=6 subsets minus the single same-controller pair.
	assert.Len(t, got, 5)
}

func TestGenerateExcludesOutOfScope(t *testing.T) {
	snap := threeControllers()
	snap.Actions[2].InScope = false

	got, err := NewGenerator(coOccurrenceOnly(2)).Generate(snap)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"act-a", "act-b"}, got[0].ActionIDs())
}

func TestGenerateInsufficientControllersIsEmpty(t *testing.T) {
	snap := &model.Snapshot{
		Controllers: []model.Controller{{ID: "a", Type: model.ControllerSoftware}},
		Actions: []model.ControlAction{
			{ID: "act-a1", ControllerID: "a", InScope: true},
			{ID: "act-a2", ControllerID: "a", InScope: true},
		},
	}
	got, err := NewGenerator(DefaultOptions()).Generate(snap)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int
	}{
		{"below minimum", 1},
		{"above controller count", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.MaxSize = tt.maxSize
			_, err := NewGenerator(opts).Generate(threeControllers())
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalidConfiguration))
		})
	}
}

func TestGenerateSameTeamClassification(t *testing.T) {
	snap := &model.Snapshot{
		Controllers: []model.Controller{
			{ID: "crew", Type: model.ControllerTeam, Roles: []model.Role{
				{Name: "lead", ControllerID: "lead"},
				{Name: "assistant", ControllerID: "assistant"},
			}},
			{ID: "lead", Type: model.ControllerHuman},
			{ID: "assistant", Type: model.ControllerHuman},
			{ID: "outsider", Type: model.ControllerSoftware},
		},
		Actions: []model.ControlAction{
			{ID: "act-lead", ControllerID: "lead", InScope: true},
			{ID: "act-assist", ControllerID: "assistant", InScope: true},
			{ID: "act-out", ControllerID: "outsider", InScope: true},
		},
	}

	got, err := NewGenerator(coOccurrenceOnly(2)).Generate(snap)
	require.NoError(t, err)

	byAbstraction := map[string]model.AbstractionLevel{}
	for _, c := range got {
		byAbstraction[c.Signature()] = c.Abstraction
	}
	assert.Equal(t, model.AbstractionSameTeam,
		byAbstraction["assistant+lead|act-assist+act-lead|same_team|co_occurrence"])
	for sig, abs := range byAbstraction {
		if abs == model.AbstractionCrossController {
			assert.Contains(t, sig, "outsider")
		}
	}
}

func TestGenerateAbstractionFilters(t *testing.T) {
	snap := &model.Snapshot{
		Controllers: []model.Controller{
			{ID: "crew", Type: model.ControllerTeam, Roles: []model.Role{
				{Name: "lead", ControllerID: "lead"},
				{Name: "assistant", ControllerID: "assistant"},
			}},
			{ID: "lead", Type: model.ControllerHuman},
			{ID: "assistant", Type: model.ControllerHuman},
		},
		Actions: []model.ControlAction{
			{ID: "act-lead", ControllerID: "lead", InScope: true},
			{ID: "act-assist", ControllerID: "assistant", InScope: true},
		},
	}

	opts := coOccurrenceOnly(2)
	opts.IncludeSameTeam = false
	got, err := NewGenerator(opts).Generate(snap)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateDeterministicOrder(t *testing.T) {
	a, err := NewGenerator(DefaultOptions()).Generate(threeControllers())
	require.NoError(t, err)

	// Shuffle input slices: output order is a function of content only.
	snap := threeControllers()
	snap.Actions[0], snap.Actions[2] = snap.Actions[2], snap.Actions[0]
	b, err := NewGenerator(DefaultOptions()).Generate(snap)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSequenceLazyMatchesGenerate(t *testing.T) {
	gen := NewGenerator(DefaultOptions())
	eager, err := gen.Generate(threeControllers())
	require.NoError(t, err)

	seq, err := gen.Sequence(threeControllers())
	require.NoError(t, err)
	var lazy []model.CandidateCombination
	for {
		c, ok := seq.Next()
		if !ok {
			break
		}
		lazy = append(lazy, c)
	}
	assert.Equal(t, eager, lazy)
}
