package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Controllers: []Controller{
			{ID: "ops-team", Name: "Operations Team", Type: ControllerTeam, Roles: []Role{
				{Name: "pilot", ControllerID: "pilot"},
				{Name: "copilot", ControllerID: "copilot"},
			}},
			{ID: "pilot", Name: "Pilot", Type: ControllerHuman},
			{ID: "copilot", Name: "Copilot", Type: ControllerHuman},
			{ID: "autopilot", Name: "Autopilot", Type: ControllerSoftware},
		},
		Components: []Component{
			{ID: "elevators", Name: "Elevator Actuators"},
		},
		Paths: []ControlPath{
			{SourceID: "ops-team", TargetID: "pilot"},
			{SourceID: "ops-team", TargetID: "copilot"},
			{SourceID: "pilot", TargetID: "autopilot"},
			{SourceID: "autopilot", TargetID: "elevators"},
		},
		Actions: []ControlAction{
			{ID: "a-engage", ControllerID: "autopilot", Verb: "engage", Object: "pitch hold", InScope: true},
			{ID: "p-override", ControllerID: "pilot", Verb: "override", Object: "autopilot", InScope: true},
			{ID: "c-monitor", ControllerID: "copilot", Verb: "monitor", Object: "altitude", InScope: true},
			{ID: "p-retract", ControllerID: "pilot", Verb: "retract", Object: "flaps", InScope: false},
		},
		Findings: []Finding{
			{ID: "f1", ControllerID: "pilot", ControlActionID: "p-override", AnalysisTypeID: "not-provided"},
		},
	}
}

func TestSnapshotInScopeHelpers(t *testing.T) {
	snap := testSnapshot()

	actions := snap.InScopeActions()
	require.Len(t, actions, 3)
	// Sorted by (controller id, action id).
	assert.Equal(t, "a-engage", actions[0].ID)
	assert.Equal(t, "c-monitor", actions[1].ID)
	assert.Equal(t, "p-override", actions[2].ID)

	assert.Equal(t, []string{"autopilot", "copilot", "pilot"}, snap.InScopeControllerIDs())
	assert.Empty(t, snap.InScopeActionsFor("ops-team"))

	flagged := snap.FlaggedActionIDs()
	assert.True(t, flagged["p-override"])
	assert.False(t, flagged["a-engage"])
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Snapshot)
		wantErr string
	}{
		{"valid", func(s *Snapshot) {}, ""},
		{"duplicate controller", func(s *Snapshot) {
			s.Controllers = append(s.Controllers, Controller{ID: "pilot", Type: ControllerHuman})
		}, "duplicate controller id"},
		{"unknown controller type", func(s *Snapshot) {
			s.Controllers[3].Type = "robot"
		}, "unknown type"},
		{"action without controller", func(s *Snapshot) {
			s.Actions = append(s.Actions, ControlAction{ID: "x", ControllerID: "ghost"})
		}, "unknown controller"},
		{"path to unknown node", func(s *Snapshot) {
			s.Paths = append(s.Paths, ControlPath{SourceID: "pilot", TargetID: "ghost"})
		}, "not a known node"},
		{"role referencing unknown controller", func(s *Snapshot) {
			s.Controllers[0].Roles = append(s.Controllers[0].Roles, Role{Name: "x", ControllerID: "ghost"})
		}, "unknown controller"},
		{"finding for unknown action", func(s *Snapshot) {
			s.Findings = append(s.Findings, Finding{ID: "f2", ControlActionID: "ghost"})
		}, "unknown action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot()
			tt.mutate(snap)
			err := snap.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSnapshotHashDeterministic(t *testing.T) {
	a := testSnapshot()
	b := testSnapshot()
	assert.Equal(t, a.Hash(), b.Hash())

	// Slice order must not matter.
	b.Actions[0], b.Actions[1] = b.Actions[1], b.Actions[0]
	b.Controllers[0], b.Controllers[2] = b.Controllers[2], b.Controllers[0]
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestSnapshotHashChangesWithContent(t *testing.T) {
	a := testSnapshot()
	b := testSnapshot()
	b.Actions[0].InScope = false
	assert.NotEqual(t, a.Hash(), b.Hash())

	c := testSnapshot()
	c.Findings = append(c.Findings, Finding{ID: "f2", ControllerID: "copilot", ControlActionID: "c-monitor", AnalysisTypeID: "provided-unsafe"})
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestParseSnapshot(t *testing.T) {
	doc := []byte(`
controllers:
  - id: pilot
    name: Pilot
    type: human
  - id: autopilot
    name: Autopilot
    type: software
paths:
  - source_id: pilot
    target_id: autopilot
actions:
  - id: p-override
    controller_id: pilot
    verb: override
    object: autopilot
    in_scope: true
`)
	snap, err := ParseSnapshot(doc)
	require.NoError(t, err)
	assert.Len(t, snap.Controllers, 2)
	require.Len(t, snap.Actions, 1)
	assert.True(t, snap.Actions[0].InScope)

	_, err = ParseSnapshot([]byte("controllers: [{id: x, type: nonsense}]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}
