package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stpa-cli/internal/model"
)

func TestMergeFindings(t *testing.T) {
	snap := &model.Snapshot{
		Controllers: []model.Controller{{ID: "pilot", Type: model.ControllerHuman}},
		Actions: []model.ControlAction{
			{ID: "engage", ControllerID: "pilot", InScope: true},
		},
		Findings: []model.Finding{
			{ID: "f1", ControllerID: "pilot", ControlActionID: "engage"},
		},
	}

	mergeFindings(snap, []model.Finding{
		{ID: "f1", ControllerID: "pilot", ControlActionID: "engage"},   // already present
		{ID: "f2", ControllerID: "pilot", ControlActionID: "engage"},   // new
		{ID: "f3", ControllerID: "pilot", ControlActionID: "unknown"},  // unknown action
	})

	require.Len(t, snap.Findings, 2)
	assert.Equal(t, "f2", snap.Findings[1].ID)
}

func TestWriteCombinationTable(t *testing.T) {
	list := []model.CandidateCombination{{
		Actions: []model.ActionRef{
			{ControllerID: "pilot", ActionID: "engage"},
			{ControllerID: "autopilot", ActionID: "climb"},
		},
		Abstraction: model.AbstractionCrossController,
		Type:        model.TypeCoOccurrence,
		Score:       38,
		Rationale:   "multiple controllers (2) involved",
	}}

	var buf bytes.Buffer
	require.NoError(t, writeCombinationTable(&buf, list))

	out := buf.String()
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "autopilot+pilot")
	assert.Contains(t, out, "38")
}

func TestFormatCell(t *testing.T) {
	got := formatCell(model.CoverageCell{
		Key: model.CellKey{
			ControllerID:   "pilot",
			ActionID:       "engage",
			AnalysisTypeID: "not-provided",
			Instance:       1,
		},
		State: model.CellUnvisited,
	})
	assert.Equal(t, "pilot / engage / not-provided / instance 1 [unvisited]", got)
}
