package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombinationSignatureCanonical(t *testing.T) {
	a := CandidateCombination{
		Actions: []ActionRef{
			{ControllerID: "pilot", ActionID: "p-override"},
			{ControllerID: "autopilot", ActionID: "a-engage"},
		},
		Abstraction: AbstractionCrossController,
		Type:        TypeCoOccurrence,
	}
	b := CandidateCombination{
		Actions: []ActionRef{
			{ControllerID: "autopilot", ActionID: "a-engage"},
			{ControllerID: "pilot", ActionID: "p-override"},
		},
		Abstraction: AbstractionCrossController,
		Type:        TypeCoOccurrence,
	}
	// Signature depends on content, not on participant order.
	assert.Equal(t, a.Signature(), b.Signature())
	assert.Equal(t, "autopilot+pilot|a-engage+p-override|cross_controller|co_occurrence", a.Signature())

	c := a
	c.Type = TypeTemporalOrdering
	assert.NotEqual(t, a.Signature(), c.Signature())
}

func TestCombinationControllerIDsDistinct(t *testing.T) {
	c := CandidateCombination{
		Actions: []ActionRef{
			{ControllerID: "pilot", ActionID: "p-1"},
			{ControllerID: "pilot", ActionID: "p-2"},
			{ControllerID: "autopilot", ActionID: "a-1"},
		},
	}
	assert.Equal(t, []string{"autopilot", "pilot"}, c.ControllerIDs())
	assert.Equal(t, []string{"a-1", "p-1", "p-2"}, c.ActionIDs())
}
