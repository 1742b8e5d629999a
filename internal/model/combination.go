package model

import (
	"sort"
	"strings"
)

// AbstractionLevel distinguishes combinations whose controllers all sit
// inside one team from combinations that cross controller boundaries.
type AbstractionLevel string

const (
	AbstractionSameTeam        AbstractionLevel = "same_team"
	AbstractionCrossController AbstractionLevel = "cross_controller"
)

// CombinationType names what the combination is evaluated for.
type CombinationType string

const (
	// TypeCoOccurrence evaluates simultaneous provide/not-provide conflicts.
	TypeCoOccurrence CombinationType = "co_occurrence"
	// TypeTemporalOrdering evaluates unsafe sequencing and timing.
	TypeTemporalOrdering CombinationType = "temporal_ordering"
)

// ActionRef identifies one (controller, action) participant of a combination.
type ActionRef struct {
	ControllerID string `json:"controller_id" yaml:"controller_id"`
	ActionID     string `json:"action_id" yaml:"action_id"`
}

// CandidateCombination is a computed value: a set of control actions from at
// least two controllers, evaluated jointly for unsafe interaction. It has no
// identity beyond its content; regeneration from an unchanged snapshot
// produces identical values.
type CandidateCombination struct {
	Actions     []ActionRef      `json:"actions" yaml:"actions"`
	Abstraction AbstractionLevel `json:"abstraction" yaml:"abstraction"`
	Type        CombinationType  `json:"type" yaml:"type"`
	Score       int              `json:"score" yaml:"score"`
	Rationale   string           `json:"rationale" yaml:"rationale"`
}

// ControllerIDs returns the distinct participating controller ids, sorted.
func (c CandidateCombination) ControllerIDs() []string {
	seen := make(map[string]bool, len(c.Actions))
	var out []string
	for _, a := range c.Actions {
		if !seen[a.ControllerID] {
			seen[a.ControllerID] = true
			out = append(out, a.ControllerID)
		}
	}
	sort.Strings(out)
	return out
}

// ActionIDs returns the participating action ids, sorted.
func (c CandidateCombination) ActionIDs() []string {
	out := make([]string, 0, len(c.Actions))
	for _, a := range c.Actions {
		out = append(out, a.ActionID)
	}
	sort.Strings(out)
	return out
}

// Signature returns the canonical content key for the combination: sorted
// controller ids, sorted action ids, abstraction, type. Used for stable
// tie-breaking and for keying accept/reject decisions.
func (c CandidateCombination) Signature() string {
	return strings.Join(c.ControllerIDs(), "+") + "|" +
		strings.Join(c.ActionIDs(), "+") + "|" +
		string(c.Abstraction) + "|" + string(c.Type)
}
