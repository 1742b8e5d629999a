// Package risk assigns each candidate combination a bounded, deterministic
// score with a rule-derived rationale, and total-orders the results.
package risk

import (
	"fmt"
	"strings"

	"github.com/sells-group/stpa-cli/internal/config"
	"github.com/sells-group/stpa-cli/internal/model"
)

// DefaultWeights returns the v1 scoring rule set.
func DefaultWeights() config.RiskWeights {
	return config.RiskWeights{
		Version:              "v1",
		PerExtraController:   10,
		PerExtraType:         5,
		TeamPresence:         15,
		OrganizationPresence: 20,
		PerFlaggedAction:     10,
		PerMultiRoleTeam:     8,
		MaxScore:             100,
	}
}

// Scorer applies a fixed additive rule set to candidate combinations.
type Scorer struct {
	weights config.RiskWeights
	flagged map[string]bool
}

// NewScorer builds a scorer for one snapshot. The snapshot supplies the set
// of already-flagged actions and the controller metadata the rules consult.
func NewScorer(weights config.RiskWeights, snap *model.Snapshot) *Scorer {
	return &Scorer{weights: weights, flagged: snap.FlaggedActionIDs()}
}

// Score evaluates one combination against the rule set. The returned value
// is clamped to [0, MaxScore]; the rationale lists the rules that fired,
// joined deterministically.
func (s *Scorer) Score(c model.CandidateCombination, snap *model.Snapshot) (int, string) {
	controllers := c.ControllerIDs()

	score := 0
	var parts []string

	// Each controller beyond the first raises the coordination burden.
	if extra := len(controllers) - 1; extra > 0 {
		score += extra * s.weights.PerExtraController
		parts = append(parts, fmt.Sprintf("multiple controllers (%d) involved", len(controllers)))
	}

	types := make(map[model.ControllerType]bool)
	teamPresent := false
	orgPresent := false
	multiRoleTeams := 0
	for _, id := range controllers {
		ctrl, ok := snap.Controller(id)
		if !ok {
			continue
		}
		types[ctrl.Type] = true
		switch ctrl.Type {
		case model.ControllerTeam:
			teamPresent = true
			if len(ctrl.Roles) >= 2 {
				multiRoleTeams++
			}
		case model.ControllerOrganization:
			orgPresent = true
		}
	}

	if extra := len(types) - 1; extra > 0 {
		score += extra * s.weights.PerExtraType
		parts = append(parts, fmt.Sprintf("%d controller types represented", len(types)))
	}
	if teamPresent {
		score += s.weights.TeamPresence
		parts = append(parts, "team coordination required")
	}
	if orgPresent {
		score += s.weights.OrganizationPresence
		parts = append(parts, "organizational authority involved")
	}

	flaggedCount := 0
	for _, ref := range c.Actions {
		if s.flagged[ref.ActionID] {
			flaggedCount++
		}
	}
	if flaggedCount > 0 {
		score += flaggedCount * s.weights.PerFlaggedAction
		parts = append(parts, fmt.Sprintf("%d action(s) already flagged", flaggedCount))
	}

	if multiRoleTeams > 0 {
		score += multiRoleTeams * s.weights.PerMultiRoleTeam
		parts = append(parts, fmt.Sprintf("%d team(s) with multiple declared roles", multiRoleTeams))
	}

	if score > s.weights.MaxScore {
		score = s.weights.MaxScore
	}
	if score < 0 {
		score = 0
	}

	if len(parts) == 0 {
		return score, "no elevated risk signals"
	}
	return score, strings.Join(parts, "; ")
}
