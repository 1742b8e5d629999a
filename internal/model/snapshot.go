package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Snapshot is a read-only view of the analysis data at one point in time.
// The engine never mutates a snapshot; any change in the external store is a
// new snapshot with a new content hash.
type Snapshot struct {
	Controllers []Controller    `json:"controllers" yaml:"controllers"`
	Components  []Component     `json:"components,omitempty" yaml:"components,omitempty"`
	Paths       []ControlPath   `json:"paths,omitempty" yaml:"paths,omitempty"`
	Actions     []ControlAction `json:"actions" yaml:"actions"`
	Findings    []Finding       `json:"findings,omitempty" yaml:"findings,omitempty"`
}

// Controller returns the controller with the given id.
func (s *Snapshot) Controller(id string) (Controller, bool) {
	for _, c := range s.Controllers {
		if c.ID == id {
			return c, true
		}
	}
	return Controller{}, false
}

// Action returns the control action with the given id.
func (s *Snapshot) Action(id string) (ControlAction, bool) {
	for _, a := range s.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return ControlAction{}, false
}

// InScopeActions returns all in-scope actions sorted by (controller id,
// action id). This ordering is the canonical enumeration order.
func (s *Snapshot) InScopeActions() []ControlAction {
	var out []ControlAction
	for _, a := range s.Actions {
		if a.InScope {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ControllerID != out[j].ControllerID {
			return out[i].ControllerID < out[j].ControllerID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// InScopeActionsFor returns the in-scope actions of one controller, sorted
// by action id.
func (s *Snapshot) InScopeActionsFor(controllerID string) []ControlAction {
	var out []ControlAction
	for _, a := range s.Actions {
		if a.InScope && a.ControllerID == controllerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InScopeControllerIDs returns the ids of controllers that own at least one
// in-scope action, sorted.
func (s *Snapshot) InScopeControllerIDs() []string {
	seen := make(map[string]bool)
	for _, a := range s.Actions {
		if a.InScope {
			seen[a.ControllerID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FlaggedActionIDs returns the set of action ids with at least one recorded
// finding.
func (s *Snapshot) FlaggedActionIDs() map[string]bool {
	out := make(map[string]bool)
	for _, f := range s.Findings {
		if f.ControlActionID != "" {
			out[f.ControlActionID] = true
		}
	}
	return out
}

// Validate checks referential integrity: unique ids, actions owned by known
// controllers, paths between known nodes, roles filled by known controllers.
func (s *Snapshot) Validate() error {
	var errs []string

	ctrl := make(map[string]bool, len(s.Controllers))
	for _, c := range s.Controllers {
		if c.ID == "" {
			errs = append(errs, "controller with empty id")
			continue
		}
		if ctrl[c.ID] {
			errs = append(errs, fmt.Sprintf("duplicate controller id %q", c.ID))
		}
		ctrl[c.ID] = true
		if !ValidControllerType(c.Type) {
			errs = append(errs, fmt.Sprintf("controller %q has unknown type %q", c.ID, c.Type))
		}
	}
	node := make(map[string]bool, len(s.Controllers)+len(s.Components))
	for id := range ctrl {
		node[id] = true
	}
	for _, comp := range s.Components {
		if comp.ID == "" {
			errs = append(errs, "component with empty id")
			continue
		}
		if node[comp.ID] {
			errs = append(errs, fmt.Sprintf("duplicate node id %q", comp.ID))
		}
		node[comp.ID] = true
	}

	for _, c := range s.Controllers {
		for _, r := range c.Roles {
			if !ctrl[r.ControllerID] {
				errs = append(errs, fmt.Sprintf("controller %q role %q references unknown controller %q", c.ID, r.Name, r.ControllerID))
			}
		}
	}

	act := make(map[string]bool, len(s.Actions))
	for _, a := range s.Actions {
		if a.ID == "" {
			errs = append(errs, "action with empty id")
			continue
		}
		if act[a.ID] {
			errs = append(errs, fmt.Sprintf("duplicate action id %q", a.ID))
		}
		act[a.ID] = true
		if !ctrl[a.ControllerID] {
			errs = append(errs, fmt.Sprintf("action %q references unknown controller %q", a.ID, a.ControllerID))
		}
	}

	for _, p := range s.Paths {
		if !ctrl[p.SourceID] {
			errs = append(errs, fmt.Sprintf("control path source %q is not a controller", p.SourceID))
		}
		if !node[p.TargetID] {
			errs = append(errs, fmt.Sprintf("control path target %q is not a known node", p.TargetID))
		}
	}

	for _, f := range s.Findings {
		if !act[f.ControlActionID] {
			errs = append(errs, fmt.Sprintf("finding %q references unknown action %q", f.ID, f.ControlActionID))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("model: snapshot validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Hash returns a hex SHA-256 over a canonical encoding of the snapshot.
// Equal content always hashes equal regardless of slice order, so the engine
// can memoize derived results per hash.
func (s *Snapshot) Hash() string {
	var lines []string
	for _, c := range s.Controllers {
		roles := make([]string, 0, len(c.Roles))
		for _, r := range c.Roles {
			roles = append(roles, r.Name+"="+r.ControllerID)
		}
		sort.Strings(roles)
		lines = append(lines, fmt.Sprintf("c|%s|%s|%s|%s", c.ID, c.Name, c.Type, strings.Join(roles, ",")))
	}
	for _, comp := range s.Components {
		lines = append(lines, fmt.Sprintf("p|%s|%s", comp.ID, comp.Name))
	}
	for _, e := range s.Paths {
		lines = append(lines, fmt.Sprintf("e|%s|%s", e.SourceID, e.TargetID))
	}
	for _, a := range s.Actions {
		lines = append(lines, fmt.Sprintf("a|%s|%s|%s|%s|%t", a.ID, a.ControllerID, a.Verb, a.Object, a.InScope))
	}
	for _, f := range s.Findings {
		lines = append(lines, fmt.Sprintf("f|%s|%s|%s|%s|%d", f.ID, f.ControllerID, f.ControlActionID, f.AnalysisTypeID, f.InstanceIndex))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
