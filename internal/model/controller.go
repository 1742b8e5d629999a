// Package model defines the snapshot types the analysis engine reads —
// controllers, control actions, control paths, findings — and the computed
// values derived from them (candidate combinations, coverage cells).
package model

// ControllerType classifies what kind of entity issues control actions.
type ControllerType string

const (
	ControllerHuman        ControllerType = "human"
	ControllerSoftware     ControllerType = "software"
	ControllerTeam         ControllerType = "team"
	ControllerOrganization ControllerType = "organization"
	ControllerHybrid       ControllerType = "hybrid"
)

// ValidControllerType reports whether t is one of the known controller types.
func ValidControllerType(t ControllerType) bool {
	switch t {
	case ControllerHuman, ControllerSoftware, ControllerTeam, ControllerOrganization, ControllerHybrid:
		return true
	}
	return false
}

// Role is a named position within a Team controller, filled by another
// controller in the same snapshot.
type Role struct {
	Name         string `json:"name" yaml:"name"`
	ControllerID string `json:"controller_id" yaml:"controller_id"`
}

// Controller is an entity capable of issuing control actions. Team
// controllers carry the roles their member controllers fill.
type Controller struct {
	ID    string         `json:"id" yaml:"id"`
	Name  string         `json:"name" yaml:"name"`
	Type  ControllerType `json:"type" yaml:"type"`
	Roles []Role         `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// HasMember reports whether the controller is a Team whose role-set
// includes controllerID.
func (c Controller) HasMember(controllerID string) bool {
	if c.Type != ControllerTeam {
		return false
	}
	for _, r := range c.Roles {
		if r.ControllerID == controllerID {
			return true
		}
	}
	return false
}

// Component is a controlled process or physical/software component at the
// bottom of the control structure. Components never issue control actions.
type Component struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// ControlPath is a directed edge in the control structure: the source
// controller controls the target, which is either another controller or a
// component.
type ControlPath struct {
	SourceID string `json:"source_id" yaml:"source_id"`
	TargetID string `json:"target_id" yaml:"target_id"`
}
