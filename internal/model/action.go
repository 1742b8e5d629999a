package model

import (
	"strings"
	"time"
)

// ControlAction is a discrete command a controller can issue. Out-of-scope
// actions are excluded from enumeration and traversal but remain in the
// snapshot so previously recorded coverage can still be resolved.
type ControlAction struct {
	ID           string `json:"id" yaml:"id"`
	ControllerID string `json:"controller_id" yaml:"controller_id"`
	Verb         string `json:"verb" yaml:"verb"`
	Object       string `json:"object" yaml:"object"`
	InScope      bool   `json:"in_scope" yaml:"in_scope"`
}

// Label returns the human-readable "verb object" description.
func (a ControlAction) Label() string {
	return strings.TrimSpace(a.Verb + " " + a.Object)
}

// Finding is a recorded unsafe-control-action result owned by the external
// store. The engine only reads findings, to bias scoring toward known risk
// areas.
type Finding struct {
	ID              string    `json:"id" yaml:"id"`
	ControllerID    string    `json:"controller_id" yaml:"controller_id"`
	ControlActionID string    `json:"control_action_id" yaml:"control_action_id"`
	AnalysisTypeID  string    `json:"analysis_type_id" yaml:"analysis_type_id"`
	InstanceIndex   int       `json:"instance_index" yaml:"instance_index"`
	Description     string    `json:"description" yaml:"description"`
	CreatedAt       time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}
