package model

// CellState is the review state of one coverage cell. Completed and Skipped
// are both terminal for a given instance.
type CellState string

const (
	CellUnvisited CellState = "unvisited"
	CellCompleted CellState = "completed"
	CellSkipped   CellState = "skipped"
)

// CellKey identifies the atomic unit of systematic review. Instance 0 always
// exists for every in-scope (controller, action, analysis-type) triple;
// higher instances are created lazily when an analyst records more than one
// finding for the same triple.
type CellKey struct {
	ControllerID   string `json:"controller_id" yaml:"controller_id"`
	ActionID       string `json:"action_id" yaml:"action_id"`
	AnalysisTypeID string `json:"analysis_type_id" yaml:"analysis_type_id"`
	Instance       int    `json:"instance" yaml:"instance"`
}

// CoverageCell pairs a cell key with its review state.
type CoverageCell struct {
	Key   CellKey   `json:"key" yaml:"key"`
	State CellState `json:"state" yaml:"state"`
}
