// Package coverage tracks which (controller, action, analysis-type,
// instance) cells of a review session have been completed or skipped, and
// drives the guided bottom-up traversal over them.
//
// The traversal cursor is an explicit state machine: a position is either
// AtCell or Terminal, and advance/retreat are pure transition functions over
// the traversal dimensions. The tracker itself is the only stateful piece of
// the engine and must be owned by a single logical session.
package coverage

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/stpa-cli/internal/hierarchy"
	"github.com/sells-group/stpa-cli/internal/model"
)

// EventKind names a coverage state transition reported to the external store.
type EventKind string

const (
	EventCompleted     EventKind = "completed"
	EventSkipped       EventKind = "skipped"
	EventInstanceAdded EventKind = "instance_added"
)

// Event is a discrete coverage transition. The engine never persists these
// itself; the sink hands them to whatever owns storage.
type Event struct {
	SessionID string        `json:"session_id"`
	Cell      model.CellKey `json:"cell"`
	Kind      EventKind     `json:"kind"`
	At        time.Time     `json:"at"`
}

// EventSink receives coverage events. A nil sink discards them.
type EventSink func(Event)

// triple is a cell key without its instance dimension.
type triple struct {
	controllerID string
	actionID     string
	typeID       string
}

// dims holds the fixed traversal dimensions for one session: in-scope
// controllers in hierarchy order, their in-scope actions, and the ordered
// analysis types.
type dims struct {
	controllers []string
	actions     map[string][]string
	types       []string
}

// cursor is the traversal position: AtCell (indices into dims plus an
// instance) or Terminal.
type cursor struct {
	terminal bool
	ci, ai, ti, inst int
}

// advance is the pure transition function for forward traversal: next
// analysis type, then next action, then next controller, then Terminal.
// Moving forward always lands on instance 0; extra instances are entered
// only through AddInstance.
func (d dims) advance(c cursor) cursor {
	if c.terminal {
		return c
	}
	c.inst = 0
	if c.ti+1 < len(d.types) {
		c.ti++
		return c
	}
	c.ti = 0
	if c.ai+1 < len(d.actions[d.controllers[c.ci]]) {
		c.ai++
		return c
	}
	c.ai = 0
	if c.ci+1 < len(d.controllers) {
		c.ci++
		return c
	}
	return cursor{terminal: true}
}

// retreat is the inverse transition. At the very first cell it is a no-op;
// from Terminal it returns to the last cell; from an extra instance it
// returns to the previous instance of the same triple.
func (d dims) retreat(c cursor) cursor {
	if c.terminal {
		ci := len(d.controllers) - 1
		if ci < 0 {
			return c
		}
		ai := len(d.actions[d.controllers[ci]]) - 1
		return cursor{ci: ci, ai: ai, ti: len(d.types) - 1}
	}
	if c.inst > 0 {
		c.inst--
		return c
	}
	if c.ti > 0 {
		c.ti--
		return c
	}
	c.ti = len(d.types) - 1
	if c.ai > 0 {
		c.ai--
		return c
	}
	if c.ci > 0 {
		c.ci--
		c.ai = len(d.actions[d.controllers[c.ci]]) - 1
		return c
	}
	// Already at the first cell.
	c.ai = 0
	c.ti = 0
	return c
}

func (d dims) key(c cursor) (model.CellKey, bool) {
	if c.terminal || len(d.controllers) == 0 {
		return model.CellKey{}, false
	}
	ctrl := d.controllers[c.ci]
	return model.CellKey{
		ControllerID:   ctrl,
		ActionID:       d.actions[ctrl][c.ai],
		AnalysisTypeID: d.types[c.ti],
		Instance:       c.inst,
	}, true
}

// Tracker holds the per-session coverage state. Not safe for concurrent use;
// each session owns exactly one tracker.
type Tracker struct {
	sessionID string
	dims      dims
	pos       cursor
	states    map[model.CellKey]model.CellState
	maxInst   map[triple]int
	sink      EventSink
	log       *zap.Logger
}

// NewTracker builds a tracker positioned at the first cell of the guided
// traversal: first in-scope controller in hierarchy order, first of its
// in-scope actions, first analysis type, instance 0. A snapshot with no
// in-scope cells starts Terminal.
func NewTracker(sessionID string, snap *model.Snapshot, hier *hierarchy.Hierarchy, analysisTypes []string, sink EventSink) *Tracker {
	d := dims{
		actions: make(map[string][]string),
		types:   append([]string{}, analysisTypes...),
	}
	for _, id := range hier.Order() {
		actions := snap.InScopeActionsFor(id)
		if len(actions) == 0 {
			continue
		}
		ids := make([]string, len(actions))
		for i, a := range actions {
			ids[i] = a.ID
		}
		d.controllers = append(d.controllers, id)
		d.actions[id] = ids
	}

	t := &Tracker{
		sessionID: sessionID,
		dims:      d,
		states:    make(map[model.CellKey]model.CellState),
		maxInst:   make(map[triple]int),
		sink:      sink,
		log:       zap.L().With(zap.String("session_id", sessionID)),
	}
	if len(d.controllers) == 0 || len(d.types) == 0 {
		t.pos = cursor{terminal: true}
	}
	return t
}

// Current returns the cell the guided workflow is positioned at, or ok=false
// once the traversal is exhausted.
func (t *Tracker) Current() (model.CoverageCell, bool) {
	key, ok := t.dims.key(t.pos)
	if !ok {
		return model.CoverageCell{}, false
	}
	return model.CoverageCell{Key: key, State: t.state(key)}, true
}

// state returns the recorded state for key; cells that have never been
// marked are CellUnvisited.
func (t *Tracker) state(key model.CellKey) model.CellState {
	if s, ok := t.states[key]; ok {
		return s
	}
	return model.CellUnvisited
}

// Advance moves to the next cell and returns it; ok=false means the session
// reached its terminal state.
func (t *Tracker) Advance() (model.CoverageCell, bool) {
	t.pos = t.dims.advance(t.pos)
	return t.Current()
}

// Retreat moves to the previous cell. At the very first cell it stays put.
func (t *Tracker) Retreat() (model.CoverageCell, bool) {
	t.pos = t.dims.retreat(t.pos)
	return t.Current()
}

// MarkCompleted records a finding was saved for the cell. Re-marking
// overwrites the prior state without creating a duplicate instance. Marks
// against cells that are no longer in scope are dropped with a warning;
// scope can change mid-session and stale coverage must not corrupt state.
func (t *Tracker) MarkCompleted(key model.CellKey) bool {
	return t.mark(key, model.CellCompleted, EventCompleted)
}

// MarkSkipped records the cell as explicitly not applicable.
func (t *Tracker) MarkSkipped(key model.CellKey) bool {
	return t.mark(key, model.CellSkipped, EventSkipped)
}

func (t *Tracker) mark(key model.CellKey, state model.CellState, kind EventKind) bool {
	if !t.validKey(key) {
		t.log.Warn("coverage: mark on out-of-scope cell ignored",
			zap.String("controller_id", key.ControllerID),
			zap.String("action_id", key.ActionID),
			zap.String("analysis_type_id", key.AnalysisTypeID),
			zap.Int("instance", key.Instance),
		)
		return false
	}
	t.states[key] = state
	tr := triple{key.ControllerID, key.ActionID, key.AnalysisTypeID}
	if key.Instance > t.maxInst[tr] {
		t.maxInst[tr] = key.Instance
	}
	t.emit(key, kind)
	return true
}

// AddInstance creates the next Unvisited instance for a (controller, action,
// analysis-type) triple, leaving earlier instances untouched. When the
// cursor sits on the same triple, it moves to the new instance.
func (t *Tracker) AddInstance(controllerID, actionID, typeID string) (model.CellKey, bool) {
	probe := model.CellKey{ControllerID: controllerID, ActionID: actionID, AnalysisTypeID: typeID}
	if !t.validKey(probe) {
		t.log.Warn("coverage: add instance on out-of-scope cell ignored",
			zap.String("controller_id", controllerID),
			zap.String("action_id", actionID),
			zap.String("analysis_type_id", typeID),
		)
		return model.CellKey{}, false
	}
	tr := triple{controllerID, actionID, typeID}
	next := t.maxInst[tr] + 1
	t.maxInst[tr] = next
	key := model.CellKey{ControllerID: controllerID, ActionID: actionID, AnalysisTypeID: typeID, Instance: next}
	t.states[key] = model.CellUnvisited

	if cur, ok := t.dims.key(t.pos); ok &&
		cur.ControllerID == controllerID && cur.ActionID == actionID && cur.AnalysisTypeID == typeID {
		t.pos.inst = next
	}
	t.emit(key, EventInstanceAdded)
	return key, true
}

// CompletionRatio is (completed+skipped) over the in-scope instance-0 cell
// count. Extra instances are bonus coverage: they appear in neither the
// numerator nor the denominator, so the ratio reaches 1.0 exactly when every
// base cell has been resolved.
func (t *Tracker) CompletionRatio() float64 {
	total := 0
	for _, ctrl := range t.dims.controllers {
		total += len(t.dims.actions[ctrl]) * len(t.dims.types)
	}
	if total == 0 {
		return 1.0
	}
	done := 0
	for key, state := range t.states {
		if key.Instance != 0 || !t.validKey(key) {
			continue
		}
		if state == model.CellCompleted || state == model.CellSkipped {
			done++
		}
	}
	return float64(done) / float64(total)
}

// Cells returns every cell the session has touched, in deterministic order,
// for persistence.
func (t *Tracker) Cells() []model.CoverageCell {
	out := make([]model.CoverageCell, 0, len(t.states))
	for key, state := range t.states {
		out = append(out, model.CoverageCell{Key: key, State: state})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.ControllerID != b.ControllerID {
			return a.ControllerID < b.ControllerID
		}
		if a.ActionID != b.ActionID {
			return a.ActionID < b.ActionID
		}
		if a.AnalysisTypeID != b.AnalysisTypeID {
			return a.AnalysisTypeID < b.AnalysisTypeID
		}
		return a.Instance < b.Instance
	})
	return out
}

// Restore replays previously persisted cell states without emitting events.
// Unknown or out-of-scope cells are dropped with a warning.
func (t *Tracker) Restore(cells []model.CoverageCell) {
	for _, cell := range cells {
		if !t.validKey(cell.Key) {
			t.log.Warn("coverage: dropped persisted cell no longer in scope",
				zap.String("controller_id", cell.Key.ControllerID),
				zap.String("action_id", cell.Key.ActionID),
			)
			continue
		}
		t.states[cell.Key] = cell.State
		tr := triple{cell.Key.ControllerID, cell.Key.ActionID, cell.Key.AnalysisTypeID}
		if cell.Key.Instance > t.maxInst[tr] {
			t.maxInst[tr] = cell.Key.Instance
		}
	}
}

// Position reports the cursor for persistence; ok=false means Terminal.
func (t *Tracker) Position() (model.CellKey, bool) {
	return t.dims.key(t.pos)
}

// SetPosition moves the cursor to a persisted cell key. An invalid key
// leaves the cursor untouched.
func (t *Tracker) SetPosition(key model.CellKey) bool {
	for ci, ctrl := range t.dims.controllers {
		if ctrl != key.ControllerID {
			continue
		}
		for ai, action := range t.dims.actions[ctrl] {
			if action != key.ActionID {
				continue
			}
			for ti, at := range t.dims.types {
				if at == key.AnalysisTypeID {
					t.pos = cursor{ci: ci, ai: ai, ti: ti, inst: key.Instance}
					return true
				}
			}
		}
	}
	return false
}

// SetTerminal moves the cursor to the terminal state (used when resuming a
// finished session).
func (t *Tracker) SetTerminal() {
	t.pos = cursor{terminal: true}
}

func (t *Tracker) validKey(key model.CellKey) bool {
	actions, ok := t.dims.actions[key.ControllerID]
	if !ok {
		return false
	}
	found := false
	for _, id := range actions {
		if id == key.ActionID {
			found = true
			break
		}
	}
	if !found || key.Instance < 0 {
		return false
	}
	for _, at := range t.dims.types {
		if at == key.AnalysisTypeID {
			return true
		}
	}
	return false
}

func (t *Tracker) emit(key model.CellKey, kind EventKind) {
	if t.sink == nil {
		return
	}
	t.sink(Event{SessionID: t.sessionID, Cell: key, Kind: kind, At: time.Now().UTC()})
}
