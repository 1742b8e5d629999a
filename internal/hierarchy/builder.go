// Package hierarchy computes a leveled, deterministic visiting order over
// controllers from the control-structure graph. Levels are longest-path
// distances from the bottom of the structure: a controller that controls no
// other controller is level 0, and review proceeds bottom-up, left-to-right.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/stpa-cli/internal/model"
)

// Move describes how the cursor advanced between two controllers.
type Move string

const (
	// MoveLateral is an advance to the next controller on the same level.
	MoveLateral Move = "lateral"
	// MoveUpward is an advance to the first controller of the next level.
	MoveUpward Move = "upward"
)

// CycleError reports a control-path cycle between controllers. The hierarchy
// is foundational to review ordering, so a cycle halts the guided workflow.
type CycleError struct {
	Controllers []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("hierarchy: control structure cycle: %s", strings.Join(e.Controllers, " -> "))
}

// Hierarchy is the immutable result of Build: per-controller levels plus the
// flattened bottom-up visiting order.
type Hierarchy struct {
	levels  map[string]int
	byLevel [][]string
	order   []string
	index   map[string]int
}

// Build assigns hierarchy levels to every controller in the snapshot and
// derives the flattened visiting order. It fails with *CycleError if the
// controller-to-controller control paths contain a cycle; no partial order
// is returned.
func Build(snap *model.Snapshot) (*Hierarchy, error) {
	isController := make(map[string]bool, len(snap.Controllers))
	for _, c := range snap.Controllers {
		isController[c.ID] = true
	}

	// Controller-to-controller edges only. Paths into components make a
	// controller a leaf, they never raise its level.
	controls := make(map[string][]string)
	parents := make(map[string][]string)
	for _, p := range snap.Paths {
		if isController[p.SourceID] && isController[p.TargetID] {
			controls[p.SourceID] = append(controls[p.SourceID], p.TargetID)
			parents[p.TargetID] = append(parents[p.TargetID], p.SourceID)
		}
	}
	for id := range controls {
		sort.Strings(controls[id])
	}

	ids := make([]string, 0, len(isController))
	for id := range isController {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	levels := make(map[string]int, len(ids))
	state := make(map[string]int, len(ids)) // 0 unvisited, 1 on stack, 2 done
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case 2:
			return nil
		case 1:
			// Trim the stack down to the cycle entry point.
			start := 0
			for i, v := range stack {
				if v == id {
					start = i
					break
				}
			}
			cycle := append([]string{}, stack[start:]...)
			cycle = append(cycle, id)
			return &CycleError{Controllers: cycle}
		}
		state[id] = 1
		stack = append(stack, id)

		level := 0
		for _, child := range controls[id] {
			if err := visit(child); err != nil {
				return err
			}
			if levels[child]+1 > level {
				level = levels[child] + 1
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = 2
		levels[id] = level
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	max := 0
	for _, lv := range levels {
		if lv > max {
			max = lv
		}
	}
	byLevel := make([][]string, max+1)
	for _, id := range ids {
		byLevel[levels[id]] = append(byLevel[levels[id]], id)
	}
	for lv := range byLevel {
		sortLateral(byLevel[lv], parents)
	}

	h := &Hierarchy{
		levels:  levels,
		byLevel: byLevel,
		index:   make(map[string]int, len(ids)),
	}
	for _, level := range byLevel {
		for _, id := range level {
			h.index[id] = len(h.order)
			h.order = append(h.order, id)
		}
	}
	return h, nil
}

// sortLateral orders controllers within a level by their governing parent
// (smallest parent id) then by their own id, so an unchanged graph always
// yields the same lateral sequence.
func sortLateral(ids []string, parents map[string][]string) {
	key := func(id string) string {
		ps := parents[id]
		if len(ps) == 0 {
			return ""
		}
		min := ps[0]
		for _, p := range ps[1:] {
			if p < min {
				min = p
			}
		}
		return min
	}
	sort.Slice(ids, func(i, j int) bool {
		ki, kj := key(ids[i]), key(ids[j])
		if ki != kj {
			return ki < kj
		}
		return ids[i] < ids[j]
	})
}

// Level returns the hierarchy level of a controller.
func (h *Hierarchy) Level(id string) (int, bool) {
	lv, ok := h.levels[id]
	return lv, ok
}

// Levels returns the controllers of each level, bottom level first.
func (h *Hierarchy) Levels() [][]string {
	out := make([][]string, len(h.byLevel))
	for i, lv := range h.byLevel {
		out[i] = append([]string{}, lv...)
	}
	return out
}

// Order returns the flattened bottom-up, left-to-right visiting sequence.
func (h *Hierarchy) Order() []string {
	return append([]string{}, h.order...)
}

// First returns the first controller of the visiting sequence.
func (h *Hierarchy) First() (string, bool) {
	if len(h.order) == 0 {
		return "", false
	}
	return h.order[0], true
}

// Next returns the controller after current in the visiting sequence, along
// with whether the step stays on the same level or moves up. ok is false at
// the end of the sequence or when current is unknown.
func (h *Hierarchy) Next(current string) (next string, move Move, ok bool) {
	i, known := h.index[current]
	if !known || i+1 >= len(h.order) {
		return "", "", false
	}
	next = h.order[i+1]
	move = MoveLateral
	if h.levels[next] != h.levels[current] {
		move = MoveUpward
	}
	return next, move, true
}

// Prev returns the controller before current in the visiting sequence.
func (h *Hierarchy) Prev(current string) (string, bool) {
	i, known := h.index[current]
	if !known || i == 0 {
		return "", false
	}
	return h.order[i-1], true
}
