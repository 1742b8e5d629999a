// Package combination enumerates candidate unsafe combinations of in-scope
// control actions spanning at least two controllers. Enumeration order is a
// pure function of snapshot content, never of processing order.
package combination

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stpa-cli/internal/model"
)

// ErrInvalidConfiguration marks option values rejected before enumeration
// starts. Check with eris.Is.
var ErrInvalidConfiguration = eris.New("combination: invalid configuration")

// Options controls enumeration size and which abstraction/type variants are
// emitted.
type Options struct {
	// MaxSize is the largest subset size enumerated. Must be at least 2 and
	// no larger than the number of in-scope controllers.
	MaxSize int

	IncludeSameTeam         bool
	IncludeCrossController  bool
	IncludeCoOccurrence     bool
	IncludeTemporalOrdering bool
}

// DefaultOptions enables every variant with subsets up to size 3.
func DefaultOptions() Options {
	return Options{
		MaxSize:                 3,
		IncludeSameTeam:         true,
		IncludeCrossController:  true,
		IncludeCoOccurrence:     true,
		IncludeTemporalOrdering: true,
	}
}

// Generator enumerates candidate combinations for a snapshot.
type Generator struct {
	opts Options
}

// NewGenerator returns a generator with the given options.
func NewGenerator(opts Options) *Generator {
	return &Generator{opts: opts}
}

// Sequence is a lazy, finite enumeration of candidate combinations. Each
// Sequence is single-use; obtain a fresh one to restart.
type Sequence struct {
	snap    *model.Snapshot
	opts    Options
	actions []model.ControlAction
	teams   []model.Controller

	k       int
	maxK    int
	it      *indexCombinations
	pending []model.CandidateCombination
}

// Sequence prepares a lazy enumeration over the snapshot's in-scope actions.
// Fewer than two in-scope controllers yields an empty (but valid) sequence;
// that is an expected transient state early in an analysis. An out-of-range
// MaxSize is rejected eagerly with ErrInvalidConfiguration.
func (g *Generator) Sequence(snap *model.Snapshot) (*Sequence, error) {
	controllers := snap.InScopeControllerIDs()
	if len(controllers) < 2 {
		return &Sequence{snap: snap, opts: g.opts, maxK: 1, k: 2}, nil
	}
	if g.opts.MaxSize < 2 || g.opts.MaxSize > len(controllers) {
		return nil, eris.Wrap(ErrInvalidConfiguration,
			fmt.Sprintf("max combination size %d outside [2, %d]", g.opts.MaxSize, len(controllers)))
	}

	actions := snap.InScopeActions()
	maxK := g.opts.MaxSize
	if maxK > len(actions) {
		maxK = len(actions)
	}

	var teams []model.Controller
	for _, c := range snap.Controllers {
		if c.Type == model.ControllerTeam && len(c.Roles) > 0 {
			teams = append(teams, c)
		}
	}

	return &Sequence{
		snap:    snap,
		opts:    g.opts,
		actions: actions,
		teams:   teams,
		k:       2,
		maxK:    maxK,
		it:      newIndexCombinations(len(actions), 2),
	}, nil
}

// Next returns the next candidate combination, or ok=false when the
// enumeration is exhausted.
func (s *Sequence) Next() (model.CandidateCombination, bool) {
	for {
		if len(s.pending) > 0 {
			c := s.pending[0]
			s.pending = s.pending[1:]
			return c, true
		}
		if s.k > s.maxK {
			return model.CandidateCombination{}, false
		}
		idx, ok := s.it.next()
		if !ok {
			s.k++
			if s.k > s.maxK {
				return model.CandidateCombination{}, false
			}
			s.it = newIndexCombinations(len(s.actions), s.k)
			continue
		}
		s.pending = s.variants(idx)
	}
}

// variants builds the emitted candidates for one action subset: zero when
// the subset does not span two controllers or its abstraction is disabled,
// otherwise one per enabled combination type.
func (s *Sequence) variants(idx []int) []model.CandidateCombination {
	refs := make([]model.ActionRef, len(idx))
	distinct := make(map[string]bool, len(idx))
	for i, j := range idx {
		a := s.actions[j]
		refs[i] = model.ActionRef{ControllerID: a.ControllerID, ActionID: a.ID}
		distinct[a.ControllerID] = true
	}
	if len(distinct) < 2 {
		return nil
	}

	abstraction := model.AbstractionCrossController
	if s.sameTeam(distinct) {
		abstraction = model.AbstractionSameTeam
	}
	if abstraction == model.AbstractionSameTeam && !s.opts.IncludeSameTeam {
		return nil
	}
	if abstraction == model.AbstractionCrossController && !s.opts.IncludeCrossController {
		return nil
	}

	var out []model.CandidateCombination
	if s.opts.IncludeCoOccurrence {
		out = append(out, model.CandidateCombination{
			Actions:     refs,
			Abstraction: abstraction,
			Type:        model.TypeCoOccurrence,
		})
	}
	if s.opts.IncludeTemporalOrdering {
		out = append(out, model.CandidateCombination{
			Actions:     append([]model.ActionRef{}, refs...),
			Abstraction: abstraction,
			Type:        model.TypeTemporalOrdering,
		})
	}
	return out
}

// sameTeam reports whether a single Team controller's role-set covers every
// controller in the subset.
func (s *Sequence) sameTeam(controllers map[string]bool) bool {
	for _, team := range s.teams {
		all := true
		for id := range controllers {
			if !team.HasMember(id) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// Generate materializes the full enumeration. Prefer Sequence for large
// inputs; Generate is the convenience path for snapshots of interactive size.
func (g *Generator) Generate(snap *model.Snapshot) ([]model.CandidateCombination, error) {
	seq, err := g.Sequence(snap)
	if err != nil {
		return nil, err
	}
	var out []model.CandidateCombination
	for {
		c, ok := seq.Next()
		if !ok {
			return out, nil
		}
		out = append(out, c)
	}
}
