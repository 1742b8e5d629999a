// Package engine wires the generation pipeline together: hierarchy build,
// combination enumeration, scoring and prioritization, memoized by snapshot
// content hash so interactive callers can re-request results cheaply.
package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/stpa-cli/internal/combination"
	"github.com/sells-group/stpa-cli/internal/config"
	"github.com/sells-group/stpa-cli/internal/coverage"
	"github.com/sells-group/stpa-cli/internal/hierarchy"
	"github.com/sells-group/stpa-cli/internal/model"
	"github.com/sells-group/stpa-cli/internal/risk"
)

// Decision is an analyst's verdict on one candidate combination, keyed by
// its content signature. The engine reports decisions as events; it never
// persists them itself.
type Decision struct {
	Signature    string    `json:"signature"`
	SnapshotHash string    `json:"snapshot_hash"`
	Accepted     bool      `json:"accepted"`
	At           time.Time `json:"at"`
}

// DecisionSink receives combination decisions. A nil sink discards them.
type DecisionSink func(Decision)

// Engine is the single entry point for the generation pipeline. All derived
// results are pure functions of a snapshot; the engine caches the last
// snapshot's results by content hash.
type Engine struct {
	cfg     config.EngineConfig
	weights config.RiskWeights

	cacheHash   string
	cacheHier   *hierarchy.Hierarchy
	cacheRanked []model.CandidateCombination
}

// New builds an engine from validated configuration.
func New(cfg config.EngineConfig, weights config.RiskWeights) *Engine {
	return &Engine{cfg: cfg, weights: weights}
}

// Hierarchy returns the leveled visiting order for the snapshot, memoized
// per content hash. A control-structure cycle fails the whole pipeline.
func (e *Engine) Hierarchy(snap *model.Snapshot) (*hierarchy.Hierarchy, error) {
	if hash := snap.Hash(); e.cacheHash == hash && e.cacheHier != nil {
		return e.cacheHier, nil
	}
	return e.recompute(snap)
}

// Ranked returns the prioritized candidate combinations for the snapshot,
// memoized per content hash. Fewer than two in-scope controllers yields an
// empty list.
func (e *Engine) Ranked(snap *model.Snapshot) ([]model.CandidateCombination, error) {
	if hash := snap.Hash(); e.cacheHash == hash && e.cacheHier != nil {
		return append([]model.CandidateCombination{}, e.cacheRanked...), nil
	}
	if _, err := e.recompute(snap); err != nil {
		return nil, err
	}
	return append([]model.CandidateCombination{}, e.cacheRanked...), nil
}

// recompute runs the full pipeline and replaces the cache on success.
func (e *Engine) recompute(snap *model.Snapshot) (*hierarchy.Hierarchy, error) {
	start := time.Now()

	hier, err := hierarchy.Build(snap)
	if err != nil {
		return nil, err
	}

	gen := combination.NewGenerator(combination.Options{
		MaxSize:                 e.cfg.MaxCombinationSize,
		IncludeSameTeam:         e.cfg.IncludeSameTeam,
		IncludeCrossController:  e.cfg.IncludeCrossController,
		IncludeCoOccurrence:     e.cfg.IncludeCoOccurrence,
		IncludeTemporalOrdering: e.cfg.IncludeTemporalOrdering,
	})
	candidates, err := gen.Generate(snap)
	if err != nil {
		return nil, err
	}

	scorer := risk.NewScorer(e.weights, snap)
	for i := range candidates {
		candidates[i].Score, candidates[i].Rationale = scorer.Score(candidates[i], snap)
	}
	risk.Prioritize(candidates)

	e.cacheHash = snap.Hash()
	e.cacheHier = hier
	e.cacheRanked = candidates

	zap.L().Info("engine: pipeline recomputed",
		zap.String("snapshot_hash", e.cacheHash[:12]),
		zap.Int("controllers", len(snap.Controllers)),
		zap.Int("candidates", len(candidates)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return hier, nil
}

// NewSession builds the coverage tracker for a guided review session. Each
// session owns its tracker exclusively; there is no cross-session state.
func (e *Engine) NewSession(sessionID string, snap *model.Snapshot, sink coverage.EventSink) (*coverage.Tracker, error) {
	hier, err := e.Hierarchy(snap)
	if err != nil {
		return nil, err
	}
	return coverage.NewTracker(sessionID, snap, hier, e.cfg.AnalysisTypes, sink), nil
}

// Decide records an accept/reject verdict for a combination and reports it
// through the sink.
func (e *Engine) Decide(snap *model.Snapshot, c model.CandidateCombination, accepted bool, sink DecisionSink) Decision {
	d := Decision{
		Signature:    c.Signature(),
		SnapshotHash: snap.Hash(),
		Accepted:     accepted,
		At:           time.Now().UTC(),
	}
	if sink != nil {
		sink(d)
	}
	zap.L().Info("engine: combination decision",
		zap.String("signature", d.Signature),
		zap.Bool("accepted", accepted),
	)
	return d
}
