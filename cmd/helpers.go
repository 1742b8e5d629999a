package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stpa-cli/internal/engine"
	"github.com/sells-group/stpa-cli/internal/export"
	"github.com/sells-group/stpa-cli/internal/model"
	"github.com/sells-group/stpa-cli/internal/store"
)

// openStore creates the configured persistence backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("helpers: unknown store driver %q", cfg.Store.Driver)
	}
}

// newEngine builds an engine from the loaded configuration.
func newEngine() *engine.Engine {
	return engine.New(cfg.Engine, cfg.Risk)
}

// resolveSnapshot loads a snapshot either from a YAML file or from the
// store (by id, or the latest when id is empty). Store-loaded snapshots get
// the separately recorded findings merged in so scoring sees them.
func resolveSnapshot(ctx context.Context, st store.Store, file, id string) (*model.Snapshot, string, error) {
	if file != "" {
		snap, err := model.LoadSnapshot(file)
		return snap, "", err
	}
	if st == nil {
		return nil, "", eris.New("helpers: no snapshot file given and no store available")
	}

	var rec *store.SnapshotRecord
	var err error
	if id != "" {
		rec, err = st.GetSnapshot(ctx, id)
	} else {
		rec, err = st.LatestSnapshot(ctx)
	}
	if err != nil {
		return nil, "", err
	}

	snap := rec.Snapshot
	if findings, ferr := st.ListFindings(ctx); ferr == nil {
		mergeFindings(snap, findings)
	}
	return snap, rec.ID, nil
}

// mergeFindings appends stored findings that reference actions present in
// the snapshot and are not already part of it.
func mergeFindings(snap *model.Snapshot, findings []model.Finding) {
	known := make(map[string]bool, len(snap.Findings))
	for _, f := range snap.Findings {
		known[f.ID] = true
	}
	for _, f := range findings {
		if known[f.ID] {
			continue
		}
		if _, ok := snap.Action(f.ControlActionID); !ok {
			continue
		}
		snap.Findings = append(snap.Findings, f)
	}
}

// writeCombinationTable prints a prioritized combination list for terminals.
func writeCombinationTable(w io.Writer, list []model.CandidateCombination) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tCONTROLLERS\tACTIONS\tABSTRACTION\tTYPE\tRATIONALE")
	for _, r := range export.Records(list) {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Rank, r.Score,
			strings.Join(r.Controllers, "+"),
			strings.Join(r.Actions, "+"),
			r.Abstraction, r.Type, r.Rationale,
		)
	}
	return tw.Flush()
}

// formatCell renders a coverage cell for CLI output.
func formatCell(cell model.CoverageCell) string {
	return fmt.Sprintf("%s / %s / %s / instance %d [%s]",
		cell.Key.ControllerID, cell.Key.ActionID, cell.Key.AnalysisTypeID,
		cell.Key.Instance, cell.State)
}
