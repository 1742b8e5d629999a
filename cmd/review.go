package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stpa-cli/internal/coverage"
	"github.com/sells-group/stpa-cli/internal/model"
	"github.com/sells-group/stpa-cli/internal/store"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Guided cell-by-cell review of every (controller, action, analysis-type)",
	Long: `Drives the exhaustive review traversal: bottom-up through the controller
hierarchy, action by action, analysis type by analysis type. Session position
and cell states persist in the store, so a review survives across invocations.`,
}

var reviewStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a review session on a stored snapshot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		snapID, _ := cmd.Flags().GetString("snapshot-id")
		snap, resolvedID, err := resolveSnapshot(ctx, st, "", snapID)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		sess, err := st.CreateSession(ctx, resolvedID)
		if err != nil {
			return err
		}

		tracker, err := newEngine().NewSession(sess.ID, snap, cellSink(ctx, st, sess.ID))
		if err != nil {
			return err
		}
		if err := persistPosition(ctx, st, sess.ID, tracker); err != nil {
			return err
		}

		fmt.Printf("session %s started\n", sess.ID)
		printCurrent(tracker)
		return nil
	},
}

func reviewStep(name string, step func(ctx context.Context, t *coverage.Tracker, st store.Store, sessionID string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: reviewStepShort[name],
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sessionID, _ := cmd.Flags().GetString("session")
			if sessionID == "" {
				return eris.New("review: --session is required")
			}

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			tracker, err := resumeSession(ctx, st, sessionID)
			if err != nil {
				return err
			}
			if err := step(ctx, tracker, st, sessionID); err != nil {
				return err
			}
			return persistPosition(ctx, st, sessionID, tracker)
		},
	}
	cmd.Flags().String("session", "", "review session id")
	if name == "complete" {
		cmd.Flags().String("description", "", "record a finding with this description before marking")
	}
	return cmd
}

var reviewStepShort = map[string]string{
	"status":       "Show the current cell and completion ratio",
	"next":         "Advance to the next cell",
	"back":         "Retreat to the previous cell",
	"complete":     "Mark the current cell completed and advance",
	"skip":         "Mark the current cell skipped and advance",
	"add-instance": "Add another unvisited instance for the current cell's triple",
}

func init() {
	reviewStartCmd.Flags().String("snapshot-id", "", "stored snapshot id (default: latest)")
	reviewCmd.AddCommand(reviewStartCmd)

	reviewCmd.AddCommand(reviewStep("status", func(_ context.Context, t *coverage.Tracker, _ store.Store, _ string) error {
		printCurrent(t)
		return nil
	}))
	reviewCmd.AddCommand(reviewStep("next", func(_ context.Context, t *coverage.Tracker, _ store.Store, _ string) error {
		t.Advance()
		printCurrent(t)
		return nil
	}))
	reviewCmd.AddCommand(reviewStep("back", func(_ context.Context, t *coverage.Tracker, _ store.Store, _ string) error {
		t.Retreat()
		printCurrent(t)
		return nil
	}))
	completeCmd := reviewStep("complete", nil)
	completeCmd.RunE = runReviewComplete
	reviewCmd.AddCommand(completeCmd)
	reviewCmd.AddCommand(reviewStep("skip", func(_ context.Context, t *coverage.Tracker, _ store.Store, _ string) error {
		cell, ok := t.Current()
		if !ok {
			return eris.New("review: session already finished")
		}
		t.MarkSkipped(cell.Key)
		t.Advance()
		printCurrent(t)
		return nil
	}))
	reviewCmd.AddCommand(reviewStep("add-instance", func(_ context.Context, t *coverage.Tracker, _ store.Store, _ string) error {
		cell, ok := t.Current()
		if !ok {
			return eris.New("review: session already finished")
		}
		key, ok := t.AddInstance(cell.Key.ControllerID, cell.Key.ActionID, cell.Key.AnalysisTypeID)
		if !ok {
			return eris.New("review: current cell is out of scope")
		}
		fmt.Printf("added instance %d\n", key.Instance)
		printCurrent(t)
		return nil
	}))

	rootCmd.AddCommand(reviewCmd)
}

func runReviewComplete(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		return eris.New("review: --session is required")
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	tracker, err := resumeSession(ctx, st, sessionID)
	if err != nil {
		return err
	}

	cell, ok := tracker.Current()
	if !ok {
		return eris.New("review: session already finished")
	}

	if desc, _ := cmd.Flags().GetString("description"); desc != "" {
		_, err := st.AddFinding(ctx, model.Finding{
			ControllerID:    cell.Key.ControllerID,
			ControlActionID: cell.Key.ActionID,
			AnalysisTypeID:  cell.Key.AnalysisTypeID,
			InstanceIndex:   cell.Key.Instance,
			Description:     desc,
		})
		if err != nil {
			return err
		}
	}

	tracker.MarkCompleted(cell.Key)
	tracker.Advance()
	printCurrent(tracker)
	return persistPosition(ctx, st, sessionID, tracker)
}

// cellSink persists every coverage transition as it happens.
func cellSink(ctx context.Context, st store.Store, sessionID string) coverage.EventSink {
	return func(ev coverage.Event) {
		state := model.CellUnvisited
		switch ev.Kind {
		case coverage.EventCompleted:
			state = model.CellCompleted
		case coverage.EventSkipped:
			state = model.CellSkipped
		}
		cell := model.CoverageCell{Key: ev.Cell, State: state}
		if err := st.UpsertCell(ctx, sessionID, cell); err != nil {
			zap.L().Error("review: persist cell failed", zap.Error(err))
		}
	}
}

// resumeSession rebuilds the tracker for a stored session: snapshot, cell
// states, cursor position.
func resumeSession(ctx context.Context, st store.Store, sessionID string) (*coverage.Tracker, error) {
	sess, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap, _, err := resolveSnapshot(ctx, st, "", sess.SnapshotID)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tracker, err := newEngine().NewSession(sessionID, snap, cellSink(ctx, st, sessionID))
	if err != nil {
		return nil, err
	}

	cells, err := st.ListCells(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	tracker.Restore(cells)

	if sess.Position != nil {
		tracker.SetPosition(*sess.Position)
	} else {
		tracker.SetTerminal()
	}
	return tracker, nil
}

func persistPosition(ctx context.Context, st store.Store, sessionID string, t *coverage.Tracker) error {
	if pos, ok := t.Position(); ok {
		return st.UpdateSessionPosition(ctx, sessionID, &pos)
	}
	return st.UpdateSessionPosition(ctx, sessionID, nil)
}

func printCurrent(t *coverage.Tracker) {
	if cell, ok := t.Current(); ok {
		fmt.Printf("current: %s\n", formatCell(cell))
	} else {
		fmt.Println("review complete: no cells remaining")
	}
	fmt.Printf("coverage: %.1f%%\n", t.CompletionRatio()*100)
}
