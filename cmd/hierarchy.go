package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/stpa-cli/internal/hierarchy"
	"github.com/sells-group/stpa-cli/internal/store"
)

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy",
	Short: "Show controller hierarchy levels and the guided visiting order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		file, _ := cmd.Flags().GetString("snapshot")
		snapID, _ := cmd.Flags().GetString("snapshot-id")

		var st store.Store
		if file == "" {
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			st = s
			defer st.Close()
		}

		snap, _, err := resolveSnapshot(ctx, st, file, snapID)
		if err != nil {
			return err
		}

		hier, err := hierarchy.Build(snap)
		if err != nil {
			var cycle *hierarchy.CycleError
			if errors.As(err, &cycle) {
				fmt.Fprintln(os.Stderr, "control structure contains a cycle; guided review cannot proceed:")
				for _, id := range cycle.Controllers {
					fmt.Fprintf(os.Stderr, "  %s\n", id)
				}
			}
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ORDER\tLEVEL\tCONTROLLER\tNAME\tTYPE")
		for i, id := range hier.Order() {
			level, _ := hier.Level(id)
			ctrl, _ := snap.Controller(id)
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", i+1, level, id, ctrl.Name, ctrl.Type)
		}
		return tw.Flush()
	},
}

func init() {
	hierarchyCmd.Flags().String("snapshot", "", "snapshot YAML file (default: latest snapshot in the store)")
	hierarchyCmd.Flags().String("snapshot-id", "", "stored snapshot id")
	rootCmd.AddCommand(hierarchyCmd)
}
