package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/stpa-cli/internal/store"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Record an accept/reject verdict on a ranked combination",
	Long: `Looks up a combination by its content signature in the current ranked list
and records the verdict in the store, keyed by snapshot hash so the decision
survives re-generation of identical content.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		signature, _ := cmd.Flags().GetString("signature")
		if signature == "" {
			return eris.New("decide: --signature is required")
		}
		accept, _ := cmd.Flags().GetBool("accept")
		reject, _ := cmd.Flags().GetBool("reject")
		if accept == reject {
			return eris.New("decide: exactly one of --accept or --reject is required")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		snapID, _ := cmd.Flags().GetString("snapshot-id")
		snap, _, err := resolveSnapshot(ctx, st, "", snapID)
		if err != nil {
			return err
		}

		eng := newEngine()
		ranked, err := eng.Ranked(snap)
		if err != nil {
			return err
		}

		for _, c := range ranked {
			if c.Signature() != signature {
				continue
			}
			d := eng.Decide(snap, c, accept, nil)
			err := st.SaveDecision(ctx, store.DecisionRecord{
				SnapshotHash: d.SnapshotHash,
				Signature:    d.Signature,
				Accepted:     d.Accepted,
				DecidedAt:    d.At,
			})
			if err != nil {
				return err
			}
			fmt.Printf("recorded %s for %s\n", verdict(accept), signature)
			return nil
		}
		return eris.Errorf("decide: no ranked combination with signature %q", signature)
	},
}

func verdict(accepted bool) string {
	if accepted {
		return "accept"
	}
	return "reject"
}

func init() {
	f := decideCmd.Flags()
	f.String("signature", "", "combination content signature")
	f.String("snapshot-id", "", "stored snapshot id (default: latest)")
	f.Bool("accept", false, "accept the combination as a real unsafe interaction")
	f.Bool("reject", false, "reject the combination as not hazardous")
	rootCmd.AddCommand(decideCmd)
}
