package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stpa-cli/internal/model"
)

var importCmd = &cobra.Command{
	Use:   "import <snapshot.yaml>",
	Short: "Validate a snapshot file and save it to the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		snap, err := model.LoadSnapshot(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}

		rec, err := st.SaveSnapshot(ctx, name, snap)
		if err != nil {
			return err
		}

		zap.L().Info("import: snapshot saved",
			zap.String("id", rec.ID),
			zap.String("name", rec.Name),
			zap.String("hash", rec.Hash[:12]),
			zap.Int("controllers", len(snap.Controllers)),
			zap.Int("actions", len(snap.Actions)),
		)
		fmt.Printf("snapshot %s saved as %s (hash %s)\n", rec.Name, rec.ID, rec.Hash[:12])
		return nil
	},
}

func init() {
	importCmd.Flags().String("name", "", "snapshot name (default: file basename)")
	rootCmd.AddCommand(importCmd)
}
