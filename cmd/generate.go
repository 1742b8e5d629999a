package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stpa-cli/internal/export"
	"github.com/sells-group/stpa-cli/internal/store"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Enumerate, score and rank candidate unsafe combinations",
	Long: `Enumerates subsets of in-scope control actions spanning at least two
controllers, scores each candidate with the configured risk weights, and
emits the prioritized list.

Examples:
  # Rank combinations from a snapshot file
  generate --snapshot analysis.yaml

  # Pairs only, CSV to a file
  generate --snapshot analysis.yaml --max-size 2 --format csv --output ranked.csv

  # Use the latest imported snapshot and produce a workbook
  generate --format xlsx --output ranked.xlsx`,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.String("snapshot", "", "snapshot YAML file (default: latest snapshot in the store)")
	f.String("snapshot-id", "", "stored snapshot id")
	f.Int("max-size", 0, "maximum combination size (overrides config)")
	f.String("format", "table", "output format: table, csv, json or xlsx")
	f.String("output", "", "output file path (default: stdout; required for xlsx)")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	file, _ := cmd.Flags().GetString("snapshot")
	snapID, _ := cmd.Flags().GetString("snapshot-id")
	if maxSize, _ := cmd.Flags().GetInt("max-size"); maxSize > 0 {
		cfg.Engine.MaxCombinationSize = maxSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

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

	ranked, err := newEngine().Ranked(snap)
	if err != nil {
		return err
	}

	zap.L().Info("generate: ranked combinations",
		zap.Int("candidates", len(ranked)),
		zap.String("snapshot_hash", snap.Hash()[:12]),
	)

	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	if format == "xlsx" {
		if output == "" {
			return eris.New("generate: --output is required for xlsx")
		}
		return export.WriteXLSX(output, ranked)
	}

	out := os.Stdout
	if output != "" {
		fh, err := os.Create(output)
		if err != nil {
			return eris.Wrapf(err, "generate: create %s", output)
		}
		defer fh.Close()
		out = fh
	}

	switch format {
	case "table":
		return writeCombinationTable(out, ranked)
	case "csv":
		return export.WriteCSV(out, ranked)
	case "json":
		return export.WriteJSON(out, ranked)
	default:
		return eris.Errorf("generate: unknown format %q", format)
	}
}
