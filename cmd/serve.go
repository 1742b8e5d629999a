package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stpa-cli/internal/export"
	"github.com/sells-group/stpa-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a read-only HTTP API over ranked combinations and review status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		mux.HandleFunc("GET /combinations", func(w http.ResponseWriter, r *http.Request) {
			snap, _, err := resolveSnapshot(r.Context(), st, "", r.URL.Query().Get("snapshot_id"))
			if err != nil {
				writeError(w, err)
				return
			}
			ranked, err := newEngine().Ranked(snap)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, export.Records(ranked))
		})

		mux.HandleFunc("GET /hierarchy", func(w http.ResponseWriter, r *http.Request) {
			snap, _, err := resolveSnapshot(r.Context(), st, "", r.URL.Query().Get("snapshot_id"))
			if err != nil {
				writeError(w, err)
				return
			}
			hier, err := newEngine().Hierarchy(snap)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"levels": hier.Levels(),
				"order":  hier.Order(),
			})
		})

		mux.HandleFunc("GET /sessions/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			tracker, err := resumeSession(r.Context(), st, r.PathValue("id"))
			if err != nil {
				writeError(w, err)
				return
			}
			resp := map[string]any{
				"completion_ratio": tracker.CompletionRatio(),
				"cells":            tracker.Cells(),
			}
			if cell, ok := tracker.Current(); ok {
				resp["current"] = cell
			}
			writeJSON(w, http.StatusOK, resp)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if eris.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
