package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"pagecapture/internal/logging"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var metricsFile string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the configured folder until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			d, logger, err := ctx.buildDaemon(reg)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (log: %s)\n", d.Pipeline().Watcher.Dir(), d.LogPath())

			<-runCtx.Done()
			d.Stop()

			if path := strings.TrimSpace(metricsFile); path != "" {
				if err := prometheus.WriteToTextfile(path, reg); err != nil {
					logging.WarnWithContext(logger, "failed to write metrics textfile",
						"metrics_write_failed",
						logging.String("path", path),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "check the directory exists and is writable"),
						logging.String(logging.FieldImpact, "final counters not exported"),
					)
				}
			}

			st := d.Status()
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped after %d scans, %d files ingested\n", st.Watcher.Scans, st.Watcher.FilesIngested)
			if cmd.Context().Err() != nil {
				return context.Cause(cmd.Context())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsFile, "metrics-textfile", "", "Write Prometheus counters to this file on exit (node_exporter textfile format)")
	return cmd
}
