package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"pagecapture/internal/daemon"
	"pagecapture/internal/digest"
	"pagecapture/internal/hotfolder"
	"pagecapture/internal/ingestion"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var batchID string
	var metricsFile string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Ingest the watch folder once and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			d, _, err := ctx.buildDaemon(reg)
			if err != nil {
				return err
			}

			ingested, err := d.ScanOnce(cmd.Context(), strings.TrimSpace(batchID))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ingested) == 0 {
				fmt.Fprintln(out, "No new files")
			} else {
				fmt.Fprintln(out, renderTable(
					[]string{"File", "Paper", "Page", "Version", "Digest", "Duplicate", "Pages"},
					ingestedRows(d, ingested),
					3, 4, 7,
				))
				for _, paper := range papersOf(ingested) {
					fmt.Fprintf(out, "\nAudit trail: %s\n", paper)
					fmt.Fprintln(out, renderTable(
						[]string{"Page", "Latest version"},
						auditRows(d.Pipeline().Ingestion.AuditTrail(paper)),
						1, 2,
					))
				}
			}

			if path := strings.TrimSpace(metricsFile); path != "" {
				if err := prometheus.WriteToTextfile(path, reg); err != nil {
					return fmt.Errorf("write metrics textfile: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&batchID, "batch", "", "Batch id to record (default: random UUID)")
	cmd.Flags().StringVar(&metricsFile, "metrics-textfile", "", "Write Prometheus counters to this file after the scan")
	return cmd
}

func identityOf(path string) (string, int) {
	name := filepath.Base(path)
	return hotfolder.DeriveIdentity(strings.TrimSuffix(name, filepath.Ext(name)))
}

func ingestedRows(d *daemon.Daemon, paths []string) [][]string {
	manager := d.Pipeline().Ingestion
	rows := make([][]string, 0, len(paths))
	for _, path := range paths {
		paper, page := identityOf(path)
		v, ok := manager.GetLatestVersion(ingestion.PageKey{PaperID: paper, PageNumber: page})
		if !ok {
			continue
		}
		pages := "-"
		if n, ok := v.PageCount(); ok {
			pages = strconv.Itoa(n)
		}
		rows = append(rows, []string{
			filepath.Base(path),
			paper,
			strconv.Itoa(page),
			strconv.Itoa(v.Version()),
			digest.Prefix(v.Digest()),
			yesNo(v.IsDuplicate()),
			pages,
		})
	}
	return rows
}

func papersOf(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	var papers []string
	for _, path := range paths {
		paper, _ := identityOf(path)
		if _, ok := seen[paper]; ok {
			continue
		}
		seen[paper] = struct{}{}
		papers = append(papers, paper)
	}
	return papers
}

func auditRows(trail []ingestion.AuditEntry) [][]string {
	rows := make([][]string, 0, len(trail))
	for _, entry := range trail {
		rows = append(rows, []string{strconv.Itoa(entry.PageNumber), strconv.Itoa(entry.LatestVersion)})
	}
	return rows
}
