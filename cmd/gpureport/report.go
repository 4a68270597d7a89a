package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chtc/gpureport/internal/analysis"
	"github.com/chtc/gpureport/internal/export"
	"github.com/chtc/gpureport/internal/report"
)

func newReportCmd() *cobra.Command {
	var (
		startStr, endStr string
		byDevice         bool
		tiers            bool
		users            bool
		hosts            bool
		trend            bool
		archive          bool
		title            string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run one analysis window and print the utilization report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, st, err := buildAnalyzer()
			if err != nil {
				return err
			}

			start, end, err := resolveWindow(ctx, st, startStr, endStr)
			if err != nil {
				return err
			}

			result, err := a.Run(ctx, analysis.Request{
				Start:         start,
				End:           end,
				GroupByDevice: byDevice,
				MemoryTiers:   tiers,
				Series:        trend,
				Users:         users,
				Hosts:         hosts,
			})
			if err != nil {
				return err
			}

			if archive && cfg.ExportDir != "" {
				w := export.NewWriter(cfg.ExportDir, cfg.CompressionLevel)
				path, err := w.Write(result)
				if err != nil {
					slog.Warn("archive write failed", "error", err)
				} else {
					slog.Info("result archived", "path", path)
				}
			}

			r := &report.Renderer{Title: title}
			return r.Render(os.Stdout, result)
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "window start (default: end minus window_hours)")
	cmd.Flags().StringVar(&endStr, "end", "", "window end (default: newest snapshot)")
	cmd.Flags().BoolVar(&byDevice, "by-device", false, "break down usage by device type")
	cmd.Flags().BoolVar(&tiers, "tiers", false, "break down usage by GPU memory tier")
	cmd.Flags().BoolVar(&users, "users", false, "include per-user GPU hours")
	cmd.Flags().BoolVar(&hosts, "hosts", false, "include the machine category listing")
	cmd.Flags().BoolVar(&trend, "trend", false, "include the recent trend section")
	cmd.Flags().BoolVar(&archive, "archive", false, "also write the result archive to export_dir")
	cmd.Flags().StringVar(&title, "title", "", "override the report heading")

	return cmd
}
