package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chtc/gpureport/internal/analysis"
	"github.com/chtc/gpureport/internal/errors"
	"github.com/chtc/gpureport/internal/export"
)

func newExportCmd() *cobra.Command {
	var startStr, endStr, outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run one analysis window and archive the full result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir := outDir
			if dir == "" {
				dir = cfg.ExportDir
			}
			if dir == "" {
				return errors.New(errors.CodeConfigInvalid,
					"no export directory: set export_dir or pass --out", nil)
			}

			a, st, err := buildAnalyzer()
			if err != nil {
				return err
			}

			start, end, err := resolveWindow(ctx, st, startStr, endStr)
			if err != nil {
				return err
			}

			// Archives carry every view so downstream consumers never need
			// a re-run.
			result, err := a.Run(ctx, analysis.Request{
				Start:         start,
				End:           end,
				GroupByDevice: true,
				MemoryTiers:   true,
				Series:        true,
				Users:         true,
				Hosts:         true,
			})
			if err != nil {
				return err
			}

			w := export.NewWriter(dir, cfg.CompressionLevel)
			path, err := w.Write(result)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "window start (default: end minus window_hours)")
	cmd.Flags().StringVar(&endStr, "end", "", "window end (default: newest snapshot)")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: export_dir from config)")

	return cmd
}
