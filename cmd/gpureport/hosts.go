package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chtc/gpureport/internal/analysis"
)

func newHostsCmd() *cobra.Command {
	var startStr, endStr string

	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "List every host seen in the window with its ownership class",
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

			result, err := a.Run(ctx, analysis.Request{Start: start, End: end, Hosts: true})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "MACHINE\tCLASS\tPRIORITIZED PROJECTS")
			for _, h := range result.Hosts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", h.Machine, h.Class, h.PrioritizedProjects)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "window start (default: end minus window_hours)")
	cmd.Flags().StringVar(&endStr, "end", "", "window end (default: newest snapshot)")

	return cmd
}
