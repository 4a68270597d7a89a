package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chtc/gpureport/internal/analysis"
	"github.com/chtc/gpureport/internal/config"
	"github.com/chtc/gpureport/internal/exclusion"
	"github.com/chtc/gpureport/internal/ownership"
	"github.com/chtc/gpureport/internal/store"
)

var (
	cfgPath  string
	logLevel string

	cfg config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gpureport",
		Short:         "GPU slot classification and utilization reporting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(logLevel)

			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
			return cfg.Validate()
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newReportCmd())
	root.AddCommand(newHostsCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newServeCmd())

	return root
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// buildStoreAndExclusions wires the inputs shared by every command.
func buildStoreAndExclusions() (*store.Store, *exclusion.List, error) {
	exclusions, err := exclusion.Load(cfg.ExclusionsFile)
	if err != nil {
		return nil, nil, err
	}
	return store.New(cfg.DataDir), exclusions, nil
}

// buildAnalyzer loads the registry and exclusion list and wires the
// pipeline per the active config. One-shot commands load the registry
// directly; serve mode goes through the ownership cache instead so a
// changed file is picked up between scheduled runs.
func buildAnalyzer() (*analysis.Analyzer, *store.Store, error) {
	var (
		registry *ownership.Registry
		err      error
	)
	if cfg.RequireOwnership {
		registry, err = ownership.Load(cfg.OwnershipFile)
	} else {
		registry, err = ownership.LoadTolerant(cfg.OwnershipFile)
	}
	if err != nil {
		return nil, nil, err
	}

	st, exclusions, err := buildStoreAndExclusions()
	if err != nil {
		return nil, nil, err
	}

	a := analysis.New(st, registry, exclusions, cfg.BucketWidth,
		analysis.OwnedIdlePolicy(cfg.OwnedIdlePolicy))
	return a, st, nil
}

// resolveWindow turns the --start/--end flags into a concrete window. An
// empty end anchors to the newest snapshot in the store, falling back to
// the current time for an empty store; an empty start backs off the
// configured window length from the end.
func resolveWindow(ctx context.Context, st *store.Store, startStr, endStr string) (time.Time, time.Time, error) {
	var (
		start, end time.Time
		err        error
	)

	if endStr != "" {
		end, err = parseTimeFlag(endStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid --end: %w", err)
		}
	} else {
		end, err = st.LatestTimestamp(ctx)
		if err != nil {
			return start, end, err
		}
		if end.IsZero() {
			end = time.Now().UTC()
		}
	}

	if startStr != "" {
		start, err = parseTimeFlag(startStr)
		if err != nil {
			return start, end, fmt.Errorf("invalid --start: %w", err)
		}
	} else {
		start = end.Add(-time.Duration(cfg.WindowHours) * time.Hour)
	}

	if !start.Before(end) {
		return start, end, fmt.Errorf("window start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

func parseTimeFlag(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02", time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS)", s)
}
