package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chtc/gpureport/internal/analysis"
	"github.com/chtc/gpureport/internal/exclusion"
	"github.com/chtc/gpureport/internal/export"
	"github.com/chtc/gpureport/internal/health"
	"github.com/chtc/gpureport/internal/observability"
	"github.com/chtc/gpureport/internal/ownership"
	"github.com/chtc/gpureport/internal/schedule"
	"github.com/chtc/gpureport/internal/store"
	"github.com/chtc/gpureport/pkg/model"
)

// resultHolder keeps the latest analysis result for the debug endpoint.
type resultHolder struct {
	mu     sync.RWMutex
	latest *model.AggregateResult
}

func (h *resultHolder) set(r *model.AggregateResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = r
}

func (h *resultHolder) LatestResult() interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return nil
	}
	return h.latest
}

// serveJob is one scheduled analysis pass. The ownership registry is
// fetched through the cache on every run, so a rewritten file takes effect
// between runs without a restart.
type serveJob struct {
	store      *store.Store
	exclusions *exclusion.List
	registries *ownership.Cache
	metrics    *observability.Metrics
	holder     *resultHolder
	archiver   *export.Writer

	ownershipFile string
	bucketWidth   time.Duration
	windowHours   int
	policy        analysis.OwnedIdlePolicy
}

func (j *serveJob) run(ctx context.Context) error {
	registry, err := j.registries.Get(j.ownershipFile)
	if err != nil {
		j.metrics.ObserveFailure()
		return err
	}
	a := analysis.New(j.store, registry, j.exclusions, j.bucketWidth, j.policy)

	end, err := j.store.LatestTimestamp(ctx)
	if err != nil {
		j.metrics.ObserveFailure()
		return err
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := end.Add(-time.Duration(j.windowHours) * time.Hour)

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
		j.metrics.ObserveFailure()
		return err
	}

	j.metrics.ObserveRun(result)
	j.holder.set(result)

	if j.archiver != nil {
		if path, err := j.archiver.Write(result); err != nil {
			j.metrics.ExportsTotal.WithLabelValues("failure").Inc()
			slog.Warn("archive write failed", "error", err)
		} else {
			j.metrics.ExportsTotal.WithLabelValues("success").Inc()
			slog.Info("result archived", "path", path)
		}
	}
	return nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run analyses on the configured schedule with health and metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
			go func() {
				sig := <-sigCh
				slog.Info("shutdown signal received", "signal", sig)
				cancel()
			}()

			st, exclusions, err := buildStoreAndExclusions()
			if err != nil {
				return err
			}

			job := &serveJob{
				store:      st,
				exclusions: exclusions,
				registries: ownership.NewCache(!cfg.RequireOwnership),
				metrics:    observability.NewMetrics(),
				holder:     &resultHolder{},

				ownershipFile: cfg.OwnershipFile,
				bucketWidth:   cfg.BucketWidth,
				windowHours:   cfg.WindowHours,
				policy:        analysis.OwnedIdlePolicy(cfg.OwnedIdlePolicy),
			}
			if cfg.ExportDir != "" {
				job.archiver = export.NewWriter(cfg.ExportDir, cfg.CompressionLevel)
			}

			runner, err := schedule.New(cfg.ReportSchedule, job.run)
			if err != nil {
				return err
			}

			srv := health.NewServer(cfg.HealthPort, job.metrics, runner, job.holder, cfg.DebugEndpoints)
			if err := srv.Start(); err != nil {
				return err
			}
			slog.Info("serve mode started",
				"addr", srv.Addr(),
				"schedule", cfg.ReportSchedule,
				"window_hours", cfg.WindowHours)

			// Prime the first result instead of waiting for the schedule.
			if err := runner.RunNow(ctx); err != nil {
				slog.Error("initial run failed", "error", err)
			}
			runner.Start()

			<-ctx.Done()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := runner.Stop(shutdownCtx); err != nil {
				slog.Warn("scheduler stop timed out", "error", err)
			}
			if err := srv.Stop(shutdownCtx); err != nil {
				slog.Warn("health server stop failed", "error", err)
			}
			slog.Info("shutdown complete")
			return nil
		},
	}
}
