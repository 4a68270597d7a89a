package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chtc/gpureport/internal/errors"
	"github.com/chtc/gpureport/internal/exclusion"
	"github.com/chtc/gpureport/internal/ownership"
	"github.com/chtc/gpureport/internal/store"
	"github.com/chtc/gpureport/pkg/model"
)

// Analyzer runs the full pipeline for one window: read, normalize, classify,
// dedupe, aggregate. One invocation is single-threaded and self-contained;
// concurrent invocations share only the read-only registry and store.
type Analyzer struct {
	store      *store.Store
	exclusions *exclusion.List
	normalizer *Normalizer
	classifier *Classifier
}

// New assembles an Analyzer from its loaded inputs. A nil exclusion list
// means no hosts are masked.
func New(st *store.Store, registry *ownership.Registry, exclusions *exclusion.List, bucketWidth time.Duration, policy OwnedIdlePolicy) *Analyzer {
	return &Analyzer{
		store:      st,
		exclusions: exclusions,
		normalizer: NewNormalizer(bucketWidth),
		classifier: NewClassifier(registry, policy),
	}
}

// Request selects the window and the optional aggregate views for one run.
type Request struct {
	Start time.Time
	End   time.Time

	GroupByDevice bool
	MemoryTiers   bool
	Series        bool
	Users         bool
	Hosts         bool
}

// Run executes one analysis invocation. An empty window yields a valid zero
// result; only store-level failures (all partitions unreadable) are errors.
func (a *Analyzer) Run(ctx context.Context, req Request) (*model.AggregateResult, error) {
	started := time.Now()
	runID := uuid.NewString()

	slog.Info("analysis starting",
		"run_id", runID,
		"window_start", req.Start,
		"window_end", req.End,
		"bucket_width", a.normalizer.BucketWidth)

	raw, stats, err := a.store.Read(ctx, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	runLog := errors.NewRunLog()
	for _, name := range stats.Failed {
		runLog.Report(errors.CodePartitionRead, name)
	}
	if stats.RowsSkipped > 0 {
		runLog.Report(errors.CodeMalformedRow, fmt.Sprintf("%d rows skipped", stats.RowsSkipped))
	}
	for _, detail := range runLog.Details() {
		slog.Warn("run issue", "run_id", runID, "detail", detail)
	}

	rows := a.classifier.ClassifyAll(a.normalizer.NormalizeAll(raw))
	rows = Dedupe(rows)

	var exclude func(string) bool
	if a.exclusions != nil && a.exclusions.Len() > 0 {
		exclude = a.exclusions.Match
	}

	result, excluded := Aggregate(rows, Options{
		Exclude:       exclude,
		GroupByDevice: req.GroupByDevice,
		MemoryTiers:   req.MemoryTiers,
		Series:        req.Series,
	})

	if req.Users {
		result.Users = UserBreakdown(rows, a.normalizer.BucketWidth, exclude)
	}
	if req.Hosts {
		// The host listing is operational output and covers excluded hosts.
		result.Hosts = HostListing(rows)
	}

	result.Metadata = model.RunMetadata{
		RunID:             runID,
		WindowStart:       req.Start,
		WindowEnd:         req.End,
		BucketWidth:       a.normalizer.BucketWidth,
		Intervals:         result.Total.Intervals,
		TotalRecords:      stats.RowsRead,
		SkippedRows:       stats.RowsSkipped,
		ExcludedRows:      excluded,
		MissingPartitions: stats.Missing,
		FailedPartitions:  stats.Failed,
		Runtime:           time.Since(started),
	}

	slog.Info("analysis complete",
		"run_id", runID,
		"records", stats.RowsRead,
		"skipped", stats.RowsSkipped,
		"excluded", excluded,
		"intervals", result.Metadata.Intervals,
		"runtime", result.Metadata.Runtime)

	return result, nil
}
