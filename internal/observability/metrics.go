package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chtc/gpureport/pkg/model"
)

// Metrics holds all Prometheus metrics for reporter self-monitoring.
// It uses a custom registry to avoid polluting the global default.
type Metrics struct {
	Registry *prometheus.Registry

	// Analysis metrics
	AnalysisDuration prometheus.Histogram
	AnalysisTotal    *prometheus.CounterVec
	RowsRead         prometheus.Counter
	RowsSkipped      prometheus.Counter
	RowsExcluded     prometheus.Counter

	// Store metrics
	PartitionsMissing prometheus.Counter
	PartitionsFailed  prometheus.Counter

	// Result metrics
	CategoryAllocatedPercent *prometheus.GaugeVec
	CategoryAvailableAvg     *prometheus.GaugeVec
	TotalAllocatedPercent    prometheus.Gauge

	// Export metrics
	ExportsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all Prometheus metrics
// registered on a custom registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gpureport_analysis_duration_seconds",
			Help:    "Duration of analysis runs in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		AnalysisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpureport_analysis_total",
			Help: "Total number of analysis runs.",
		}, []string{"status"}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpureport_rows_read_total",
			Help: "Total snapshot rows read from the store.",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpureport_rows_skipped_total",
			Help: "Total malformed rows skipped during reads.",
		}),
		RowsExcluded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpureport_rows_excluded_total",
			Help: "Total rows masked by the host exclusion list.",
		}),

		PartitionsMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpureport_partitions_missing_total",
			Help: "Total partitions resolved for a window but absent on disk.",
		}),
		PartitionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gpureport_partitions_failed_total",
			Help: "Total partitions that existed but failed to read.",
		}),

		CategoryAllocatedPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpureport_category_allocated_percent",
			Help: "Window-mean allocated percentage per category, from the latest run.",
		}, []string{"category"}),
		CategoryAvailableAvg: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpureport_category_available_avg",
			Help: "Window-mean available GPU count per category, from the latest run.",
		}, []string{"category"}),
		TotalAllocatedPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpureport_total_allocated_percent",
			Help: "Window-mean allocated percentage across unique real-slot GPUs.",
		}),

		ExportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpureport_exports_total",
			Help: "Total result archive writes.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.AnalysisDuration,
		m.AnalysisTotal,
		m.RowsRead,
		m.RowsSkipped,
		m.RowsExcluded,
		m.PartitionsMissing,
		m.PartitionsFailed,
		m.CategoryAllocatedPercent,
		m.CategoryAvailableAvg,
		m.TotalAllocatedPercent,
		m.ExportsTotal,
	)

	return m
}

// ObserveRun records one completed analysis run.
func (m *Metrics) ObserveRun(result *model.AggregateResult) {
	meta := result.Metadata

	m.AnalysisDuration.Observe(meta.Runtime.Seconds())
	m.AnalysisTotal.WithLabelValues("success").Inc()
	m.RowsRead.Add(float64(meta.TotalRecords))
	m.RowsSkipped.Add(float64(meta.SkippedRows))
	m.RowsExcluded.Add(float64(meta.ExcludedRows))
	m.PartitionsMissing.Add(float64(meta.MissingPartitions))
	m.PartitionsFailed.Add(float64(len(meta.FailedPartitions)))

	for cat, stats := range result.Categories {
		m.CategoryAllocatedPercent.WithLabelValues(string(cat)).Set(stats.AllocatedPercent)
		m.CategoryAvailableAvg.WithLabelValues(string(cat)).Set(stats.AvailableAvg)
	}
	m.TotalAllocatedPercent.Set(result.Total.AllocatedPercent)
}

// ObserveFailure records one failed analysis run.
func (m *Metrics) ObserveFailure() {
	m.AnalysisTotal.WithLabelValues("failure").Inc()
}
