package model

import "time"

// BucketCounts holds the deduplicated unique-GPU counts for one time bucket.
// Available includes claimed GPUs: a claimed GPU is by definition available.
type BucketCounts struct {
	Claimed   int `json:"claimed"`
	Available int `json:"available"`
}

// Percent returns the claimed share of available GPUs as a percentage.
// A bucket with zero available GPUs contributes 0, not NaN.
func (b BucketCounts) Percent() float64 {
	if b.Available == 0 {
		return 0
	}
	return float64(b.Claimed) / float64(b.Available) * 100
}

// BucketSample is one time bucket of the per-category series, plus the
// union-based real-slot total for that bucket.
type BucketSample struct {
	Bucket time.Time                 `json:"bucket"`
	Counts map[Category]BucketCounts `json:"counts"`
	Total  BucketCounts              `json:"total"`
}

// CategoryStats are the window-level metrics for one category: per-bucket
// percentages and counts averaged over every bucket in the window.
type CategoryStats struct {
	AllocatedPercent float64 `json:"allocated_percent"`
	AllocatedAvg     float64 `json:"allocated_avg"`
	AvailableAvg     float64 `json:"available_avg"`
	Intervals        int     `json:"intervals"`
}

// UserUsage is attributed GPU time for one user in one category.
type UserUsage struct {
	User     string   `json:"user"`
	Category Category `json:"category"`
	GPUHours float64  `json:"gpu_hours"`
}

// HostInfo is one entry of the per-host classification listing. The listing
// is operational output: it covers every host seen in the window, including
// hosts excluded from statistical aggregation.
type HostInfo struct {
	Machine             string       `json:"machine"`
	Class               MachineClass `json:"class"`
	PrioritizedProjects string       `json:"prioritized_projects,omitempty"`
}

// RunMetadata describes one analysis invocation.
type RunMetadata struct {
	RunID             string        `json:"run_id"`
	WindowStart       time.Time     `json:"window_start"`
	WindowEnd         time.Time     `json:"window_end"`
	BucketWidth       time.Duration `json:"bucket_width"`
	Intervals         int           `json:"intervals"`
	TotalRecords      int           `json:"total_records"`
	SkippedRows       int           `json:"skipped_rows"`
	ExcludedRows      int           `json:"excluded_rows"`
	MissingPartitions int           `json:"missing_partitions"`
	FailedPartitions  []string      `json:"failed_partitions,omitempty"`
	Runtime           time.Duration `json:"runtime"`
}

// AggregateResult is the full output of one analysis run.
type AggregateResult struct {
	Categories map[Category]CategoryStats `json:"categories"`

	// Total is the union-based real-slot grand total: each physical GPU is
	// counted once per bucket even when it appears under two real-slot
	// categories within that bucket.
	Total CategoryStats `json:"total"`

	ByDevice map[Category]map[string]CategoryStats `json:"by_device,omitempty"`

	// ByDeviceTotal is the per-device union across real-slot categories,
	// the by-device analogue of Total.
	ByDeviceTotal map[string]CategoryStats     `json:"by_device_total,omitempty"`
	ByMemoryTier  map[MemoryTier]CategoryStats `json:"by_memory_tier,omitempty"`
	Series        []BucketSample               `json:"series,omitempty"`
	Users         []UserUsage                  `json:"users,omitempty"`
	Hosts         []HostInfo                   `json:"hosts,omitempty"`

	Metadata RunMetadata `json:"metadata"`
}

// Empty reports whether the window produced no countable data. An empty
// result is valid output, distinguishable from a failed computation.
func (r *AggregateResult) Empty() bool {
	return r.Metadata.TotalRecords == 0
}
