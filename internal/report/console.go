// Package report renders analysis results for the console.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chtc/gpureport/pkg/model"
)

const lineWidth = 70

// trendLimit caps the number of trailing series samples shown in the trend
// section.
const trendLimit = 12

// Renderer writes a plain-text utilization report.
type Renderer struct {
	// Title overrides the default report heading.
	Title string
}

func (r *Renderer) title() string {
	if r.Title != "" {
		return r.Title
	}
	return "CHTC GPU UTILIZATION REPORT"
}

// Render writes the full report for one analysis result.
func (r *Renderer) Render(w io.Writer, result *model.AggregateResult) error {
	meta := result.Metadata

	rule := strings.Repeat("=", lineWidth)
	thin := strings.Repeat("-", lineWidth)

	fmt.Fprintf(w, "%s\n", rule)
	fmt.Fprintf(w, "%s\n", center(r.title(), lineWidth))
	fmt.Fprintf(w, "%s\n", rule)
	fmt.Fprintf(w, "Period: %s to %s (%d intervals)\n",
		meta.WindowStart.Format("2006-01-02 15:04"),
		meta.WindowEnd.Format("2006-01-02 15:04"),
		meta.Intervals)
	fmt.Fprintf(w, "%s\n", rule)

	if result.Empty() {
		fmt.Fprintf(w, "\nNo data found for this period.\n")
		r.renderFooter(w, meta, thin)
		return nil
	}

	fmt.Fprintf(w, "\nUtilization Summary:\n%s\n", thin)
	for _, cat := range model.CategoryOrder {
		stats, ok := result.Categories[cat]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%30s: %6.1f%% (%6.1f/%6.1f GPUs)\n",
			cat.DisplayName(), stats.AllocatedPercent, stats.AllocatedAvg, stats.AvailableAvg)
	}
	fmt.Fprintf(w, "%30s  %s\n", "", strings.Repeat("-", 30))
	fmt.Fprintf(w, "%30s: %6.1f%% (%6.1f/%6.1f GPUs)\n",
		"TOTAL (unique GPUs)", result.Total.AllocatedPercent,
		result.Total.AllocatedAvg, result.Total.AvailableAvg)

	if len(result.ByDevice) > 0 {
		r.renderDevices(w, result, thin)
	}
	if len(result.ByMemoryTier) > 0 {
		r.renderTiers(w, result, thin)
	}
	if len(result.Users) > 0 {
		r.renderUsers(w, result, thin)
	}
	if len(result.Hosts) > 0 {
		r.renderHosts(w, result, thin)
	}
	if len(result.Series) > 0 {
		r.renderTrend(w, result, thin)
	}

	r.renderFooter(w, meta, thin)
	return nil
}

func (r *Renderer) renderDevices(w io.Writer, result *model.AggregateResult, thin string) {
	fmt.Fprintf(w, "\nUsage by Device Type:\n%s\n", thin)
	for _, cat := range model.CategoryOrder {
		byDev, ok := result.ByDevice[cat]
		if !ok || len(byDev) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n%s\n", cat.DisplayName(), strings.Repeat("-", 50))
		for _, name := range sortedKeys(byDev) {
			stats := byDev[name]
			fmt.Fprintf(w, "  %-35s: %6.1f%% (avg %4.1f/%4.1f GPUs)\n",
				truncate(name, 35), stats.AllocatedPercent, stats.AllocatedAvg, stats.AvailableAvg)
		}
	}

	if len(result.ByDeviceTotal) > 0 {
		fmt.Fprintf(w, "\nDevice Totals (unique GPUs across real slots):\n%s\n", strings.Repeat("-", 50))
		for _, name := range sortedKeys(result.ByDeviceTotal) {
			stats := result.ByDeviceTotal[name]
			fmt.Fprintf(w, "  %-35s: %6.1f%% (avg %4.1f/%4.1f GPUs)\n",
				truncate(name, 35), stats.AllocatedPercent, stats.AllocatedAvg, stats.AvailableAvg)
		}
	}
}

func (r *Renderer) renderTiers(w io.Writer, result *model.AggregateResult, thin string) {
	fmt.Fprintf(w, "\nUsage by Memory Tier:\n%s\n", thin)
	for _, tier := range model.MemoryTierOrder {
		stats, ok := result.ByMemoryTier[tier]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-12s: %6.1f%% (avg %4.1f/%4.1f GPUs)\n",
			string(tier), stats.AllocatedPercent, stats.AllocatedAvg, stats.AvailableAvg)
	}
}

func (r *Renderer) renderUsers(w io.Writer, result *model.AggregateResult, thin string) {
	fmt.Fprintf(w, "\nGPU Hours by User:\n%s\n", thin)
	fmt.Fprintf(w, "%-30s %-28s %10s\n", "User", "Category", "GPU Hours")
	fmt.Fprintf(w, "%s\n", thin)
	for _, u := range result.Users {
		fmt.Fprintf(w, "%-30s %-28s %10.1f\n",
			truncate(u.User, 30), truncate(u.Category.DisplayName(), 28), u.GPUHours)
	}
}

func (r *Renderer) renderHosts(w io.Writer, result *model.AggregateResult, thin string) {
	byClass := make(map[model.MachineClass][]model.HostInfo)
	for _, h := range result.Hosts {
		byClass[h.Class] = append(byClass[h.Class], h)
	}

	fmt.Fprintf(w, "\nMachine Categories:\n%s\n", thin)
	for _, class := range []model.MachineClass{
		model.MachineCentrallyOwned,
		model.MachineResearcherOwned,
		model.MachineOpenCapacity,
	} {
		hosts := byClass[class]
		if len(hosts) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s (%d):\n", class, len(hosts))
		for _, h := range hosts {
			if h.PrioritizedProjects != "" {
				fmt.Fprintf(w, "  %-40s %s\n", h.Machine, h.PrioritizedProjects)
			} else {
				fmt.Fprintf(w, "  %s\n", h.Machine)
			}
		}
	}
}

func (r *Renderer) renderTrend(w io.Writer, result *model.AggregateResult, thin string) {
	fmt.Fprintf(w, "\nRecent Trend:\n%s\n", thin)
	series := result.Series
	if len(series) > trendLimit {
		series = series[len(series)-trendLimit:]
	}
	for _, sample := range series {
		fmt.Fprintf(w, "%s: %3d/%3d GPUs (%5.1f%%)\n",
			sample.Bucket.Format("01-02 15:04"),
			sample.Total.Claimed, sample.Total.Available, sample.Total.Percent())
	}
}

func (r *Renderer) renderFooter(w io.Writer, meta model.RunMetadata, thin string) {
	fmt.Fprintf(w, "\n%s\n", thin)
	fmt.Fprintf(w, "Run %s: %d records (%d skipped, %d excluded) in %s\n",
		meta.RunID, meta.TotalRecords, meta.SkippedRows, meta.ExcludedRows,
		meta.Runtime.Round(time.Millisecond))
	if meta.MissingPartitions > 0 || len(meta.FailedPartitions) > 0 {
		fmt.Fprintf(w, "Partitions: %d missing, failed: %s\n",
			meta.MissingPartitions, strings.Join(meta.FailedPartitions, ", "))
	}
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s
}

// truncate shortens s to at most max runes. Slicing on runes keeps
// multi-byte names intact.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func sortedKeys(m map[string]model.CategoryStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
