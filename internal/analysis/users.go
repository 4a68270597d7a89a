package analysis

import (
	"sort"
	"time"

	"github.com/chtc/gpureport/pkg/model"
)

type userKey struct {
	user     string
	category model.Category
}

// UserBreakdown attributes GPU time to users from claimed rows carrying a
// RemoteOwner. For each bucket, a user is credited with the unique GPUs they
// held in each category, and each credited GPU contributes one bucket-width
// of GPU-hours. Results are sorted by GPU-hours descending, then by user.
func UserBreakdown(rows []model.NormalizedRow, bucketWidth time.Duration, exclude func(machine string) bool) []model.UserUsage {
	if bucketWidth <= 0 {
		bucketWidth = DefaultBucketWidth
	}

	type bucketCell struct {
		key    userKey
		bucket time.Time
	}
	seen := make(map[bucketCell]map[string]struct{})

	for _, row := range rows {
		if row.State != model.StateClaimed || row.RemoteOwner == "" {
			continue
		}
		if exclude != nil && exclude(row.Machine) {
			continue
		}
		cell := bucketCell{
			key:    userKey{user: row.RemoteOwner, category: row.Category},
			bucket: row.Bucket,
		}
		gpus, ok := seen[cell]
		if !ok {
			gpus = make(map[string]struct{})
			seen[cell] = gpus
		}
		gpus[row.GPU] = struct{}{}
	}

	hours := bucketWidth.Hours()
	totals := make(map[userKey]float64)
	for cell, gpus := range seen {
		totals[cell.key] += float64(len(gpus)) * hours
	}

	out := make([]model.UserUsage, 0, len(totals))
	for key, gpuHours := range totals {
		out = append(out, model.UserUsage{
			User:     key.user,
			Category: key.category,
			GPUHours: gpuHours,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GPUHours != out[j].GPUHours {
			return out[i].GPUHours > out[j].GPUHours
		}
		if out[i].User != out[j].User {
			return out[i].User < out[j].User
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// HostListing returns the per-host classification table for every machine
// seen in the window, sorted by hostname. The listing is operational output
// and deliberately ignores the exclusion predicate.
func HostListing(rows []model.NormalizedRow) []model.HostInfo {
	hosts := make(map[string]model.HostInfo)
	for _, row := range rows {
		info, ok := hosts[row.Machine]
		if !ok {
			info = model.HostInfo{Machine: row.Machine, Class: row.MachineClass}
		}
		if info.PrioritizedProjects == "" && row.PrioritizedProjects != "" {
			info.PrioritizedProjects = row.PrioritizedProjects
		}
		hosts[row.Machine] = info
	}

	out := make([]model.HostInfo, 0, len(hosts))
	for _, info := range hosts {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Machine < out[j].Machine })
	return out
}
