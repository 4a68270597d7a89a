package analysis

import (
	"sort"
	"time"

	"github.com/chtc/gpureport/internal/device"
	"github.com/chtc/gpureport/pkg/model"
)

// Options controls which aggregate views are computed beyond the per-category
// window stats.
type Options struct {
	// Exclude masks hosts from statistical aggregation. Excluded rows are
	// dropped here, at the aggregation boundary, so classification and
	// operational listings still see them.
	Exclude func(machine string) bool

	GroupByDevice bool
	MemoryTiers   bool
	Series        bool
}

// gpuSets accumulates the unique claimed and available GPU identifiers for
// one grouping cell within one bucket. Counting sets of identifiers, rather
// than rows, is what keeps a GPU from being counted twice when it is seen
// under two slot names in the same bucket.
type gpuSets struct {
	claimed   map[string]struct{}
	available map[string]struct{}
}

func newGPUSets() *gpuSets {
	return &gpuSets{
		claimed:   make(map[string]struct{}),
		available: make(map[string]struct{}),
	}
}

func (s *gpuSets) add(gpu string, state model.SlotState) {
	switch state {
	case model.StateClaimed:
		s.claimed[gpu] = struct{}{}
		s.available[gpu] = struct{}{}
	case model.StateUnclaimed:
		s.available[gpu] = struct{}{}
	}
}

func (s *gpuSets) counts() model.BucketCounts {
	return model.BucketCounts{Claimed: len(s.claimed), Available: len(s.available)}
}

type bucketAccum struct {
	cats map[model.Category]*gpuSets

	// realTotal unions GPU identifiers across all real-slot categories, so
	// a GPU bridging two real categories mid-bucket counts once in the
	// grand total.
	realTotal *gpuSets

	devices      map[model.Category]map[string]*gpuSets
	deviceTotals map[string]*gpuSets
	tiers        map[model.MemoryTier]*gpuSets
}

func newBucketAccum() *bucketAccum {
	return &bucketAccum{
		cats:         make(map[model.Category]*gpuSets),
		realTotal:    newGPUSets(),
		devices:      make(map[model.Category]map[string]*gpuSets),
		deviceTotals: make(map[string]*gpuSets),
		tiers:        make(map[model.MemoryTier]*gpuSets),
	}
}

// Aggregate reduces deduplicated rows to window-level statistics. Every
// bucket seen in the window weighs equally in the means: a bucket where a
// category had nothing available contributes zero percent rather than being
// skipped.
//
// The returned excluded count is the number of rows masked by the Exclude
// predicate.
func Aggregate(rows []model.NormalizedRow, opts Options) (*model.AggregateResult, int) {
	buckets := make(map[time.Time]*bucketAccum)
	excluded := 0

	for _, row := range rows {
		if !row.State.Countable() {
			continue
		}
		if opts.Exclude != nil && opts.Exclude(row.Machine) {
			excluded++
			continue
		}

		accum, ok := buckets[row.Bucket]
		if !ok {
			accum = newBucketAccum()
			buckets[row.Bucket] = accum
		}

		sets, ok := accum.cats[row.Category]
		if !ok {
			sets = newGPUSets()
			accum.cats[row.Category] = sets
		}
		sets.add(row.GPU, row.State)

		if !row.Category.IsBackfill() {
			accum.realTotal.add(row.GPU, row.State)
		}

		if opts.GroupByDevice {
			name := device.DisplayName(row.DeviceName)
			byDev, ok := accum.devices[row.Category]
			if !ok {
				byDev = make(map[string]*gpuSets)
				accum.devices[row.Category] = byDev
			}
			devSets, ok := byDev[name]
			if !ok {
				devSets = newGPUSets()
				byDev[name] = devSets
			}
			devSets.add(row.GPU, row.State)

			if !row.Category.IsBackfill() {
				total, ok := accum.deviceTotals[name]
				if !ok {
					total = newGPUSets()
					accum.deviceTotals[name] = total
				}
				total.add(row.GPU, row.State)
			}
		}

		if opts.MemoryTiers && !row.Category.IsBackfill() {
			tier := device.MemoryTier(row.MemoryMB)
			tierSets, ok := accum.tiers[tier]
			if !ok {
				tierSets = newGPUSets()
				accum.tiers[tier] = tierSets
			}
			tierSets.add(row.GPU, row.State)
		}
	}

	order := make([]time.Time, 0, len(buckets))
	for bucket := range buckets {
		order = append(order, bucket)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	result := &model.AggregateResult{
		Categories: make(map[model.Category]model.CategoryStats, len(model.CategoryOrder)),
	}
	n := len(order)
	if n == 0 {
		return result, excluded
	}

	for _, cat := range model.CategoryOrder {
		result.Categories[cat] = windowStats(order, n, func(b *bucketAccum) model.BucketCounts {
			if sets, ok := b.cats[cat]; ok {
				return sets.counts()
			}
			return model.BucketCounts{}
		}, buckets)
	}

	result.Total = windowStats(order, n, func(b *bucketAccum) model.BucketCounts {
		return b.realTotal.counts()
	}, buckets)

	if opts.GroupByDevice {
		result.ByDevice = make(map[model.Category]map[string]model.CategoryStats)
		result.ByDeviceTotal = make(map[string]model.CategoryStats)

		deviceNames := make(map[string]struct{})
		catDevices := make(map[model.Category]map[string]struct{})
		for _, accum := range buckets {
			for cat, byDev := range accum.devices {
				if catDevices[cat] == nil {
					catDevices[cat] = make(map[string]struct{})
				}
				for name := range byDev {
					catDevices[cat][name] = struct{}{}
				}
			}
			for name := range accum.deviceTotals {
				deviceNames[name] = struct{}{}
			}
		}

		for cat, names := range catDevices {
			result.ByDevice[cat] = make(map[string]model.CategoryStats, len(names))
			for name := range names {
				result.ByDevice[cat][name] = windowStats(order, n, func(b *bucketAccum) model.BucketCounts {
					if sets, ok := b.devices[cat][name]; ok {
						return sets.counts()
					}
					return model.BucketCounts{}
				}, buckets)
			}
		}
		for name := range deviceNames {
			result.ByDeviceTotal[name] = windowStats(order, n, func(b *bucketAccum) model.BucketCounts {
				if sets, ok := b.deviceTotals[name]; ok {
					return sets.counts()
				}
				return model.BucketCounts{}
			}, buckets)
		}
	}

	if opts.MemoryTiers {
		result.ByMemoryTier = make(map[model.MemoryTier]model.CategoryStats)
		seen := make(map[model.MemoryTier]struct{})
		for _, accum := range buckets {
			for tier := range accum.tiers {
				seen[tier] = struct{}{}
			}
		}
		for tier := range seen {
			result.ByMemoryTier[tier] = windowStats(order, n, func(b *bucketAccum) model.BucketCounts {
				if sets, ok := b.tiers[tier]; ok {
					return sets.counts()
				}
				return model.BucketCounts{}
			}, buckets)
		}
	}

	if opts.Series {
		result.Series = make([]model.BucketSample, 0, n)
		for _, bucket := range order {
			accum := buckets[bucket]
			sample := model.BucketSample{
				Bucket: bucket,
				Counts: make(map[model.Category]model.BucketCounts, len(accum.cats)),
				Total:  accum.realTotal.counts(),
			}
			for cat, sets := range accum.cats {
				sample.Counts[cat] = sets.counts()
			}
			result.Series = append(result.Series, sample)
		}
	}

	return result, excluded
}

// windowStats averages one grouping cell's per-bucket counts over every
// bucket in the window.
func windowStats(order []time.Time, n int, counts func(*bucketAccum) model.BucketCounts, buckets map[time.Time]*bucketAccum) model.CategoryStats {
	var pctSum, claimedSum, availSum float64
	for _, bucket := range order {
		c := counts(buckets[bucket])
		pctSum += c.Percent()
		claimedSum += float64(c.Claimed)
		availSum += float64(c.Available)
	}
	return model.CategoryStats{
		AllocatedPercent: pctSum / float64(n),
		AllocatedAvg:     claimedSum / float64(n),
		AvailableAvg:     availSum / float64(n),
		Intervals:        n,
	}
}
