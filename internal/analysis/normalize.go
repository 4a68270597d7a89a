package analysis

import (
	"strings"
	"time"

	"github.com/chtc/gpureport/pkg/model"
)

// backfillMarker identifies opportunistic slots by slot name, matched
// case-insensitively.
const backfillMarker = "backfill"

// DefaultBucketWidth is the collection cadence of the snapshot store.
const DefaultBucketWidth = 15 * time.Minute

// IsBackfillSlot reports whether a slot name marks an opportunistic slot.
func IsBackfillSlot(slotName string) bool {
	return strings.Contains(strings.ToLower(slotName), backfillMarker)
}

// CanonicalGPU normalizes a physical GPU identifier. Raw data carries two
// interchangeable prefix spellings for the same device; grouping and dedup
// require one canonical form.
func CanonicalGPU(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), "GPU_", "GPU-")
}

// Normalizer expands raw snapshot rows into per-GPU rows stamped with their
// time bucket.
type Normalizer struct {
	BucketWidth time.Duration
}

// NewNormalizer creates a Normalizer, applying the default bucket width when
// none is given.
func NewNormalizer(bucketWidth time.Duration) *Normalizer {
	if bucketWidth <= 0 {
		bucketWidth = DefaultBucketWidth
	}
	return &Normalizer{BucketWidth: bucketWidth}
}

// Normalize expands one snapshot row into one row per physical GPU.
//
// Backfill slots do not natively report an assignment, so an empty
// AssignedGPUs on a backfill slot borrows the host's AvailableGPUs list.
// Rows with no GPU identifiers after substitution produce nothing.
func (n *Normalizer) Normalize(row model.SnapshotRow) []model.NormalizedRow {
	assigned := row.AssignedGPUs
	if IsBackfillSlot(row.SlotName) && strings.TrimSpace(assigned) == "" {
		assigned = row.AvailableGPUs
	}

	bucket := row.Timestamp.Truncate(n.BucketWidth)

	var out []model.NormalizedRow
	for _, id := range strings.Split(assigned, ",") {
		gpu := CanonicalGPU(id)
		if gpu == "" {
			continue
		}
		out = append(out, model.NormalizedRow{
			SnapshotRow: row,
			GPU:         gpu,
			Bucket:      bucket,
		})
	}
	return out
}

// NormalizeAll expands a batch of snapshot rows, preserving input order.
func (n *Normalizer) NormalizeAll(rows []model.SnapshotRow) []model.NormalizedRow {
	out := make([]model.NormalizedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, n.Normalize(row)...)
	}
	return out
}
