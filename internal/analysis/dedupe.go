package analysis

import (
	"time"

	"github.com/chtc/gpureport/pkg/model"
)

// dedupeKey groups rows that describe the same physical GPU at the same
// collection instant within one slot family. Dedup runs per family, not
// across families: a GPU legitimately holds one real-slot standing and one
// backfill standing at the same instant, and each must be counted
// independently.
type dedupeKey struct {
	gpu    string
	ts     time.Time
	family model.SlotFamily
}

// stateRank orders rows within one dedupe group. A claimed standing
// outranks an unclaimed one; anything else loses to both. Ties keep the
// first row seen, which makes the pass deterministic for a given input
// order.
func stateRank(s model.SlotState) int {
	switch s {
	case model.StateClaimed:
		return 2
	case model.StateUnclaimed:
		return 1
	}
	return 0
}

// Dedupe resolves duplicate standings so each (GPU, timestamp, family)
// triple survives at most once. Surviving rows come back in first-seen
// order.
func Dedupe(rows []model.NormalizedRow) []model.NormalizedRow {
	best := make(map[dedupeKey]int, len(rows))
	var order []dedupeKey

	for i, row := range rows {
		key := dedupeKey{gpu: row.GPU, ts: row.Timestamp, family: row.Category.Family()}
		prev, seen := best[key]
		if !seen {
			best[key] = i
			order = append(order, key)
			continue
		}
		if stateRank(row.State) > stateRank(rows[prev].State) {
			best[key] = i
		}
	}

	out := make([]model.NormalizedRow, 0, len(order))
	for _, key := range order {
		out = append(out, rows[best[key]])
	}
	return out
}
