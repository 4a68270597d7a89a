package analysis

import (
	"strings"

	"github.com/chtc/gpureport/internal/ownership"
	"github.com/chtc/gpureport/pkg/model"
)

// OwnedIdlePolicy decides the category of a slot on a centrally-owned host
// whose PrioritizedProjects is empty. The historical record is ambiguous on
// this sub-case, so it is a policy flag rather than a hard-coded rule.
type OwnedIdlePolicy string

const (
	// OwnedIdlePrioritized keeps centrally-owned hosts in the prioritized
	// category even with no prioritized projects. This is the default.
	OwnedIdlePrioritized OwnedIdlePolicy = "prioritized"

	// OwnedIdleOpen classifies such slots as open capacity instead.
	OwnedIdleOpen OwnedIdlePolicy = "open"
)

// Valid reports whether the policy is one of the recognized values.
func (p OwnedIdlePolicy) Valid() bool {
	return p == OwnedIdlePrioritized || p == OwnedIdleOpen
}

// Classifier assigns each normalized row its allocation category. It is a
// pure function of the row and the loaded registry, so one Classifier is
// safe for concurrent use.
type Classifier struct {
	registry *ownership.Registry
	policy   OwnedIdlePolicy
}

// NewClassifier creates a Classifier over a loaded registry. An invalid
// policy falls back to OwnedIdlePrioritized.
func NewClassifier(registry *ownership.Registry, policy OwnedIdlePolicy) *Classifier {
	if !policy.Valid() {
		policy = OwnedIdlePrioritized
	}
	return &Classifier{registry: registry, policy: policy}
}

// Classify stamps the row with its machine class and category. Backfill
// slots take one of the three backfill variants by machine class; real
// slots split on ownership first, then PrioritizedProjects.
func (c *Classifier) Classify(row model.NormalizedRow) model.NormalizedRow {
	class := c.registry.Classify(row.Machine, row.PrioritizedProjects)
	row.MachineClass = class

	if IsBackfillSlot(row.SlotName) {
		switch class {
		case model.MachineCentrallyOwned:
			row.Category = model.CategoryBackfillCentrallyOwned
		case model.MachineResearcherOwned:
			row.Category = model.CategoryBackfillResearcherOwned
		default:
			row.Category = model.CategoryBackfillOpenCapacity
		}
		return row
	}

	switch class {
	case model.MachineCentrallyOwned:
		if c.policy == OwnedIdleOpen && strings.TrimSpace(row.PrioritizedProjects) == "" {
			row.Category = model.CategoryShared
			return row
		}
		row.Category = model.CategoryPriorityCentrallyOwned
	case model.MachineResearcherOwned:
		row.Category = model.CategoryPriorityResearcherOwned
	default:
		row.Category = model.CategoryShared
	}
	return row
}

// ClassifyAll stamps a batch of rows, preserving order.
func (c *Classifier) ClassifyAll(rows []model.NormalizedRow) []model.NormalizedRow {
	for i := range rows {
		rows[i] = c.Classify(rows[i])
	}
	return rows
}
