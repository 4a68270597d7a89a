package model

// MachineClass is the ownership classification of a host. Membership in the
// centrally-owned registry wins over the PrioritizedProjects signal.
type MachineClass string

const (
	MachineCentrallyOwned  MachineClass = "CHTC Owned"
	MachineResearcherOwned MachineClass = "Researcher Owned"
	MachineOpenCapacity    MachineClass = "Open Capacity"
)

// Category is the allocation category of a slot record. A physical GPU may
// carry one real-slot category and one backfill category at the same instant,
// because backfill runs opportunistically atop an idle real slot.
type Category string

const (
	CategoryPriorityResearcherOwned Category = "Priority-ResearcherOwned"
	CategoryPriorityCentrallyOwned  Category = "Priority-CHTCOwned"
	CategoryShared                  Category = "Shared"
	CategoryBackfillResearcherOwned Category = "Backfill-ResearcherOwned"
	CategoryBackfillCentrallyOwned  Category = "Backfill-CHTCOwned"
	CategoryBackfillOpenCapacity    Category = "Backfill-OpenCapacity"
)

// CategoryOrder is the canonical ordering of categories in reports.
var CategoryOrder = []Category{
	CategoryPriorityResearcherOwned,
	CategoryPriorityCentrallyOwned,
	CategoryShared,
	CategoryBackfillResearcherOwned,
	CategoryBackfillCentrallyOwned,
	CategoryBackfillOpenCapacity,
}

// RealSlotCategories are the non-backfill categories that make up the
// union-based grand total.
var RealSlotCategories = []Category{
	CategoryPriorityResearcherOwned,
	CategoryPriorityCentrallyOwned,
	CategoryShared,
}

// SlotFamily distinguishes real-slot standings from backfill standings.
// Deduplication runs independently per family so a GPU can hold one standing
// in each.
type SlotFamily int

const (
	FamilyReal SlotFamily = iota
	FamilyBackfill
)

// MemoryTier is the coarse GPU memory capacity class used for tier
// groupings in reports.
type MemoryTier string

const (
	Tier80GBPlus  MemoryTier = "80GB+"
	Tier40to79GB  MemoryTier = "40-79GB"
	Tier20to39GB  MemoryTier = "20-39GB"
	TierUnder20GB MemoryTier = "Under 20GB"
	TierUnknown   MemoryTier = "Unknown"
)

// MemoryTierOrder is the canonical ordering of tiers in reports, largest
// capacity first.
var MemoryTierOrder = []MemoryTier{
	Tier80GBPlus,
	Tier40to79GB,
	Tier20to39GB,
	TierUnder20GB,
	TierUnknown,
}

// IsBackfill reports whether the category is one of the backfill variants.
func (c Category) IsBackfill() bool {
	switch c {
	case CategoryBackfillResearcherOwned, CategoryBackfillCentrallyOwned, CategoryBackfillOpenCapacity:
		return true
	}
	return false
}

// Family returns the slot family the category belongs to.
func (c Category) Family() SlotFamily {
	if c.IsBackfill() {
		return FamilyBackfill
	}
	return FamilyReal
}

// DisplayName returns the user-facing name for a category.
func (c Category) DisplayName() string {
	switch c {
	case CategoryPriorityResearcherOwned:
		return "Prioritized (Researcher Owned)"
	case CategoryPriorityCentrallyOwned:
		return "Prioritized (CHTC Owned)"
	case CategoryShared:
		return "Open Capacity"
	case CategoryBackfillResearcherOwned:
		return "Backfill (Researcher Owned)"
	case CategoryBackfillCentrallyOwned:
		return "Backfill (CHTC Owned)"
	case CategoryBackfillOpenCapacity:
		return "Backfill (Open Capacity)"
	}
	return string(c)
}
