package model

import "time"

// SlotState is the scheduler-reported state of a slot.
type SlotState string

// Slot states counted by the aggregator. Anything else maps to StateOther,
// which is kept for operational listings but excluded from claimed/available
// counts.
const (
	StateClaimed   SlotState = "Claimed"
	StateUnclaimed SlotState = "Unclaimed"
	StateOther     SlotState = "Other"
)

// ParseSlotState maps a raw state string to a SlotState.
func ParseSlotState(raw string) SlotState {
	switch raw {
	case "Claimed":
		return StateClaimed
	case "Unclaimed":
		return StateUnclaimed
	default:
		return StateOther
	}
}

// Countable reports whether the state participates in claimed/available counts.
func (s SlotState) Countable() bool {
	return s == StateClaimed || s == StateUnclaimed
}

// SnapshotRow is one raw record from the snapshot store: one slot on one
// machine at one collection instant. AssignedGPUs and AvailableGPUs are
// comma-joined lists of physical GPU identifiers as reported by the collector.
type SnapshotRow struct {
	Timestamp           time.Time `json:"timestamp"`
	Machine             string    `json:"machine"`
	SlotName            string    `json:"slot_name"`
	State               SlotState `json:"state"`
	RawState            string    `json:"raw_state,omitempty"`
	PrioritizedProjects string    `json:"prioritized_projects"`
	AssignedGPUs        string    `json:"assigned_gpus"`
	AvailableGPUs       string    `json:"available_gpus"`
	DeviceName          string    `json:"device_name,omitempty"`
	MemoryMB            int64     `json:"memory_mb,omitempty"`
	AverageUsage        *float64  `json:"average_usage,omitempty"`
	RemoteOwner         string    `json:"remote_owner,omitempty"`
	GlobalJobID         string    `json:"global_job_id,omitempty"`
}

// NormalizedRow is one (timestamp, physical GPU) pair expanded from a
// SnapshotRow, stamped with its time bucket and, after classification,
// its category.
type NormalizedRow struct {
	SnapshotRow

	GPU          string       `json:"gpu"`
	Bucket       time.Time    `json:"bucket"`
	Category     Category     `json:"category"`
	MachineClass MachineClass `json:"machine_class"`
}
