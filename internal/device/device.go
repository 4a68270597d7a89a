// Package device maps raw GPU device identifiers to display names and
// memory tiers used by report groupings.
package device

import "github.com/chtc/gpureport/pkg/model"

// displayNames maps the technical GPUs_DeviceName value to the name shown in
// reports. Unmapped devices fall through unchanged.
var displayNames = map[string]string{
	"NVIDIA A100-SXM4-40GB":      "A100 40GB",
	"NVIDIA A100-SXM4-80GB":      "A100 80GB",
	"NVIDIA A30":                 "A30",
	"NVIDIA A40":                 "A40",
	"NVIDIA GeForce GTX 1080 Ti": "GTX 1080 Ti",
	"NVIDIA GeForce RTX 2080 Ti": "RTX 2080 Ti",
	"NVIDIA H100 80GB HBM3":      "H100 80GB",
	"NVIDIA H200":                "H200",
	"NVIDIA L40":                 "L40",
	"NVIDIA L40S":                "L40S",
	"Quadro RTX 6000":            "Quadro RTX 6000",
	"Tesla P100-PCIE-16GB":       "Tesla P100 16GB",
}

// DisplayName returns the human-readable name for a technical device name.
// Unknown devices are returned as-is, and an empty name becomes "Unknown".
func DisplayName(deviceName string) string {
	if deviceName == "" {
		return "Unknown"
	}
	if name, ok := displayNames[deviceName]; ok {
		return name
	}
	return deviceName
}

// Memory tier boundaries in MB. Device memory sizes cluster well below the
// marketing number (an "80GB" card reports ~81,000 MB), so the boundaries
// sit under the nominal capacities.
const (
	tier80GB = 76_000
	tier40GB = 38_000
	tier20GB = 19_000
)

// MemoryTier buckets a device's global memory into the coarse capacity
// classes used for tier groupings.
func MemoryTier(memoryMB int64) model.MemoryTier {
	switch {
	case memoryMB <= 0:
		return model.TierUnknown
	case memoryMB >= tier80GB:
		return model.Tier80GBPlus
	case memoryMB >= tier40GB:
		return model.Tier40to79GB
	case memoryMB >= tier20GB:
		return model.Tier20to39GB
	default:
		return model.TierUnder20GB
	}
}
