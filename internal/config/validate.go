package config

import (
	"fmt"
	"time"

	"github.com/chtc/gpureport/internal/errors"
)

// Validate checks that the Config contains valid values. Returns an error
// describing the first invalid field found.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return invalid("data_dir is required")
	}

	if c.RequireOwnership && c.OwnershipFile == "" {
		return invalid("ownership_file is required when require_ownership is set")
	}

	if c.BucketWidth < time.Minute {
		return invalid(fmt.Sprintf("bucket_width must be >= 1m, got %v", c.BucketWidth))
	}

	if c.WindowHours < 1 {
		return invalid(fmt.Sprintf("window_hours must be >= 1, got %d", c.WindowHours))
	}

	if c.OwnedIdlePolicy != "prioritized" && c.OwnedIdlePolicy != "open" {
		return invalid(fmt.Sprintf("owned_idle_policy must be prioritized or open, got %q", c.OwnedIdlePolicy))
	}

	if c.CompressionLevel < 1 || c.CompressionLevel > 4 {
		return invalid(fmt.Sprintf("compression_level must be 1-4, got %d", c.CompressionLevel))
	}

	if c.ReportSchedule == "" {
		return invalid("report_schedule is required")
	}

	if c.HealthPort < 1 || c.HealthPort > 65535 {
		return invalid(fmt.Sprintf("health_port must be 1-65535, got %d", c.HealthPort))
	}

	return nil
}

func invalid(msg string) error {
	return errors.New(errors.CodeConfigInvalid, msg, nil)
}
