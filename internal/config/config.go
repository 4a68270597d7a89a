package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chtc/gpureport/internal/errors"
)

// Config holds all reporter configuration values. Values come from an
// optional YAML file and GPUREPORT_-prefixed environment variables, with
// the environment winning.
type Config struct {
	// Data inputs
	DataDir          string `mapstructure:"data_dir"`
	OwnershipFile    string `mapstructure:"ownership_file"`
	RequireOwnership bool   `mapstructure:"require_ownership"`
	ExclusionsFile   string `mapstructure:"exclusions_file"`

	// Analysis
	BucketWidth     time.Duration `mapstructure:"bucket_width"`
	WindowHours     int           `mapstructure:"window_hours"`
	OwnedIdlePolicy string        `mapstructure:"owned_idle_policy"`

	// Export
	ExportDir        string `mapstructure:"export_dir"`
	CompressionLevel int    `mapstructure:"compression_level"`

	// Serve mode
	ReportSchedule string `mapstructure:"report_schedule"`
	HealthPort     int    `mapstructure:"health_port"`
	DebugEndpoints bool   `mapstructure:"debug_endpoints"`
}

// Load reads configuration from the given YAML file (optional, "" skips the
// file entirely) and the environment, with defaults applied for any unset
// values.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", "/var/lib/gpureport/data")
	v.SetDefault("ownership_file", "")
	v.SetDefault("require_ownership", false)
	v.SetDefault("exclusions_file", "")
	v.SetDefault("bucket_width", 15*time.Minute)
	v.SetDefault("window_hours", 24)
	v.SetDefault("owned_idle_policy", "prioritized")
	v.SetDefault("export_dir", "")
	v.SetDefault("compression_level", 3)
	v.SetDefault("report_schedule", "0 6 * * *")
	v.SetDefault("health_port", 8080)
	v.SetDefault("debug_endpoints", false)

	v.SetEnvPrefix("GPUREPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.New(errors.CodeConfigInvalid, "read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.New(errors.CodeConfigInvalid, "unmarshal config", err)
	}
	return cfg, nil
}
