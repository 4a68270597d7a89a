package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chtc/gpureport/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/gpureport/data", cfg.DataDir)
	assert.Equal(t, 15*time.Minute, cfg.BucketWidth)
	assert.Equal(t, 24, cfg.WindowHours)
	assert.Equal(t, "prioritized", cfg.OwnedIdlePolicy)
	assert.Equal(t, 3, cfg.CompressionLevel)
	assert.Equal(t, "0 6 * * *", cfg.ReportSchedule)
	assert.Equal(t, 8080, cfg.HealthPort)
	assert.False(t, cfg.RequireOwnership)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpureport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /srv/gpu/data
ownership_file: /srv/gpu/chtc_owned
bucket_width: 30m
window_hours: 168
owned_idle_policy: open
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/gpu/data", cfg.DataDir)
	assert.Equal(t, "/srv/gpu/chtc_owned", cfg.OwnershipFile)
	assert.Equal(t, 30*time.Minute, cfg.BucketWidth)
	assert.Equal(t, 168, cfg.WindowHours)
	assert.Equal(t, "open", cfg.OwnedIdlePolicy)
	// Unset keys keep their defaults.
	assert.Equal(t, 8080, cfg.HealthPort)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("GPUREPORT_DATA_DIR", "/from/env")
	t.Setenv("GPUREPORT_WINDOW_HOURS", "72")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, 72, cfg.WindowHours)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeConfigInvalid))
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"ownership required but unset", func(c *Config) { c.RequireOwnership = true }, "ownership_file"},
		{"bucket width too small", func(c *Config) { c.BucketWidth = time.Second }, "bucket_width"},
		{"zero window", func(c *Config) { c.WindowHours = 0 }, "window_hours"},
		{"bad policy", func(c *Config) { c.OwnedIdlePolicy = "maybe" }, "owned_idle_policy"},
		{"bad compression level", func(c *Config) { c.CompressionLevel = 9 }, "compression_level"},
		{"empty schedule", func(c *Config) { c.ReportSchedule = "" }, "report_schedule"},
		{"bad port", func(c *Config) { c.HealthPort = 0 }, "health_port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeConfigInvalid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
