package ownership

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chtc/gpureport/internal/errors"
	"github.com/chtc/gpureport/pkg/model"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chtc_owned")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeRegistry(t, "gpu2000.chtc.wisc.edu\n\n# comment line\ngpu2001.chtc.wisc.edu\n  gpu2002.chtc.wisc.edu  \n")

	reg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Len())
	assert.True(t, reg.Contains("gpu2000.chtc.wisc.edu"))
	assert.True(t, reg.Contains("gpu2002.chtc.wisc.edu"))
	assert.False(t, reg.Contains("gpu9999.chtc.wisc.edu"))
	assert.Equal(t, []string{
		"gpu2000.chtc.wisc.edu",
		"gpu2001.chtc.wisc.edu",
		"gpu2002.chtc.wisc.edu",
	}, reg.Hosts())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeOwnershipLoad))
}

func TestLoadTolerant_MissingFile(t *testing.T) {
	reg, err := LoadTolerant(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, model.MachineOpenCapacity, reg.Classify("anyhost", ""))
}

func TestClassify_Precedence(t *testing.T) {
	path := writeRegistry(t, "owned.chtc.wisc.edu\n")
	reg, err := Load(path)
	require.NoError(t, err)

	tests := []struct {
		name     string
		machine  string
		projects string
		want     model.MachineClass
	}{
		{"registered host wins over empty projects", "owned.chtc.wisc.edu", "", model.MachineCentrallyOwned},
		{"registered host wins over non-empty projects", "owned.chtc.wisc.edu", "projX", model.MachineCentrallyOwned},
		{"unregistered with projects", "lab.chtc.wisc.edu", "projX,projY", model.MachineResearcherOwned},
		{"unregistered without projects", "pool.chtc.wisc.edu", "", model.MachineOpenCapacity},
		{"whitespace-only projects is empty", "pool.chtc.wisc.edu", "   ", model.MachineOpenCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Classify(tt.machine, tt.projects))
		})
	}
}

func TestCache_ReloadsOnChange(t *testing.T) {
	path := writeRegistry(t, "host-a\n")
	c := NewCache(false)

	reg, err := c.Get(path)
	require.NoError(t, err)
	assert.True(t, reg.Contains("host-a"))
	assert.False(t, reg.Contains("host-b"))

	// Rewrite with a newer mtime; the cache key changes and a reload occurs.
	require.NoError(t, os.WriteFile(path, []byte("host-a\nhost-b\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	reg, err = c.Get(path)
	require.NoError(t, err)
	assert.True(t, reg.Contains("host-b"))
}

func TestCache_TolerantMissing(t *testing.T) {
	c := NewCache(true)
	reg, err := c.Get(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestCache_StrictMissing(t *testing.T) {
	c := NewCache(false)
	_, err := c.Get(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeOwnershipLoad))
}
