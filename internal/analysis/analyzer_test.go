package analysis

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chtc/gpureport/internal/exclusion"
	"github.com/chtc/gpureport/internal/ownership"
	"github.com/chtc/gpureport/internal/store"
	"github.com/chtc/gpureport/pkg/model"
)

type snapshotFixture struct {
	ts       string
	machine  string
	name     string
	state    string
	projects string
	assigned string
	avail    string
	owner    string
}

func writePartition(t *testing.T, dir string, rows []snapshotFixture) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(dir, "gpu_state_2025-07.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE gpu_state (
		timestamp TEXT, Machine TEXT, Name TEXT, State TEXT,
		PrioritizedProjects TEXT, AssignedGPUs TEXT, AvailableGPUs TEXT,
		GPUs_DeviceName TEXT, GPUs_GlobalMemoryMb INTEGER,
		GPUsAverageUsage REAL, RemoteOwner TEXT, GlobalJobId TEXT
	)`)
	require.NoError(t, err)

	for _, r := range rows {
		_, err = db.Exec(`INSERT INTO gpu_state VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			r.ts, r.machine, r.name, r.state, r.projects, r.assigned, r.avail,
			"NVIDIA A100-SXM4-80GB", 81251, nil, r.owner, "")
		require.NoError(t, err)
	}
}

func newTestAnalyzer(t *testing.T, dataDir string) *Analyzer {
	t.Helper()
	cfgDir := t.TempDir()

	regPath := filepath.Join(cfgDir, "chtc_owned")
	require.NoError(t, os.WriteFile(regPath, []byte("owned.chtc.wisc.edu\n"), 0o644))
	registry, err := ownership.Load(regPath)
	require.NoError(t, err)

	exclusions, err := exclusion.Parse("excluded_hosts:\n  ignored: \"flaky collector\"\n")
	require.NoError(t, err)

	return New(store.New(dataDir), registry, exclusions, 15*time.Minute, OwnedIdlePrioritized)
}

func TestAnalyzer_Run(t *testing.T) {
	dir := t.TempDir()
	at := "2025-07-10 12:00:00.000000"
	writePartition(t, dir, []snapshotFixture{
		{ts: at, machine: "owned.chtc.wisc.edu", name: "slot1_1@owned.chtc.wisc.edu",
			state: "Claimed", projects: "projX", assigned: "GPU-aaa", owner: "alice@submit.chtc.wisc.edu"},
		{ts: at, machine: "owned.chtc.wisc.edu", name: "slot1_1_backfill@owned.chtc.wisc.edu",
			state: "Unclaimed", projects: "projX", assigned: "", avail: "GPU-aaa"},
		{ts: at, machine: "lab.chtc.wisc.edu", name: "slot1_1@lab.chtc.wisc.edu",
			state: "Claimed", projects: "projY", assigned: "GPU_bbb", owner: "bob@submit.chtc.wisc.edu"},
		{ts: at, machine: "pool.chtc.wisc.edu", name: "slot1_1@pool.chtc.wisc.edu",
			state: "Unclaimed", assigned: "GPU-ccc"},
		{ts: at, machine: "ignored.chtc.wisc.edu", name: "slot1_1@ignored.chtc.wisc.edu",
			state: "Claimed", assigned: "GPU-ddd", owner: "carol@submit.chtc.wisc.edu"},
	})

	a := newTestAnalyzer(t, dir)
	result, err := a.Run(context.Background(), Request{
		Start: time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 7, 11, 0, 0, 0, 0, time.UTC),
		Users: true,
		Hosts: true,
	})
	require.NoError(t, err)
	require.False(t, result.Empty())

	// One bucket: claimed owned GPU, claimed researcher GPU, idle open GPU.
	assert.InDelta(t, 1.0, result.Categories[model.CategoryPriorityCentrallyOwned].AllocatedAvg, 1e-9)
	assert.InDelta(t, 1.0, result.Categories[model.CategoryPriorityResearcherOwned].AllocatedAvg, 1e-9)
	assert.InDelta(t, 1.0, result.Categories[model.CategoryShared].AvailableAvg, 1e-9)
	assert.InDelta(t, 0.0, result.Categories[model.CategoryShared].AllocatedAvg, 1e-9)

	// The claimed owned GPU is also offered for backfill, counted in its
	// own family and absent from the real-slot total a second time.
	assert.InDelta(t, 1.0, result.Categories[model.CategoryBackfillCentrallyOwned].AvailableAvg, 1e-9)
	assert.InDelta(t, 2.0, result.Total.AllocatedAvg, 1e-9)
	assert.InDelta(t, 3.0, result.Total.AvailableAvg, 1e-9)

	// The masked host is out of the statistics but in the host listing.
	assert.Equal(t, 1, result.Metadata.ExcludedRows)
	machines := make([]string, 0, len(result.Hosts))
	for _, h := range result.Hosts {
		machines = append(machines, h.Machine)
	}
	assert.Contains(t, machines, "ignored.chtc.wisc.edu")

	require.Len(t, result.Users, 2)
	for _, u := range result.Users {
		assert.NotEqual(t, "carol@submit.chtc.wisc.edu", u.User)
	}

	assert.NotEmpty(t, result.Metadata.RunID)
	assert.Equal(t, 5, result.Metadata.TotalRecords)
	assert.Equal(t, 1, result.Metadata.Intervals)
	assert.Equal(t, 15*time.Minute, result.Metadata.BucketWidth)
}

func TestAnalyzer_EmptyWindow(t *testing.T) {
	a := newTestAnalyzer(t, t.TempDir())

	result, err := a.Run(context.Background(), Request{
		Start: time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 7, 11, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Equal(t, 0, result.Metadata.Intervals)
}
