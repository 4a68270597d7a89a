package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chtc/gpureport/internal/errors"
	"github.com/chtc/gpureport/pkg/model"
)

type fixtureRow struct {
	ts       string
	machine  string
	name     string
	state    string
	projects string
	assigned string
	avail    string
	device   string
	memoryMB any
	usage    any
	owner    string
	jobID    string
}

func slotRow(ts, machine, name, state, assigned string) fixtureRow {
	return fixtureRow{
		ts: ts, machine: machine, name: name, state: state,
		assigned: assigned, device: "NVIDIA A100-SXM4-80GB", memoryMB: 81251,
	}
}

func createPartition(t *testing.T, dir, month string, rows []fixtureRow) {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("gpu_state_%s.db", month))
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE gpu_state (
		timestamp TEXT,
		Machine TEXT,
		Name TEXT,
		State TEXT,
		PrioritizedProjects TEXT,
		AssignedGPUs TEXT,
		AvailableGPUs TEXT,
		GPUs_DeviceName TEXT,
		GPUs_GlobalMemoryMb INTEGER,
		GPUsAverageUsage REAL,
		RemoteOwner TEXT,
		GlobalJobId TEXT
	)`)
	require.NoError(t, err)

	for _, r := range rows {
		_, err = db.Exec(`INSERT INTO gpu_state VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			r.ts, r.machine, r.name, r.state, r.projects, r.assigned, r.avail,
			r.device, r.memoryMB, r.usage, r.owner, r.jobID)
		require.NoError(t, err)
	}
}

func TestPartitions(t *testing.T) {
	s := New("/data")

	start := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{
		"/data/gpu_state_2025-06.db",
		"/data/gpu_state_2025-07.db",
		"/data/gpu_state_2025-08.db",
	}, s.Partitions(start, end))

	// A sub-month range resolves to a single partition.
	assert.Len(t, s.Partitions(start, start.Add(time.Hour)), 1)
}

func TestRead_SingleMonth(t *testing.T) {
	dir := t.TempDir()
	createPartition(t, dir, "2025-07", []fixtureRow{
		slotRow("2025-07-10 12:15:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
		slotRow("2025-07-10 12:00:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Unclaimed", "GPU-aaa"),
		slotRow("2025-07-25 09:00:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
	})

	s := New(dir)
	start := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 11, 0, 0, 0, 0, time.UTC)

	rows, stats, err := s.Read(context.Background(), start, end)
	require.NoError(t, err)

	// The July 25 row is outside the window; results come back ascending.
	require.Len(t, rows, 2)
	assert.Equal(t, model.StateUnclaimed, rows[0].State)
	assert.Equal(t, model.StateClaimed, rows[1].State)
	assert.True(t, rows[0].Timestamp.Before(rows[1].Timestamp))

	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 0, stats.Missing)
	assert.Equal(t, 2, stats.RowsRead)
	assert.Empty(t, stats.Failed)
}

func TestRead_MonthBoundary(t *testing.T) {
	dir := t.TempDir()
	createPartition(t, dir, "2025-06", []fixtureRow{
		slotRow("2025-06-30 23:45:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
	})
	createPartition(t, dir, "2025-07", []fixtureRow{
		slotRow("2025-07-01 00:00:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
	})

	s := New(dir)
	start := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)

	rows, stats, err := s.Read(context.Background(), start, end)
	require.NoError(t, err)

	// Rows spanning the partition boundary form one continuous ascending run.
	require.Len(t, rows, 2)
	assert.Equal(t, time.Date(2025, 6, 30, 23, 45, 0, 0, time.UTC), rows[0].Timestamp)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), rows[1].Timestamp)
	assert.Equal(t, 2, stats.Resolved)
}

func TestRead_WindowBoundsAcrossTimestampForms(t *testing.T) {
	dir := t.TempDir()
	createPartition(t, dir, "2025-07", []fixtureRow{
		// Fraction-less form exactly at the window start: inclusive.
		slotRow("2025-07-10 00:00:00", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
		// ISO form hours before the start: out of window despite sorting
		// after a space-separated text bound.
		slotRow("2025-07-09T18:00:00", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
		// Exactly at the window end: inclusive.
		slotRow("2025-07-11 00:00:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Unclaimed", "GPU-aaa"),
		// Just past the end: excluded.
		slotRow("2025-07-11 00:00:01", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
	})

	s := New(dir)
	start := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 11, 0, 0, 0, 0, time.UTC)

	rows, stats, err := s.Read(context.Background(), start, end)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, start, rows[0].Timestamp)
	assert.Equal(t, end, rows[1].Timestamp)

	// Out-of-window rows are filtered, not counted as malformed.
	assert.Equal(t, 0, stats.RowsSkipped)
}

func TestRead_MissingPartition(t *testing.T) {
	dir := t.TempDir()
	createPartition(t, dir, "2025-07", []fixtureRow{
		slotRow("2025-07-01 10:00:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
	})

	s := New(dir)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)

	rows, stats, err := s.Read(context.Background(), start, end)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, stats.Missing)
	assert.Equal(t, 1, stats.Resolved)
}

func TestRead_CorruptPartitionSkipped(t *testing.T) {
	dir := t.TempDir()
	createPartition(t, dir, "2025-07", []fixtureRow{
		slotRow("2025-07-01 10:00:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
	})
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "gpu_state_2025-06.db"), []byte("not a sqlite file"), 0o644))

	s := New(dir)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)

	rows, stats, err := s.Read(context.Background(), start, end)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, []string{"gpu_state_2025-06.db"}, stats.Failed)
}

func TestRead_AllPartitionsFailed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "gpu_state_2025-07.db"), []byte("not a sqlite file"), 0o644))

	s := New(dir)
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)

	_, _, err := s.Read(context.Background(), start, end)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeDataUnavailable))
}

func TestRead_EmptyRangeNoPartitions(t *testing.T) {
	s := New(t.TempDir())
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	rows, stats, err := s.Read(context.Background(), start, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 1, stats.Missing)
	assert.Equal(t, 0, stats.Resolved)
}

func TestRead_MalformedTimestampSkipped(t *testing.T) {
	dir := t.TempDir()
	createPartition(t, dir, "2025-07", []fixtureRow{
		slotRow("2025-07-15 99:99:99.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
		slotRow("2025-07-15 10:00:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
	})

	s := New(dir)
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)

	rows, stats, err := s.Read(context.Background(), start, end)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, stats.RowsSkipped)
}

func TestRead_NullColumns(t *testing.T) {
	dir := t.TempDir()
	createPartition(t, dir, "2025-07", []fixtureRow{
		{
			ts: "2025-07-15 10:00:00.000000", machine: "gpu2000.chtc.wisc.edu",
			name: "slot1@gpu2000.chtc.wisc.edu", state: "Unclaimed",
			memoryMB: nil, usage: nil,
		},
	})

	s := New(dir)
	start := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)

	rows, _, err := s.Read(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(0), rows[0].MemoryMB)
	assert.Nil(t, rows[0].AverageUsage)
}

func TestLatestTimestamp(t *testing.T) {
	dir := t.TempDir()
	createPartition(t, dir, "2025-06", []fixtureRow{
		slotRow("2025-06-30 23:45:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
	})
	createPartition(t, dir, "2025-07", []fixtureRow{
		slotRow("2025-07-10 12:15:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
		slotRow("2025-07-09 08:00:00.000000", "gpu2000.chtc.wisc.edu", "slot1_1@gpu2000.chtc.wisc.edu", "Claimed", "GPU-aaa"),
	})

	ts, err := New(dir).LatestTimestamp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 10, 12, 15, 0, 0, time.UTC), ts)
}

func TestLatestTimestamp_NoPartitions(t *testing.T) {
	ts, err := New(t.TempDir()).LatestTimestamp(context.Background())
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}
