package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chtc/gpureport/internal/errors"
	"github.com/chtc/gpureport/pkg/model"
)

// tableName is the snapshot table written by the out-of-band collector.
const tableName = "gpu_state"

// Store reads snapshot rows from monthly SQLite partitions named
// gpu_state_YYYY-MM.db in a single directory. Partitions are written by a
// separate ingestion process and only ever appended to, so concurrent
// readers are safe.
type Store struct {
	dir string
}

// New creates a Store over the given partition directory.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// ReadStats describes the outcome of one Read: how many partitions were
// resolved for the range, which were absent or failed, and how many rows
// were read or skipped as malformed.
type ReadStats struct {
	Resolved    int
	Missing     int
	Failed      []string
	RowsRead    int
	RowsSkipped int
}

// Partitions returns the partition paths whose month intersects
// [start, end], whether or not the files exist on disk.
func (s *Store) Partitions(start, end time.Time) []string {
	var paths []string
	current := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
	for !current.After(last) {
		name := fmt.Sprintf("gpu_state_%s.db", current.Format("2006-01"))
		paths = append(paths, filepath.Join(s.dir, name))
		current = current.AddDate(0, 1, 0)
	}
	return paths
}

// Read returns all snapshot rows with timestamps in [start, end], in
// ascending timestamp order. A missing partition contributes zero rows. A
// partition that exists but fails to read is logged and skipped; only when
// every existing partition fails does Read return a DATA_UNAVAILABLE error.
func (s *Store) Read(ctx context.Context, start, end time.Time) ([]model.SnapshotRow, ReadStats, error) {
	var (
		rows  []model.SnapshotRow
		stats ReadStats
	)

	succeeded := 0
	for _, path := range s.Partitions(start, end) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			stats.Missing++
			slog.Debug("partition absent, contributing zero rows", "path", path)
			continue
		}
		stats.Resolved++

		partRows, skipped, err := readPartition(ctx, path, start, end)
		if err != nil {
			stats.Failed = append(stats.Failed, filepath.Base(path))
			slog.Warn("partition read failed, continuing with remaining partitions",
				"path", path, "error", err)
			continue
		}
		succeeded++
		stats.RowsSkipped += skipped
		rows = append(rows, partRows...)
	}

	if stats.Resolved > 0 && succeeded == 0 {
		return nil, stats, errors.New(errors.CodeDataUnavailable,
			fmt.Sprintf("all %d partitions failed for range %s to %s",
				stats.Resolved, start.Format(time.RFC3339), end.Format(time.RFC3339)), nil)
	}

	// Partitions are visited in month order and each is read ordered by
	// timestamp, but sort once more so the contract holds even for odd
	// partition contents.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	stats.RowsRead = len(rows)

	return rows, stats, nil
}

// LatestTimestamp returns the newest snapshot timestamp across all
// partitions in the directory, or the zero time when no data exists.
func (s *Store) LatestTimestamp(ctx context.Context) (time.Time, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "gpu_state_*.db"))
	if err != nil || len(matches) == 0 {
		return time.Time{}, err
	}
	sort.Strings(matches)

	// Walk backwards so an empty or corrupt newest partition does not hide
	// older data.
	for i := len(matches) - 1; i >= 0; i-- {
		ts, err := maxTimestamp(ctx, matches[i])
		if err != nil {
			slog.Warn("could not read latest timestamp from partition",
				"path", matches[i], "error", err)
			continue
		}
		if !ts.IsZero() {
			return ts, nil
		}
	}
	return time.Time{}, nil
}

func maxTimestamp(ctx context.Context, path string) (time.Time, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return time.Time{}, err
	}
	defer db.Close()

	var raw sql.NullString
	query := fmt.Sprintf("SELECT MAX(timestamp) FROM %s", tableName)
	if err := db.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		return time.Time{}, err
	}
	if !raw.Valid {
		return time.Time{}, nil
	}
	return parseTimestamp(raw.String)
}

func readPartition(ctx context.Context, path string, start, end time.Time) ([]model.SnapshotRow, int, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, 0, fmt.Errorf("open partition: %w", err)
	}
	defer db.Close()

	query := fmt.Sprintf(`
		SELECT timestamp, Machine, Name, State, PrioritizedProjects,
		       AssignedGPUs, AvailableGPUs, GPUs_DeviceName,
		       GPUs_GlobalMemoryMb, GPUsAverageUsage, RemoteOwner, GlobalJobId
		FROM %s
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp`, tableName)

	// The timestamp column is text and mixes fraction-less and ISO-T forms,
	// which do not sort consistently against one fully formatted bound. The
	// SQL range is only a coarse date-level pre-filter; the exact inclusive
	// window check happens on the parsed timestamp below.
	coarseStart := start.Format("2006-01-02")
	coarseEnd := end.AddDate(0, 0, 1).Format("2006-01-02")

	result, err := db.QueryContext(ctx, query, coarseStart, coarseEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("query partition: %w", err)
	}
	defer result.Close()

	var (
		rows    []model.SnapshotRow
		skipped int
	)
	for result.Next() {
		var (
			ts                        string
			machine, name, state      sql.NullString
			projects, assigned, avail sql.NullString
			device, owner, jobID      sql.NullString
			memoryMB                  sql.NullInt64
			avgUsage                  sql.NullFloat64
		)
		if err := result.Scan(&ts, &machine, &name, &state, &projects,
			&assigned, &avail, &device, &memoryMB, &avgUsage, &owner, &jobID); err != nil {
			skipped++
			continue
		}

		timestamp, err := parseTimestamp(ts)
		if err != nil {
			skipped++
			continue
		}
		if timestamp.Before(start) || timestamp.After(end) {
			continue
		}

		row := model.SnapshotRow{
			Timestamp:           timestamp,
			Machine:             machine.String,
			SlotName:            name.String,
			State:               model.ParseSlotState(state.String),
			RawState:            state.String,
			PrioritizedProjects: projects.String,
			AssignedGPUs:        assigned.String,
			AvailableGPUs:       avail.String,
			DeviceName:          device.String,
			GlobalJobID:         jobID.String,
			RemoteOwner:         owner.String,
		}
		if memoryMB.Valid {
			row.MemoryMB = memoryMB.Int64
		}
		if avgUsage.Valid {
			usage := avgUsage.Float64
			row.AverageUsage = &usage
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scan partition: %w", err)
	}

	return rows, skipped, nil
}

// parseTimestamp handles the collector's text format plus the ISO variant
// older partitions used. The parser accepts variable fractional seconds with
// the plain layouts, so two layouts cover all observed data.
func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
