// Package export archives analysis results as zstd-compressed JSON, one
// file per run, for later comparison or reprocessing.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/chtc/gpureport/pkg/model"
)

// Writer exports results into a directory. File names embed the run ID and
// window end so consecutive runs never collide.
type Writer struct {
	dir   string
	level zstd.EncoderLevel
}

// NewWriter creates an export writer. The level follows the zstd encoder
// scale 1-4; out-of-range values fall back to the default level.
func NewWriter(dir string, level int) *Writer {
	encLevel := zstd.SpeedDefault
	if level >= 1 && level <= 4 {
		encLevel = zstd.EncoderLevelFromZstd(level)
	}
	return &Writer{dir: dir, level: encLevel}
}

// Write archives one result, returning the path written. The file is
// written to a temp name and renamed so a crashed run never leaves a
// half-written archive behind.
func (w *Writer) Write(result *model.AggregateResult) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create dir: %w", err)
	}

	name := fmt.Sprintf("gpureport_%s_%s.json.zst",
		result.Metadata.WindowEnd.Format("2006-01-02T15-04"),
		result.Metadata.RunID)
	path := filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("export: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(w.level))
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("export: create encoder: %w", err)
	}

	enc := json.NewEncoder(zw)
	if err := enc.Encode(result); err != nil {
		zw.Close()
		tmp.Close()
		return "", fmt.Errorf("export: encode result: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("export: flush encoder: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("export: close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("export: finalize archive: %w", err)
	}
	return path, nil
}

// Read loads one archived result back, the inverse of Write.
func Read(path string) (*model.AggregateResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("export: create decoder: %w", err)
	}
	defer zr.Close()

	var result model.AggregateResult
	if err := json.NewDecoder(zr).Decode(&result); err != nil {
		return nil, fmt.Errorf("export: decode archive: %w", err)
	}
	return &result, nil
}
