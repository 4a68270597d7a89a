package errors

import (
	"errors"
	"fmt"
	"sync"
)

// Code represents a typed error code preserved through the pipeline so the
// reporting layer can distinguish "no data" from "could not read the store"
// from "registry failed to load" without re-querying.
type Code string

// Error codes raised at the I/O and config boundaries. Classification and
// aggregation never produce errors for well-typed input.
const (
	CodeConfigInvalid   Code = "CONFIG_INVALID"
	CodeOwnershipLoad   Code = "OWNERSHIP_LOAD_FAILED"
	CodeExclusionLoad   Code = "EXCLUSION_LOAD_FAILED"
	CodePartitionRead   Code = "PARTITION_READ_FAILED"
	CodeDataUnavailable Code = "DATA_UNAVAILABLE"
	CodeMalformedRow    Code = "MALFORMED_ROW"
)

// ReportError is a typed error with code, operation, and optional wrapped error.
type ReportError struct {
	Code Code
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *ReportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Op)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility.
func (e *ReportError) Unwrap() error {
	return e.Err
}

// New creates a ReportError with the given code and operation description.
func New(code Code, op string, err error) *ReportError {
	return &ReportError{Code: code, Op: op, Err: err}
}

// CodeOf extracts the Code from an error chain, or "" if none is present.
func CodeOf(err error) Code {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// Is reports whether the error chain carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// RunLog is a thread-safe collector for non-fatal issues encountered during
// one analysis run (failed partitions, skipped rows). Its counts are surfaced
// in the run metadata rather than aborting the run.
type RunLog struct {
	mu      sync.Mutex
	counts  map[Code]int
	details []string
}

// NewRunLog creates an empty RunLog.
func NewRunLog() *RunLog {
	return &RunLog{counts: make(map[Code]int)}
}

// Report records one non-fatal issue.
func (l *RunLog) Report(code Code, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counts[code]++
	if detail != "" {
		l.details = append(l.details, fmt.Sprintf("%s: %s", code, detail))
	}
}

// Count returns the number of issues recorded under the given code.
func (l *RunLog) Count(code Code) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[code]
}

// Details returns a copy of all recorded issue descriptions.
func (l *RunLog) Details() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.details))
	copy(out, l.details)
	return out
}
