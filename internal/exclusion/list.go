package exclusion

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chtc/gpureport/internal/errors"
)

// List holds host patterns excluded from statistical aggregation, each with
// the reason it was masked. Excluded hosts still appear in operational
// listings; the predicate is applied only at the aggregation boundary.
type List struct {
	patterns map[string]string
}

type exclusionsFile struct {
	ExcludedHosts map[string]string `yaml:"excluded_hosts"`
}

// Load reads an exclusion file of the form:
//
//	excluded_hosts:
//	  gpu2000: "draining for maintenance"
//	  badnode: "bad DIMM, numbers untrustworthy"
//
// A missing path returns an empty list; a malformed file is an error.
func Load(path string) (*List, error) {
	if path == "" {
		return &List{patterns: map[string]string{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &List{patterns: map[string]string{}}, nil
		}
		return nil, errors.New(errors.CodeExclusionLoad, fmt.Sprintf("read %s", path), err)
	}

	var f exclusionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.New(errors.CodeExclusionLoad, fmt.Sprintf("parse %s", path), err)
	}

	patterns := make(map[string]string, len(f.ExcludedHosts))
	for pattern, reason := range f.ExcludedHosts {
		patterns[strings.ToLower(strings.TrimSpace(pattern))] = reason
	}
	return &List{patterns: patterns}, nil
}

// Parse loads exclusions from an inline YAML document instead of a file.
func Parse(doc string) (*List, error) {
	var f exclusionsFile
	if err := yaml.Unmarshal([]byte(doc), &f); err != nil {
		return nil, errors.New(errors.CodeExclusionLoad, "parse inline exclusions", err)
	}
	patterns := make(map[string]string, len(f.ExcludedHosts))
	for pattern, reason := range f.ExcludedHosts {
		patterns[strings.ToLower(strings.TrimSpace(pattern))] = reason
	}
	return &List{patterns: patterns}, nil
}

// Len returns the number of exclusion patterns.
func (l *List) Len() int {
	return len(l.patterns)
}

// Match reports whether the machine matches any exclusion pattern.
// Matching is a case-insensitive substring test on the hostname.
func (l *List) Match(machine string) bool {
	if len(l.patterns) == 0 {
		return false
	}
	m := strings.ToLower(machine)
	for pattern := range l.patterns {
		if pattern != "" && strings.Contains(m, pattern) {
			return true
		}
	}
	return false
}

// Reason returns the recorded reason for the first pattern matching the
// machine, or "" if none match.
func (l *List) Reason(machine string) string {
	m := strings.ToLower(machine)
	for _, pattern := range l.sortedPatterns() {
		if pattern != "" && strings.Contains(m, pattern) {
			return l.patterns[pattern]
		}
	}
	return ""
}

// Patterns returns the exclusion patterns in sorted order.
func (l *List) Patterns() []string {
	return l.sortedPatterns()
}

func (l *List) sortedPatterns() []string {
	out := make([]string, 0, len(l.patterns))
	for p := range l.patterns {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
