package ownership

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/karlseguin/ccache/v2"

	"github.com/chtc/gpureport/internal/errors"
	"github.com/chtc/gpureport/pkg/model"
)

// Registry is the set of centrally-owned hostnames. It is loaded once per
// analysis run and read-only afterwards, so it is safe for concurrent readers.
type Registry struct {
	hosts map[string]struct{}
}

// Load reads a line-delimited hostname file into a Registry. Blank lines and
// lines starting with '#' are skipped. A missing or unreadable file is an
// OWNERSHIP_LOAD_FAILED error; use LoadTolerant when an absent registry
// should mean "no centrally-owned hosts".
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.CodeOwnershipLoad, fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()

	hosts := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		host := strings.TrimSpace(scanner.Text())
		if host == "" || strings.HasPrefix(host, "#") {
			continue
		}
		hosts[host] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(errors.CodeOwnershipLoad, fmt.Sprintf("read %s", path), err)
	}

	return &Registry{hosts: hosts}, nil
}

// LoadTolerant behaves like Load but treats a missing file as an empty
// registry. Read errors on an existing file still fail.
func LoadTolerant(path string) (*Registry, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Warn("ownership registry not found, treating as empty", "path", path)
		return &Registry{hosts: make(map[string]struct{})}, nil
	}
	return Load(path)
}

// Len returns the number of registered hosts.
func (r *Registry) Len() int {
	return len(r.hosts)
}

// Contains reports whether the host is centrally owned.
func (r *Registry) Contains(host string) bool {
	_, ok := r.hosts[host]
	return ok
}

// Hosts returns the registered hostnames in sorted order.
func (r *Registry) Hosts() []string {
	out := make([]string, 0, len(r.hosts))
	for h := range r.hosts {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Classify derives the machine class for a host. Registry membership wins
// over the PrioritizedProjects signal: a registered host is centrally owned
// regardless of its PrioritizedProjects value.
func (r *Registry) Classify(machine, prioritizedProjects string) model.MachineClass {
	if r.Contains(machine) {
		return model.MachineCentrallyOwned
	}
	if strings.TrimSpace(prioritizedProjects) != "" {
		return model.MachineResearcherOwned
	}
	return model.MachineOpenCapacity
}

// cacheTTL bounds how long a loaded registry is reused before the file's
// mtime is consulted again.
const cacheTTL = 5 * time.Minute

// Cache is a read-through cache of loaded registries keyed by path and file
// mtime, so repeated analysis runs against an unchanged file skip the reload.
type Cache struct {
	cache    *ccache.Cache
	tolerant bool
}

// NewCache creates a registry cache. When tolerant is true, missing files
// resolve to an empty registry instead of an error.
func NewCache(tolerant bool) *Cache {
	return &Cache{
		cache:    ccache.New(ccache.Configure().MaxSize(32)),
		tolerant: tolerant,
	}
}

// Get returns the registry for the given path, loading it on miss or when
// the file has changed since it was cached.
func (c *Cache) Get(path string) (*Registry, error) {
	key := cacheKey(path)
	if item := c.cache.Get(key); item != nil && !item.Expired() {
		return item.Value().(*Registry), nil
	}

	var (
		reg *Registry
		err error
	)
	if c.tolerant {
		reg, err = LoadTolerant(path)
	} else {
		reg, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, reg, cacheTTL)
	return reg, nil
}

// cacheKey builds a path+mtime key so a rewritten file invalidates the
// cached entry immediately.
func cacheKey(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return path + "|missing"
	}
	return fmt.Sprintf("%s|%d", path, fi.ModTime().UnixNano())
}
