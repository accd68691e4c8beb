// Package registry is the concurrent process registry map actors (and any
// other versioned handle) register into under a (kind, id) key, adapted
// from the teacher's domain plugin registry: name-conflict detection plus
// semver version-compatibility validation, generalized from a single
// plugin-name keyspace to an arbitrary (kind, id) composite key and from a
// fixed DomainPlugin handle type to any T.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/wanderer-industries/topologyd/errors"
)

// Entry is one registered handle plus its declared version.
type Entry[T any] struct {
	Kind    string
	ID      string
	Version string
	Handle  T
}

func key(kind, id string) string { return kind + ":" + id }

// Registry is a (kind, id) -> Entry[T] map, safe for concurrent use.
type Registry[T any] struct {
	mu            sync.RWMutex
	entries       map[string]Entry[T]
	hostVersion   *semver.Version
}

// New creates a Registry. hostVersion is checked against any version
// constraint passed to Register; pass "" to skip version validation
// entirely (callers that don't version their handles).
func New(hostVersion string) (*Registry[any], error) {
	return NewTyped[any](hostVersion)
}

// NewTyped creates a Registry for a specific handle type T. hostVersion is
// checked against any version constraint passed to Register; pass "" to
// skip version validation entirely.
func NewTyped[T any](hostVersion string) (*Registry[T], error) {
	r := &Registry[T]{entries: make(map[string]Entry[T])}
	if hostVersion != "" {
		v, err := semver.NewVersion(hostVersion)
		if err != nil {
			return nil, errors.Wrapf(err, "registry: invalid host version %q", hostVersion)
		}
		r.hostVersion = v
	}
	return r, nil
}

// Register adds handle under (kind, id). constraint is a semver
// constraint string (e.g. ">= 1.0.0, < 2.0.0") the host version must
// satisfy; pass "" to skip the check for this entry. Returns an error on
// a kind/id conflict or version incompatibility.
func (r *Registry[T]) Register(kind, id, constraint string, handle T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(kind, id)
	if _, exists := r.entries[k]; exists {
		return errors.Mark(errors.Newf("registry: %s %q already registered", kind, id), errors.ErrConfig)
	}

	if err := r.validateVersion(constraint); err != nil {
		return errors.Wrapf(err, "registry: version incompatible for %s %q", kind, id)
	}

	r.entries[k] = Entry[T]{Kind: kind, ID: id, Version: constraint, Handle: handle}
	return nil
}

// Unregister removes the (kind, id) entry, if present.
func (r *Registry[T]) Unregister(kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key(kind, id))
}

// Get retrieves the handle registered under (kind, id).
func (r *Registry[T]) Get(kind, id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key(kind, id)]
	return e.Handle, ok
}

// List returns every id registered under kind, sorted.
func (r *Registry[T]) List(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Kind == kind {
			ids = append(ids, e.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// All returns every registered handle under kind, keyed by id.
func (r *Registry[T]) All(kind string) map[string]T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]T)
	for _, e := range r.entries {
		if e.Kind == kind {
			out[e.ID] = e.Handle
		}
	}
	return out
}

func (r *Registry[T]) validateVersion(constraint string) error {
	if constraint == "" || r.hostVersion == nil {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	if !c.Check(r.hostVersion) {
		return fmt.Errorf("requires host version %s, running %s", constraint, r.hostVersion.String())
	}
	return nil
}
