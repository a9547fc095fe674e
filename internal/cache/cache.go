// Package cache holds the in-memory mirrors of server-backed lists with
// explicit staleness tracking. A cache is always in exactly one tagged
// state; "never loaded" and "loaded but empty" are different states and
// must never be conflated.
package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

type State int

const (
	// StateNotLoaded means no fetch has ever completed.
	StateNotLoaded State = iota
	// StateLoading means a fetch is in flight.
	StateLoading
	// StateLoaded means items hold the server truth as of loadedAt.
	StateLoaded
	// StateInvalidated means the snapshot is known stale; the next Load
	// must hit the server regardless of what is still held.
	StateInvalidated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateInvalidated:
		return "invalidated"
	default:
		return "not_loaded"
	}
}

// Default TTLs for the caches this client keeps. Regions are reference
// data and change on an administrative timescale.
const (
	DetectionTTL = time.Hour
	PatientTTL   = time.Hour
	RegionTTL    = 30 * 24 * time.Hour
)

// FetchFunc performs the remote list call backing a collection.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Collection is the cached snapshot of one server list resource.
type Collection[T any] struct {
	name  string
	fetch FetchFunc[T]

	mu           sync.Mutex
	state        State
	items        []T
	loadedAt     time.Time
	generation   uint64
	serverFilter bool
}

func NewCollection[T any](name string, fetch FetchFunc[T]) *Collection[T] {
	return &Collection[T]{name: name, fetch: fetch, state: StateNotLoaded}
}

// Load returns the cached items, fetching from the server first when the
// snapshot cannot be trusted. The short-circuit applies only when the
// collection is Loaded, force is false, and no server-side filter is
// active; NotLoaded and Invalidated always fetch.
//
// A result that lands after Invalidate was called mid-flight is treated
// as orphaned: it is returned to this caller but not stored, so the next
// Load still refetches.
func (c *Collection[T]) Load(ctx context.Context, force bool) ([]T, error) {
	c.mu.Lock()
	if c.state == StateLoaded && !force && !c.serverFilter {
		items := c.snapshotLocked()
		c.mu.Unlock()
		return items, nil
	}

	prev := c.state
	c.state = StateLoading
	gen := c.generation
	c.mu.Unlock()

	items, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if c.state == StateLoading && c.generation == gen {
			c.state = prev
		}
		return nil, err
	}

	if c.generation != gen {
		log.Printf("[CACHE] %s: dropping orphaned load result (invalidated mid-flight)", c.name)
		return items, nil
	}

	c.items = items
	c.loadedAt = time.Now()
	c.state = StateLoaded
	return c.snapshotLocked(), nil
}

// Snapshot returns the held items without any remote call. ok is false
// unless the collection is Loaded.
func (c *Collection[T]) Snapshot() ([]T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLoaded {
		return nil, false
	}
	return c.snapshotLocked(), true
}

func (c *Collection[T]) snapshotLocked() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Invalidate marks the snapshot stale. The held items and loadedAt are
// kept until the next successful load overwrites them; they are simply
// no longer trusted.
func (c *Collection[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateInvalidated
	c.generation++
	log.Printf("[CACHE] %s: invalidated", c.name)
}

// Reset drops everything and returns the collection to NotLoaded, as on
// logout or an explicit cache clear.
func (c *Collection[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateNotLoaded
	c.items = nil
	c.loadedAt = time.Time{}
	c.generation++
}

// SetServerFilterActive records whether the backing fetch currently
// carries a server-side filter, which disables the Load short-circuit.
func (c *Collection[T]) SetServerFilterActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverFilter = active
}

// PatchOne replaces the first item matching match with updated. Used
// opportunistically after an update completes when the caller already
// holds the authoritative item; cheaper than a full invalidate. Reports
// whether a patch happened; callers fall back to Invalidate when not.
func (c *Collection[T]) PatchOne(match func(T) bool, updated T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLoaded {
		return false
	}
	for i := range c.items {
		if match(c.items[i]) {
			c.items[i] = updated
			return true
		}
	}
	return false
}

// RemoveOne deletes the first item matching match from the snapshot.
func (c *Collection[T]) RemoveOne(match func(T) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLoaded {
		return false
	}
	for i := range c.items {
		if match(c.items[i]) {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// IsStale reports whether the snapshot is older than ttl. A collection
// that is not Loaded is always stale. Used to decide whether to kick a
// background refresh without blocking the caller.
func (c *Collection[T]) IsStale(ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLoaded {
		return true
	}
	return time.Since(c.loadedAt) > ttl
}

// LoadedAt returns the stamp of the last successful load, zero when none.
func (c *Collection[T]) LoadedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedAt
}
