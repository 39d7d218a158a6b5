// Copyright 2025 Canopy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache provides the in-process container cache for canopy.
//
// Design principles:
//  1. All invalidation flows through this API - callers never touch the
//     underlying maps, so the delete/resolve ordering argument stays
//     checkable against a small surface.
//  2. TTL expiry bounds staleness from out-of-process writers only;
//     correctness of in-process mutation relies on explicit
//     invalidation, never on the clock.
package cache

import (
	"os"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Disabled controls whether all caching is disabled.
// Set via CANOPY_CACHE=0 environment variable. Useful for isolating
// cache-related bugs: every Get becomes a miss and every Put a no-op.
var Disabled = os.Getenv("CANOPY_CACHE") == "0"

// DefaultTTL bounds how long an entry may serve reads without a store
// round-trip.
const DefaultTTL = 5 * time.Minute

// DefaultSize is the per-index entry capacity, proportional to the
// container count a deployment is expected to hold.
const DefaultSize = 10000

// TreeCache is the in-process cache for a container namespace: records
// by id, records by normalized path, ordered child-id lists by parent
// id, and all-descendant id sets by subtree root. Entries expire after a
// TTL and are evicted by recency once a bounded size is reached.
//
// Thread-safe. Keys are supplied by the caller; path keys must already
// be normalized and case-folded.
type TreeCache[V any] struct {
	byID        *expirable.LRU[string, V]
	byPath      *expirable.LRU[string, V]
	children    *expirable.LRU[string, []string]
	descendants *expirable.LRU[string, []string]
}

// New creates a TreeCache.
// ttl: time-to-live for entries (0 disables expiry).
// size: maximum entries per index (0 means unbounded).
func New[V any](ttl time.Duration, size int) *TreeCache[V] {
	return &TreeCache[V]{
		byID:        expirable.NewLRU[string, V](size, nil, ttl),
		byPath:      expirable.NewLRU[string, V](size, nil, ttl),
		children:    expirable.NewLRU[string, []string](size, nil, ttl),
		descendants: expirable.NewLRU[string, []string](size, nil, ttl),
	}
}

// GetByID retrieves a cached record by container id.
func (c *TreeCache[V]) GetByID(id string) (V, bool) {
	var zero V
	if Disabled {
		return zero, false
	}
	return c.byID.Get(id)
}

// GetByPath retrieves a cached record by normalized path key.
func (c *TreeCache[V]) GetByPath(pathKey string) (V, bool) {
	var zero V
	if Disabled {
		return zero, false
	}
	return c.byPath.Get(pathKey)
}

// Put stores a record under both its id and its path key.
func (c *TreeCache[V]) Put(id, pathKey string, v V) {
	if Disabled {
		return
	}
	c.byID.Add(id, v)
	c.byPath.Add(pathKey, v)
}

// Children returns the cached ordered child-id list for a parent. A
// cached empty list is a valid result, distinct from "not cached":
// the second return is false only when no entry exists.
func (c *TreeCache[V]) Children(parentID string) ([]string, bool) {
	if Disabled {
		return nil, false
	}
	return c.children.Get(parentID)
}

// SetChildren caches the ordered child-id list for a parent. An empty
// list is stored as such, never as absence.
func (c *TreeCache[V]) SetChildren(parentID string, ids []string) {
	if Disabled {
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.children.Add(parentID, ids)
}

// Descendants returns the cached all-descendant id list for a subtree
// root.
func (c *TreeCache[V]) Descendants(rootID string) ([]string, bool) {
	if Disabled {
		return nil, false
	}
	return c.descendants.Get(rootID)
}

// SetDescendants caches the all-descendant id list for a subtree root.
func (c *TreeCache[V]) SetDescendants(rootID string, ids []string) {
	if Disabled {
		return
	}
	c.descendants.Add(rootID, ids)
}

// Invalidate drops the record entries for one container. Child-list and
// descendant entries are invalidated separately because their affected
// key sets differ per mutation.
func (c *TreeCache[V]) Invalidate(id, pathKey string) {
	c.byID.Remove(id)
	c.byPath.Remove(pathKey)
}

// InvalidateChildren drops the child-list entry for a parent.
func (c *TreeCache[V]) InvalidateChildren(parentID string) {
	c.children.Remove(parentID)
}

// InvalidateDescendants drops every all-descendant entry. Descendant
// sets cannot be cheaply invalidated incrementally, so any structural
// change anywhere clears them all.
func (c *TreeCache[V]) InvalidateDescendants() {
	c.descendants.Purge()
}

// Clear drops everything. Used after rename and move, where every
// descendant's derived path changes.
func (c *TreeCache[V]) Clear() {
	c.byID.Purge()
	c.byPath.Purge()
	c.children.Purge()
	c.descendants.Purge()
}

// Len returns the number of record entries currently cached by id.
func (c *TreeCache[V]) Len() int {
	return c.byID.Len()
}
