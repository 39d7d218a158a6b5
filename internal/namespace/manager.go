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

package namespace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"canopy/internal/cache"
	"canopy/internal/common"
	"canopy/internal/storage"
)

// DefaultRetryAttempts bounds transparent re-runs of a mutation
// transaction on transient store conflicts.
const DefaultRetryAttempts = 3

// Options configures a Manager.
type Options struct {
	CacheTTL      time.Duration // 0 = cache.DefaultTTL
	CacheSize     int           // 0 = cache.DefaultSize
	RecordAliases bool          // record old paths as aliases on rename/move
	RetryAttempts uint          // 0 = DefaultRetryAttempts
}

// Manager is the container hierarchy engine: the sole read path into the
// cache and store, and the only component allowed to mutate the tree.
type Manager struct {
	store    *storage.Store
	db       *storage.BunDB
	cache    *cache.TreeCache[*Container]
	security SecurityService

	listeners listenerRegistry
	deleting  *deletionRegistry

	// loadMu serializes cache-miss loads and the post-commit cache
	// clearing of mutations. One lock for the whole namespace, not one
	// per entry: child-list population and parent traversal must observe
	// a consistent snapshot relative to concurrent deletes. Never held
	// across a mutation transaction; only around the short "decide
	// whether to query, then cache the result" sections and delete's
	// final (cheap) cache removal.
	loadMu sync.Mutex

	recordAliases bool
	retryAttempts uint
	log           *log.Entry
}

// NewManager wires a Manager over an open store.
func NewManager(store *storage.Store, security SecurityService, opts Options) *Manager {
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = cache.DefaultTTL
	}
	size := opts.CacheSize
	if size == 0 {
		size = cache.DefaultSize
	}
	attempts := opts.RetryAttempts
	if attempts == 0 {
		attempts = DefaultRetryAttempts
	}
	if security == nil {
		security = OpenSecurity{}
	}
	return &Manager{
		store:         store,
		db:            store.Bun(),
		cache:         cache.New[*Container](ttl, size),
		security:      security,
		deleting:      newDeletionRegistry(),
		recordAliases: opts.RecordAliases,
		retryAttempts: attempts,
		log:           log.WithField("component", "namespace"),
	}
}

// AddListener registers a structural-change observer.
func (m *Manager) AddListener(l Listener, order Order) {
	m.listeners.add(l, order)
}

// RemoveListener unregisters a listener from both orderings.
func (m *Manager) RemoveListener(l Listener) {
	m.listeners.remove(l)
}

// Security returns the security service the manager consults.
func (m *Manager) Security() SecurityService {
	return m.security
}

// Resolve returns the container at path, or common.ErrNotFound. A
// missing root surfaces as common.ErrRootMissing ("namespace
// uninitialized"), never as a generic miss.
func (m *Manager) Resolve(ctx context.Context, path string) (*Container, error) {
	key := common.PathKey(path)
	if c, ok := m.cache.GetByPath(key); ok {
		return m.rejectDeleting(c)
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	// Double-checked load: another goroutine may have populated the
	// entry while we waited for the section.
	if c, ok := m.cache.GetByPath(key); ok {
		return m.rejectDeleting(c)
	}

	var c *Container
	err := m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		c, err = m.resolvePathLocked(ctx, tx, common.NormalizePath(path))
		return err
	})
	if err != nil {
		return nil, err
	}
	return m.rejectDeleting(c)
}

// ResolveByID returns the container with the given id, or
// common.ErrNotFound.
func (m *Manager) ResolveByID(ctx context.Context, id string) (*Container, error) {
	if m.deleting.isDeleting(id) {
		return nil, fmt.Errorf("%w: %s", common.ErrDeleteInProgress, id)
	}
	if c, ok := m.cache.GetByID(id); ok {
		return c, nil
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if c, ok := m.cache.GetByID(id); ok {
		return c, nil
	}

	var c *Container
	err := m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		c, err = m.resolveIDLocked(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m.rejectDeleting(c)
}

// Root returns the root container.
func (m *Manager) Root(ctx context.Context) (*Container, error) {
	return m.Resolve(ctx, "/")
}

// rejectDeleting filters out containers whose delete is in flight, so a
// racing resolver cannot hand out a node the delete has already
// announced.
func (m *Manager) rejectDeleting(c *Container) (*Container, error) {
	if m.deleting.isDeleting(c.ID) {
		return nil, fmt.Errorf("%w: %s", common.ErrDeleteInProgress, c.Path)
	}
	return c, nil
}

// resolvePathLocked loads the container at path, resolving and caching
// every ancestor on the way down. Caller holds loadMu.
func (m *Manager) resolvePathLocked(ctx context.Context, idb bun.IDB, path string) (*Container, error) {
	if path == "/" {
		if c, ok := m.cache.GetByPath("/"); ok {
			return c, nil
		}
		row, err := m.db.GetRootWith(idb, ctx)
		if err != nil {
			return nil, err
		}
		root := containerFromModel(row, "")
		m.cache.Put(root.ID, root.PathKey(), root)
		return root, nil
	}

	parentPath, _ := common.ParentPath(path)
	parent, ok := m.cache.GetByPath(common.PathKey(parentPath))
	if !ok {
		var err error
		parent, err = m.resolvePathLocked(ctx, idb, parentPath)
		if err != nil {
			return nil, err
		}
	}

	row, err := m.db.GetChildByNameWith(idb, ctx, parent.ID, common.BaseName(path))
	if err != nil {
		return nil, err
	}
	c := containerFromModel(row, parent.Path)
	m.cache.Put(c.ID, c.PathKey(), c)
	return c, nil
}

// resolveIDLocked loads a container by id, reconstructing its derived
// path by walking the parent chain. Caller holds loadMu.
func (m *Manager) resolveIDLocked(ctx context.Context, idb bun.IDB, id string) (*Container, error) {
	row, err := m.db.GetContainerWith(idb, ctx, id)
	if err != nil {
		return nil, err
	}

	parentPath := ""
	if row.ParentID != "" {
		parent, ok := m.cache.GetByID(row.ParentID)
		if !ok {
			parent, err = m.resolveIDLocked(ctx, idb, row.ParentID)
			if err != nil {
				return nil, fmt.Errorf("resolving parent of %s: %w", id, err)
			}
		}
		parentPath = parent.Path
	}

	c := containerFromModel(row, parentPath)
	m.cache.Put(c.ID, c.PathKey(), c)
	return c, nil
}

// Children returns the ordered children of parent: explicit sort order
// first, then case-folded name.
func (m *Manager) Children(ctx context.Context, parent *Container) ([]*Container, error) {
	ids, ok := m.cache.Children(parent.ID)
	if !ok {
		var err error
		ids, err = m.loadChildrenIDs(ctx, parent)
		if err != nil {
			return nil, err
		}
	}
	return m.containersForIDs(ctx, ids)
}

// loadChildrenIDs populates the child-list entry for parent, caching
// every child record on the way. The id list is returned so the caller
// can map it to records outside the load section.
func (m *Manager) loadChildrenIDs(ctx context.Context, parent *Container) ([]string, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if ids, ok := m.cache.Children(parent.ID); ok {
		return ids, nil
	}

	rows, err := m.db.ListChildren(ctx, parent.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for i := range rows {
		c := containerFromModel(&rows[i], parent.Path)
		m.cache.Put(c.ID, c.PathKey(), c)
		ids = append(ids, c.ID)
	}
	m.cache.SetChildren(parent.ID, ids)
	return ids, nil
}

// AllDescendants returns root and every container below it. The result
// is cached per subtree root and invalidated on any structural change
// anywhere in the namespace.
func (m *Manager) AllDescendants(ctx context.Context, root *Container) ([]*Container, error) {
	ids, ok := m.cache.Descendants(root.ID)
	if !ok {
		var err error
		ids, err = m.loadDescendantIDs(ctx, root)
		if err != nil {
			return nil, err
		}
	}
	return m.containersForIDs(ctx, ids)
}

func (m *Manager) loadDescendantIDs(ctx context.Context, root *Container) ([]string, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if ids, ok := m.cache.Descendants(root.ID); ok {
		return ids, nil
	}

	// Load the whole edge set in one query; simple, and fine unless the
	// table gets really big.
	edges, err := m.db.ListEdges(ctx)
	if err != nil {
		return nil, err
	}
	childrenOf := make(map[string][]string, len(edges))
	for _, e := range edges {
		childrenOf[e.ParentID] = append(childrenOf[e.ParentID], e.ID)
	}

	// Breadth-first from the subtree root; the edge list is a snapshot,
	// so a finite tree terminates.
	ids := []string{root.ID}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, childrenOf[ids[i]]...)
	}

	m.cache.SetDescendants(root.ID, ids)
	return ids, nil
}

// containersForIDs maps cached id lists back to records, tolerating
// entries that vanished since the list was cached.
func (m *Manager) containersForIDs(ctx context.Context, ids []string) ([]*Container, error) {
	out := make([]*Container, 0, len(ids))
	for _, id := range ids {
		c, err := m.ResolveByID(ctx, id)
		if err != nil {
			if common.IsUserError(err) || errors.Is(err, common.ErrDeleteInProgress) {
				continue
			}
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// CountContainers reports the total number of containers in the store.
func (m *Manager) CountContainers(ctx context.Context) (int, error) {
	return m.db.CountContainers(ctx)
}
