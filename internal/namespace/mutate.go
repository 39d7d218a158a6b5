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
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"canopy/internal/common"
)

// CreateOptions carries the optional attributes of a new container.
type CreateOptions struct {
	Type        Type // empty means TypeFolder
	Title       string
	Description string
	CreatedBy   string
}

// Create adds a new child under parent. The name must be legal and free
// among parent's children (case-insensitively); the type capability
// rules apply. Workbooks get a monotonically increasing sort order from
// the parent's counter; other types join the parent's current ordering
// scheme. The container's initial security policy commits with the row.
func (m *Manager) Create(ctx context.Context, parent *Container, name string, opts CreateOptions) (*Container, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	childType := opts.Type
	if childType == "" {
		childType = TypeFolder
	}
	if err := checkChildType(parent, childType); err != nil {
		return nil, err
	}
	if m.deleting.isDeleting(parent.ID) {
		return nil, fmt.Errorf("%w: %s", common.ErrDeleteInProgress, parent.Path)
	}

	created := &Container{
		ID:          uuid.NewString(),
		ParentID:    parent.ID,
		Name:        name,
		Path:        common.JoinPath(parent.Path, name),
		Title:       opts.Title,
		Description: opts.Description,
		Type:        childType,
		LockState:   LockStateUnlocked,
		CreatedAt:   time.Now(),
		CreatedBy:   opts.CreatedBy,
	}

	err := m.db.RunInConflictRetry(ctx, m.retryAttempts, func(ctx context.Context, tx bun.Tx) error {
		if _, err := m.db.GetChildByNameWith(tx, ctx, parent.ID, name); err == nil {
			return duplicateNameErr(name)
		} else if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		order, err := m.newChildSortOrder(ctx, tx, parent.ID, childType)
		if err != nil {
			return err
		}
		created.SortOrder = order

		if err := m.db.InsertContainerWith(tx, ctx, modelFromContainer(created)); err != nil {
			return mapConstraintErr(err, name)
		}
		return m.security.SetDefaultPolicy(ctx, tx, created)
	})
	if err != nil {
		return nil, err
	}

	m.loadMu.Lock()
	m.cache.InvalidateChildren(parent.ID)
	m.cache.InvalidateDescendants()
	m.cache.Put(created.ID, created.PathKey(), created)
	m.loadMu.Unlock()

	m.log.WithFields(log.Fields{"path": created.Path, "type": created.Type}).Info("container created")
	m.fireCreated(ctx, created)
	return created, nil
}

// newChildSortOrder decides where a new child lands in its parent's
// ordering: workbooks always take the next counter value so creation
// order is stable, other types get max+1 when the siblings have an
// explicit order and 0 (alphabetical) otherwise.
func (m *Manager) newChildSortOrder(ctx context.Context, tx bun.Tx, parentID string, childType Type) (int, error) {
	if childType == TypeWorkbook {
		v, err := m.db.NextSequenceValueWith(tx, ctx, parentID)
		return int(v), err
	}
	custom, err := m.db.AnySiblingCustomOrderWith(tx, ctx, parentID)
	if err != nil || !custom {
		return 0, err
	}
	max, err := m.db.MaxSiblingSortOrderWith(tx, ctx, parentID)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// EnsureContainer resolves path, creating any missing containers along
// the way with opts. Intermediate containers are plain folders (or
// projects, directly under the root); opts.Type applies to the leaf
// only.
func (m *Manager) EnsureContainer(ctx context.Context, path string, opts CreateOptions) (*Container, error) {
	path = common.NormalizePath(path)
	c, err := m.Resolve(ctx, path)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	parentPath, ok := common.ParentPath(path)
	if !ok {
		return nil, common.ErrRootMissing
	}
	intermediate := opts
	intermediate.Type = ""
	parent, err := m.EnsureContainer(ctx, parentPath, intermediate)
	if err != nil {
		return nil, err
	}

	leaf := opts
	if leaf.Type == "" {
		leaf.Type = TypeFolder
		if parent.IsRoot() {
			leaf.Type = TypeProject
		}
	}
	c, err = m.Create(ctx, parent, common.BaseName(path), leaf)
	if err == nil {
		return c, nil
	}
	// Lost a creation race: somebody else made it first. Take theirs.
	if errors.Is(err, common.ErrIllegalName) {
		if existing, rerr := m.Resolve(ctx, path); rerr == nil {
			return existing, nil
		}
	}
	return nil, err
}

// Bootstrap initializes an empty namespace: the root row plus the home
// and shared projects. Idempotent, so it runs unconditionally at
// startup.
func (m *Manager) Bootstrap(ctx context.Context, createdBy string) error {
	_, err := m.Root(ctx)
	if errors.Is(err, common.ErrRootMissing) {
		root := &Container{
			ID:        uuid.NewString(),
			Name:      "",
			Path:      "/",
			Type:      TypeFolder,
			LockState: LockStateUnlocked,
			CreatedAt: time.Now(),
			CreatedBy: createdBy,
		}
		err = m.db.RunInConflictRetry(ctx, m.retryAttempts, func(ctx context.Context, tx bun.Tx) error {
			if _, rerr := m.db.GetRootWith(tx, ctx); rerr == nil {
				return nil // another process won the bootstrap race
			} else if !errors.Is(rerr, common.ErrRootMissing) {
				return rerr
			}
			if ierr := m.db.InsertContainerWith(tx, ctx, modelFromContainer(root)); ierr != nil {
				return ierr
			}
			return m.security.SetDefaultPolicy(ctx, tx, root)
		})
	}
	if err != nil {
		return err
	}

	for _, path := range []string{HomePath, SharedPath} {
		if _, err := m.EnsureContainer(ctx, path, CreateOptions{Type: TypeProject, CreatedBy: createdBy}); err != nil {
			return fmt.Errorf("bootstrapping %s: %w", path, err)
		}
	}
	return nil
}

// Rename changes a container's name in place. System-protected
// containers cannot be renamed; the new name must be legal and free
// among the siblings, except that re-casing a container's own name is
// always allowed. A title that mirrored the old name follows the
// rename; an independent title is left alone and changes through
// UpdateProperties. When alias recording is on, the old path is kept
// as an alias so stale references keep resolving.
func (m *Manager) Rename(ctx context.Context, c *Container, newName, user string) (*Container, error) {
	if c.IsSystemProtected() {
		return nil, fmt.Errorf("%w: cannot rename %s", common.ErrSystemProtected, c.Path)
	}
	if err := CheckName(newName); err != nil {
		return nil, err
	}
	if c.Name == newName {
		return c, nil
	}

	oldPath := c.Path
	title := c.Title
	// A title that just mirrored the name follows the rename.
	if title == "" || title == c.Name {
		title = newName
	}

	err := m.db.RunInConflictRetry(ctx, m.retryAttempts, func(ctx context.Context, tx bun.Tx) error {
		existing, err := m.db.GetChildByNameWith(tx, ctx, c.ParentID, newName)
		if err == nil && existing.ID != c.ID {
			return duplicateNameErr(newName)
		}
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		if err := m.db.UpdateContainerNameWith(tx, ctx, c.ID, newName, title); err != nil {
			return mapConstraintErr(err, newName)
		}
		if m.recordAliases {
			return m.db.InsertAliasWith(tx, ctx, oldPath, c.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Every descendant path just changed; drop the lot rather than
	// chase them individually.
	m.loadMu.Lock()
	m.cache.Clear()
	m.loadMu.Unlock()

	renamed, err := m.ResolveByID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	m.log.WithFields(log.Fields{"from": oldPath, "to": renamed.Path, "user": user}).Info("container renamed")
	m.firePropertyChanged(ctx, PropertyChange{
		Container: renamed,
		Property:  PropertyName,
		Old:       c.Name,
		New:       newName,
	})
	return renamed, nil
}

// Move reparents c under newParent. The container keeps its identity;
// only its derived path changes. Moves are vetoable by listeners, must
// not create a cycle, and must not collide with a child of the new
// parent. A move across project boundaries rewrites the security scope
// of the whole subtree inside the same transaction. The second return
// value reports whether the scope changed.
func (m *Manager) Move(ctx context.Context, c, newParent *Container, user string) (*Container, bool, error) {
	if c.IsSystemProtected() {
		return nil, false, fmt.Errorf("%w: cannot move %s", common.ErrSystemProtected, c.Path)
	}
	if c.ParentID == newParent.ID {
		return c, false, nil
	}
	if err := checkChildType(newParent, c.Type); err != nil {
		return nil, false, err
	}
	if newParent.ID == c.ID || isBelow(newParent.Path, c.Path) {
		return nil, false, fmt.Errorf("%w: cannot move %s under its own descendant %s",
			common.ErrTypeCapability, c.Path, newParent.Path)
	}
	if m.deleting.isDeleting(c.ID) || m.deleting.isDeleting(newParent.ID) {
		return nil, false, fmt.Errorf("%w: %s", common.ErrDeleteInProgress, c.Path)
	}

	oldParent, err := m.ResolveByID(ctx, c.ParentID)
	if err != nil {
		return nil, false, err
	}
	if err := m.collectMoveVetoes(ctx, c, oldParent, newParent); err != nil {
		return nil, false, err
	}

	oldScopeID, newScopeID, err := m.moveScopes(ctx, c, newParent)
	if err != nil {
		return nil, false, err
	}
	scopeChanged := oldScopeID != newScopeID

	oldPath := c.Path
	err = m.db.RunInConflictRetry(ctx, m.retryAttempts, func(ctx context.Context, tx bun.Tx) error {
		existing, err := m.db.GetChildByNameWith(tx, ctx, newParent.ID, c.Name)
		if err == nil && existing.ID != c.ID {
			return duplicateNameErr(c.Name)
		}
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		if err := m.db.UpdateContainerParentWith(tx, ctx, c.ID, newParent.ID); err != nil {
			return mapConstraintErr(err, c.Name)
		}
		if scopeChanged {
			ids, err := m.subtreeIDs(ctx, tx, c.ID)
			if err != nil {
				return err
			}
			if err := m.security.ChangeScope(ctx, tx, ids, oldScopeID, newScopeID); err != nil {
				return err
			}
		}
		if m.recordAliases {
			return m.db.InsertAliasWith(tx, ctx, oldPath, c.ID)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	m.loadMu.Lock()
	m.cache.Clear()
	m.loadMu.Unlock()

	moved, err := m.ResolveByID(ctx, c.ID)
	if err != nil {
		return nil, false, err
	}
	m.log.WithFields(log.Fields{
		"from":         oldPath,
		"to":           moved.Path,
		"user":         user,
		"scopeChanged": scopeChanged,
	}).Info("container moved")
	m.fireMoved(ctx, moved, oldParent)
	return moved, scopeChanged, nil
}

// moveScopes returns the security scope ids on either side of a move:
// the owning project's container id, or the moved container's own id
// when it lands directly under the root and becomes a project itself.
func (m *Manager) moveScopes(ctx context.Context, c, newParent *Container) (oldScopeID, newScopeID string, err error) {
	oldProject, err := m.Resolve(ctx, c.ProjectPath())
	if err != nil {
		return "", "", err
	}
	oldScopeID = oldProject.ID
	if newParent.IsRoot() {
		return oldScopeID, c.ID, nil
	}
	newProject, err := m.Resolve(ctx, newParent.ProjectPath())
	if err != nil {
		return "", "", err
	}
	return oldScopeID, newProject.ID, nil
}

// subtreeIDs collects c's id plus every descendant id, using the
// transaction's view of the edge set.
func (m *Manager) subtreeIDs(ctx context.Context, tx bun.Tx, rootID string) ([]string, error) {
	edges, err := m.db.ListEdgesWith(tx, ctx)
	if err != nil {
		return nil, err
	}
	childrenOf := make(map[string][]string, len(edges))
	for _, e := range edges {
		childrenOf[e.ParentID] = append(childrenOf[e.ParentID], e.ID)
	}
	ids := []string{rootID}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, childrenOf[ids[i]]...)
	}
	return ids, nil
}

// isBelow reports whether path sits strictly inside ancestorPath.
func isBelow(path, ancestorPath string) bool {
	if ancestorPath == "/" {
		return path != "/"
	}
	return strings.HasPrefix(common.PathKey(path), common.PathKey(ancestorPath)+"/")
}

// Delete removes a leaf container. The container must have no children
// (use DeleteSubtree for recursive removal) and must not be
// system-protected. Listeners are notified in reverse registration
// order before anything is removed; the first error aborts the whole
// delete. Dependent rows (aliases, counters, policy) go with the
// container in one transaction.
func (m *Manager) Delete(ctx context.Context, c *Container, user string) error {
	if c.IsSystemProtected() {
		return fmt.Errorf("%w: cannot delete %s", common.ErrSystemProtected, c.Path)
	}
	if !m.deleting.tryBegin(c.ID) {
		return fmt.Errorf("%w: %s", common.ErrDeleteInProgress, c.Path)
	}
	defer m.deleting.end(c.ID)

	has, err := m.db.HasChildren(ctx, c.ID)
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: %s has children", common.ErrNotEmpty, c.Path)
	}

	if err := m.fireDeleted(ctx, c, user); err != nil {
		return fmt.Errorf("deleting %s: %w", c.Path, err)
	}

	err = m.db.RunInConflictRetry(ctx, m.retryAttempts, func(ctx context.Context, tx bun.Tx) error {
		// Re-check inside the transaction: a child may have appeared
		// since the pre-flight.
		has, err := m.db.HasChildrenWith(tx, ctx, c.ID)
		if err != nil {
			return err
		}
		if has {
			return fmt.Errorf("%w: %s has children", common.ErrNotEmpty, c.Path)
		}
		if err := m.db.DeleteAliasesForWith(tx, ctx, c.ID); err != nil {
			return err
		}
		if err := m.db.DeleteSequenceWith(tx, ctx, c.ID); err != nil {
			return err
		}
		if err := m.db.DeletePolicyWith(tx, ctx, c.ID); err != nil {
			return err
		}
		return m.db.DeleteContainerWith(tx, ctx, c.ID)
	})
	if err != nil {
		return err
	}

	m.loadMu.Lock()
	m.cache.Invalidate(c.ID, c.PathKey())
	m.cache.InvalidateChildren(c.ParentID)
	m.cache.InvalidateDescendants()
	m.loadMu.Unlock()

	m.log.WithFields(log.Fields{"path": c.Path, "user": user}).Info("container deleted")
	return nil
}

// DeleteSubtree removes c and everything below it, deepest first, so
// the tree never holds an orphaned row. The caller needs the delete
// capability on every container in the subtree; the permission sweep
// runs up front so a failure half-way down cannot strand the tree in a
// partially deleted state.
func (m *Manager) DeleteSubtree(ctx context.Context, c *Container, user string) error {
	if c.IsSystemProtected() {
		return fmt.Errorf("%w: cannot delete %s", common.ErrSystemProtected, c.Path)
	}

	all, err := m.AllDescendants(ctx, c)
	if err != nil {
		return err
	}
	for _, node := range all {
		ok, err := m.security.HasPermission(ctx, user, node, CapabilityDelete)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s may not delete %s", common.ErrSystemProtected, user, node.Path)
		}
	}

	// AllDescendants is breadth-first from c, so walking it backwards
	// always deletes children before their parent.
	for i := len(all) - 1; i >= 0; i-- {
		if err := m.Delete(ctx, all[i], user); err != nil {
			return err
		}
	}
	return nil
}

// Reorder assigns explicit sort orders to parent's children following
// the given id sequence. Every current child must appear exactly once.
func (m *Manager) Reorder(ctx context.Context, parent *Container, orderedIDs []string) error {
	children, err := m.Children(ctx, parent)
	if err != nil {
		return err
	}
	if err := checkReorderIDs(children, orderedIDs); err != nil {
		return err
	}

	err = m.db.RunInConflictRetry(ctx, m.retryAttempts, func(ctx context.Context, tx bun.Tx) error {
		for i, id := range orderedIDs {
			if err := m.db.UpdateSortOrderWith(tx, ctx, id, i+1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.invalidateChildOrdering(parent, children)
	m.firePropertyChanged(ctx, PropertyChange{Container: parent, Property: PropertySortOrder})
	return nil
}

// SetChildOrderToAlphabetical clears explicit ordering on parent's
// children so they fall back to case-folded name order.
func (m *Manager) SetChildOrderToAlphabetical(ctx context.Context, parent *Container) error {
	children, err := m.Children(ctx, parent)
	if err != nil {
		return err
	}

	err = m.db.RunInConflictRetry(ctx, m.retryAttempts, func(ctx context.Context, tx bun.Tx) error {
		for _, child := range children {
			if child.SortOrder == 0 {
				continue
			}
			if err := m.db.UpdateSortOrderWith(tx, ctx, child.ID, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.invalidateChildOrdering(parent, children)
	m.firePropertyChanged(ctx, PropertyChange{Container: parent, Property: PropertySortOrder})
	return nil
}

func (m *Manager) invalidateChildOrdering(parent *Container, children []*Container) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.cache.InvalidateChildren(parent.ID)
	for _, child := range children {
		m.cache.Invalidate(child.ID, child.PathKey())
	}
}

func checkReorderIDs(children []*Container, orderedIDs []string) error {
	if len(orderedIDs) != len(children) {
		return fmt.Errorf("%w: ordering lists %d ids, parent has %d children",
			common.ErrIllegalName, len(orderedIDs), len(children))
	}
	want := make(map[string]struct{}, len(children))
	for _, c := range children {
		want[c.ID] = struct{}{}
	}
	for _, id := range orderedIDs {
		if _, ok := want[id]; !ok {
			return fmt.Errorf("%w: %s is not a child of this container", common.ErrIllegalName, id)
		}
		delete(want, id)
	}
	return nil
}

// Props holds the optional attribute updates of a container; nil fields
// stay untouched.
type Props struct {
	Title          *string
	Description    *string
	Type           *Type
	LockState      *LockState
	ExpirationDate *time.Time
}

// UpdateProperties applies the non-nil fields of props to c and fires
// one property-change notification per changed attribute. Changing the
// type re-checks the capability rules against the current parent and
// children.
func (m *Manager) UpdateProperties(ctx context.Context, c *Container, props Props) (*Container, error) {
	updated := *c
	var changes []PropertyChange

	if props.Title != nil && *props.Title != c.Title {
		changes = append(changes, PropertyChange{Property: PropertyTitle, Old: c.Title, New: *props.Title})
		updated.Title = *props.Title
	}
	if props.Description != nil && *props.Description != c.Description {
		changes = append(changes, PropertyChange{Property: PropertyDescription, Old: c.Description, New: *props.Description})
		updated.Description = *props.Description
	}
	if props.LockState != nil && *props.LockState != c.LockState {
		changes = append(changes, PropertyChange{Property: PropertyLockState, Old: c.LockState, New: *props.LockState})
		updated.LockState = *props.LockState
	}
	if props.ExpirationDate != nil && !props.ExpirationDate.Equal(c.ExpirationDate) {
		changes = append(changes, PropertyChange{Property: PropertyExpiration, Old: c.ExpirationDate, New: *props.ExpirationDate})
		updated.ExpirationDate = *props.ExpirationDate
	}
	if props.Type != nil && *props.Type != c.Type {
		if err := m.checkTypeChange(ctx, c, *props.Type); err != nil {
			return nil, err
		}
		changes = append(changes, PropertyChange{Property: PropertyType, Old: c.Type, New: *props.Type})
		updated.Type = *props.Type
	}
	if len(changes) == 0 {
		return c, nil
	}

	err := m.db.RunInConflictRetry(ctx, m.retryAttempts, func(ctx context.Context, tx bun.Tx) error {
		return m.db.UpdateContainerPropsWith(tx, ctx, modelFromContainer(&updated))
	})
	if err != nil {
		return nil, err
	}

	m.loadMu.Lock()
	m.cache.Invalidate(c.ID, c.PathKey())
	m.cache.Put(updated.ID, updated.PathKey(), &updated)
	m.loadMu.Unlock()

	for _, change := range changes {
		change.Container = &updated
		m.firePropertyChanged(ctx, change)
	}
	return &updated, nil
}

// checkTypeChange validates converting c to newType in place.
func (m *Manager) checkTypeChange(ctx context.Context, c *Container, newType Type) error {
	if c.IsRoot() {
		return fmt.Errorf("%w: cannot retype the root", common.ErrSystemProtected)
	}
	if !newType.CanHaveChildren() {
		has, err := m.db.HasChildren(ctx, c.ID)
		if err != nil {
			return err
		}
		if has {
			return fmt.Errorf("%w: %s has children and cannot become a %s",
				common.ErrTypeCapability, c.Path, newType)
		}
	}
	parent, err := m.ResolveByID(ctx, c.ParentID)
	if err != nil {
		return err
	}
	return checkChildType(parent, newType)
}

func duplicateNameErr(name string) error {
	return fmt.Errorf("%w: a sibling named %q already exists", common.ErrIllegalName, name)
}

// mapConstraintErr turns the store's sibling-uniqueness violation into
// the same user error the in-transaction check produces, so a race
// loser sees a duplicate-name failure rather than a raw SQL error.
func mapConstraintErr(err error, name string) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return duplicateNameErr(name)
	}
	return err
}
