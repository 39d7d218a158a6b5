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

// Package security keeps a policy row per container: which project
// scope the container belongs to and whether access is restricted to
// administrators. New containers start admin-only until somebody opens
// them up; moving a container across project boundaries rewrites the
// scope of the whole subtree.
package security

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"canopy/internal/common"
	"canopy/internal/namespace"
	"canopy/internal/storage"
)

// AdminUser holds every capability everywhere.
const AdminUser = "admin"

// PolicyStore implements the namespace engine's security hooks over the
// container_policies table.
type PolicyStore struct {
	db  *storage.BunDB
	log *log.Entry
}

// NewPolicyStore builds a PolicyStore over the given store.
func NewPolicyStore(db *storage.BunDB) *PolicyStore {
	return &PolicyStore{
		db:  db,
		log: log.WithField("component", "security"),
	}
}

// HasPermission reports whether user holds capability on c. An
// admin-only policy grants nothing below admin; a container with no
// policy row falls back to its default (admin-only), so a missing row
// never opens access by accident.
func (s *PolicyStore) HasPermission(ctx context.Context, user string, c *namespace.Container, capability string) (bool, error) {
	if user == AdminUser {
		return true, nil
	}
	p, err := s.db.GetPolicy(ctx, c.ID)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if p.AdminOnly {
		return false, nil
	}
	return capability != namespace.CapabilityAdmin, nil
}

// SetDefaultPolicy installs the initial admin-only policy for a freshly
// created container, scoped to its owning project (or to itself for
// projects and the root).
func (s *PolicyStore) SetDefaultPolicy(ctx context.Context, idb bun.IDB, c *namespace.Container) error {
	scopeID := c.ID
	if !c.IsRoot() && !c.IsProject() {
		// The owning project's id is the first hop of the parent chain;
		// derive it from the path through the containers table so the
		// write stays inside the caller's transaction.
		id, err := s.scopeIDForPath(ctx, idb, c.ProjectPath())
		if err != nil {
			return err
		}
		scopeID = id
	}
	return s.db.UpsertPolicyWith(idb, ctx, &storage.ContainerPolicyModel{
		ContainerID: c.ID,
		ScopeID:     scopeID,
		AdminOnly:   true,
	})
}

// scopeIDForPath resolves a project path to its container id using the
// transaction's view of the tree.
func (s *PolicyStore) scopeIDForPath(ctx context.Context, idb bun.IDB, projectPath string) (string, error) {
	root, err := s.db.GetRootWith(idb, ctx)
	if err != nil {
		return "", err
	}
	if projectPath == "/" {
		return root.ID, nil
	}
	project, err := s.db.GetChildByNameWith(idb, ctx, root.ID, common.BaseName(projectPath))
	if err != nil {
		return "", err
	}
	return project.ID, nil
}

// ChangeScope rewrites the scope of the given containers after a move
// across a project boundary.
func (s *PolicyStore) ChangeScope(ctx context.Context, idb bun.IDB, containerIDs []string, oldScopeID, newScopeID string) error {
	if oldScopeID == newScopeID {
		return nil
	}
	s.log.WithFields(log.Fields{
		"containers": len(containerIDs),
		"from":       oldScopeID,
		"to":         newScopeID,
	}).Info("rewriting security scope")
	return s.db.UpdatePolicyScopeWith(idb, ctx, containerIDs, newScopeID)
}

// SetAdminOnly flips the admin-only flag on a container's policy,
// keeping its current scope.
func (s *PolicyStore) SetAdminOnly(ctx context.Context, c *namespace.Container, adminOnly bool) error {
	p, err := s.db.GetPolicy(ctx, c.ID)
	if err != nil {
		return err
	}
	p.AdminOnly = adminOnly
	return s.db.UpsertPolicyWith(s.db.DB, ctx, p)
}
