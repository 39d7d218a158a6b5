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

	"github.com/uptrace/bun"

	"canopy/internal/common"
)

// ResolveWithAliases resolves path like Resolve, falling back to the
// alias table when no container lives there. An alias may point at any
// ancestor of the requested path: /old/sub resolves through the alias
// /old by re-rooting the remainder under the alias target. The fallback
// walk strips one trailing segment per step, so lookup cost is bounded
// by the path depth.
func (m *Manager) ResolveWithAliases(ctx context.Context, path string) (*Container, error) {
	c, err := m.Resolve(ctx, path)
	if err == nil || !errors.Is(err, common.ErrNotFound) {
		return c, err
	}
	return m.resolveAlias(ctx, common.NormalizePath(path), "")
}

// resolveAlias looks up prefix in the alias table, walking toward the
// root and carrying the stripped segments in remainder.
func (m *Manager) resolveAlias(ctx context.Context, prefix, remainder string) (*Container, error) {
	id, err := m.db.GetAliasTarget(ctx, prefix)
	if err == nil {
		target, err := m.ResolveByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if remainder == "" {
			return target, nil
		}
		return m.Resolve(ctx, target.Path+remainder)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	parent, ok := common.ParentPath(prefix)
	if !ok {
		return nil, common.ErrNotFound
	}
	return m.resolveAlias(ctx, parent, "/"+common.BaseName(prefix)+remainder)
}

// Aliases returns the alias paths recorded for c.
func (m *Manager) Aliases(ctx context.Context, c *Container) ([]string, error) {
	return m.db.ListAliases(ctx, c.ID)
}

// SaveAliases replaces c's alias set with the given paths. Paths are
// normalized first; a path that names a live container is skipped, so
// an alias can never shadow the real namespace.
func (m *Manager) SaveAliases(ctx context.Context, c *Container, paths []string) error {
	keep := make([]string, 0, len(paths))
	for _, p := range paths {
		p = common.NormalizePath(p)
		if _, err := m.Resolve(ctx, p); err == nil {
			continue
		} else if !errors.Is(err, common.ErrNotFound) {
			return err
		}
		keep = append(keep, p)
	}

	return m.db.RunInConflictRetry(ctx, m.retryAttempts, func(ctx context.Context, tx bun.Tx) error {
		if err := m.db.DeleteAliasesForWith(tx, ctx, c.ID); err != nil {
			return err
		}
		for _, p := range keep {
			if err := m.db.InsertAliasWith(tx, ctx, p, c.ID); err != nil {
				return err
			}
		}
		return nil
	})
}
