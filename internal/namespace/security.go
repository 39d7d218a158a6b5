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

	"github.com/uptrace/bun"
)

// Capabilities consulted through the security subsystem.
const (
	CapabilityRead   = "read"
	CapabilityDelete = "delete"
	CapabilityAdmin  = "admin"
)

// SecurityService is the slice of the security subsystem the namespace
// engine needs. SetDefaultPolicy and ChangeScope take the mutation's
// bun.IDB so their rows commit or roll back with the structural change
// itself.
type SecurityService interface {
	// HasPermission reports whether user holds capability on c.
	HasPermission(ctx context.Context, user string, c *Container, capability string) (bool, error)

	// SetDefaultPolicy installs the initial (admin-only) policy for a
	// freshly created container.
	SetDefaultPolicy(ctx context.Context, idb bun.IDB, c *Container) error

	// ChangeScope rewrites the security scope for the given container
	// ids after a move across a project boundary.
	ChangeScope(ctx context.Context, idb bun.IDB, containerIDs []string, oldScopeID, newScopeID string) error
}

// OpenSecurity is a SecurityService that allows everything and stores
// nothing. Used by tests and tools that manage policy elsewhere.
type OpenSecurity struct{}

func (OpenSecurity) HasPermission(context.Context, string, *Container, string) (bool, error) {
	return true, nil
}

func (OpenSecurity) SetDefaultPolicy(context.Context, bun.IDB, *Container) error {
	return nil
}

func (OpenSecurity) ChangeScope(context.Context, bun.IDB, []string, string, string) error {
	return nil
}
