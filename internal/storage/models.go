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

package storage

import (
	"github.com/uptrace/bun"
)

// Bun ORM models for the canopy namespace tables.

// SchemaInfoModel represents the schema_info table
type SchemaInfoModel struct {
	bun.BaseModel `bun:"table:schema_info"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

// ContainerModel represents one row of the containers table.
// Times are stored as Unix timestamps; parent_id is NULL for the root
// (mapped to the empty string via nullzero).
type ContainerModel struct {
	bun.BaseModel `bun:"table:containers"`

	ID             string `bun:"id,pk"`
	ParentID       string `bun:"parent_id,nullzero"`
	Name           string `bun:"name,notnull"`
	SortOrder      int    `bun:"sort_order,notnull"`
	Title          string `bun:"title"`
	Description    string `bun:"description"`
	Type           string `bun:"type,notnull"`
	LockState      string `bun:"lock_state,notnull"`
	ExpirationDate int64  `bun:"expiration_date,nullzero"` // Unix timestamp, 0 = none
	CreatedAt      int64  `bun:"created_at,notnull"`       // Unix timestamp
	CreatedBy      string `bun:"created_by"`
}

// ContainerAliasModel maps a historical path to the container now
// reachable under a different path.
type ContainerAliasModel struct {
	bun.BaseModel `bun:"table:container_aliases"`

	Path        string `bun:"path,notnull"`
	ContainerID string `bun:"container_id,notnull"`
}

// ContainerSequenceModel is the per-parent counter backing workbook
// sort orders.
type ContainerSequenceModel struct {
	bun.BaseModel `bun:"table:container_sequences"`

	ContainerID string `bun:"container_id,pk"`
	NextValue   int64  `bun:"next_value,notnull"`
}

// ContainerPolicyModel is the security policy row for a container.
type ContainerPolicyModel struct {
	bun.BaseModel `bun:"table:container_policies"`

	ContainerID string `bun:"container_id,pk"`
	ScopeID     string `bun:"scope_id,notnull"`
	AdminOnly   bool   `bun:"admin_only"`
	UpdatedAt   int64  `bun:"updated_at,notnull"` // Unix timestamp
}
