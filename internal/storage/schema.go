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
	"fmt"
	"os"
	"strconv"
)

const SchemaVersion = "1"

// Default busy_timeout in milliseconds (30 seconds)
const DefaultBusyTimeout = 30000

// EnvBusyTimeout overrides the SQLite busy_timeout for all connections.
const EnvBusyTimeout = "CANOPY_BUSY_TIMEOUT"

// GetBusyTimeout returns the busy_timeout value in milliseconds.
// Priority: env var > configured value > default.
func GetBusyTimeout(configured int) int {
	if val := os.Getenv(EnvBusyTimeout); val != "" {
		if timeout, err := strconv.Atoi(val); err == nil && timeout > 0 {
			return timeout
		}
	}
	if configured > 0 {
		return configured
	}
	return DefaultBusyTimeout
}

// BuildDSN builds the SQLite DSN for a database path.
func BuildDSN(path string) string {
	return fmt.Sprintf("file:%s", path)
}

// schemaStatements is the container namespace DDL, executed statement by
// statement because libsql does not accept multi-statement Exec calls.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,

	// parent_id is NULL only for the root row. Sibling names are unique
	// case-insensitively; the partial unique index enforces that at the
	// store level so concurrent creates cannot both commit.
	`CREATE TABLE IF NOT EXISTS containers (
		id TEXT PRIMARY KEY,
		parent_id TEXT REFERENCES containers(id),
		name TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'folder',
		lock_state TEXT NOT NULL DEFAULT 'unlocked',
		expiration_date INTEGER,
		created_at INTEGER NOT NULL,
		created_by TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_containers_sibling_name
		ON containers(parent_id, lower(name)) WHERE parent_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_containers_root
		ON containers(lower(name)) WHERE parent_id IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_containers_parent
		ON containers(parent_id)`,

	`CREATE TABLE IF NOT EXISTS container_aliases (
		path TEXT NOT NULL,
		container_id TEXT NOT NULL REFERENCES containers(id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_container_aliases_path
		ON container_aliases(lower(path))`,
	`CREATE INDEX IF NOT EXISTS idx_container_aliases_container
		ON container_aliases(container_id)`,

	// Per-parent counter that hands out workbook sort orders.
	`CREATE TABLE IF NOT EXISTS container_sequences (
		container_id TEXT PRIMARY KEY REFERENCES containers(id),
		next_value INTEGER NOT NULL DEFAULT 1
	)`,

	// Minimal security policy row per container. The policy's scope is
	// the project the container currently belongs to.
	`CREATE TABLE IF NOT EXISTS container_policies (
		container_id TEXT PRIMARY KEY,
		scope_id TEXT NOT NULL,
		admin_only INTEGER NOT NULL DEFAULT 1,
		updated_at INTEGER NOT NULL
	)`,
}
