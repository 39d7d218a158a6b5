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
	"context"
	"database/sql"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/go-libsql"
)

// Store is a SQLite-backed container namespace database.
type Store struct {
	path  string
	db    *sql.DB
	bunDB *BunDB
}

// execPragma runs a PRAGMA statement using Query (not Exec) because libsql
// returns rows for PRAGMA statements. The result rows are drained and closed.
func execPragma(db *sql.DB, pragma string) error {
	rows, err := db.Query(pragma)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

// applyPragmas sets essential PRAGMAs after opening a libsql connection.
// libsql ignores DSN-based _pragma=value parameters, so all PRAGMAs must be
// set explicitly via SQL statements after the connection is opened.
func applyPragmas(db *sql.DB, busyTimeout int) error {
	// Busy timeout MUST be set first. journal_mode=WAL needs exclusive
	// access and will wait for locks instead of failing immediately.
	if err := execPragma(db, fmt.Sprintf("PRAGMA busy_timeout = %d", GetBusyTimeout(busyTimeout))); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}

	// WAL mode enables concurrent readers during writes.
	if err := execPragma(db, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}

	// synchronous=NORMAL with WAL is safe against process crashes and
	// avoids an fsync on every commit.
	if err := execPragma(db, "PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous=NORMAL: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return nil
}

// Create creates a new namespace database at path, failing if one exists.
func Create(path string, busyTimeout int) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("database already exists: %s", path)
	}

	s, err := open(path, busyTimeout)
	if err != nil {
		return nil, err
	}

	if err := s.initSchema(); err != nil {
		s.Close()
		return nil, err
	}

	log.WithField("path", path).Info("created namespace database")
	return s, nil
}

// Open opens an existing namespace database, creating the schema if the
// file is new (temp databases in tests pass through here too).
func Open(path string, busyTimeout int) (*Store, error) {
	s, err := open(path, busyTimeout)
	if err != nil {
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func open(path string, busyTimeout int) (*Store, error) {
	db, err := sql.Open("libsql", BuildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := applyPragmas(db, busyTimeout); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		path:  path,
		db:    db,
		bunDB: NewBunDB(db),
	}, nil
}

// initSchema creates the namespace tables (statement by statement for
// libsql compatibility) and stamps the schema version.
func (s *Store) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return s.bunDB.SetSchemaInfo(context.Background(), "version", SchemaVersion)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Bun returns the bun query wrapper.
func (s *Store) Bun() *BunDB {
	return s.bunDB
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
